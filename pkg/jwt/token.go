package jwtPkg

import (
	"RiseAndShine/internal/entity"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

var ErrSecretNotConfigured = errors.New("JWT secret not configured")

// Sign issues an HS256 token carrying data as claims.
func Sign(secret string, data map[string]interface{}, expiresIn time.Duration) (string, int64, error) {
	if secret == "" {
		return "", 0, ErrSecretNotConfigured
	}
	expiredAt := time.Now().Add(expiresIn).Unix()

	claims := jwt.MapClaims{}
	for k, v := range data {
		claims[k] = v
	}
	claims["exp"] = expiredAt
	claims["iat"] = time.Now().Unix()

	logrus.WithField("subject", claims["sub"]).Debug("Creating token")

	to := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := to.SignedString([]byte(secret))
	if err != nil {
		logrus.WithError(err).Error("Failed to sign token")
		return "", 0, err
	}

	return accessToken, expiredAt, nil
}

func VerifyToken(accessToken string, secret string) (*jwt.Token, error) {
	if secret == "" {
		return nil, ErrSecretNotConfigured
	}

	return jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
}

func VerifyTokenHeader(c *fiber.Ctx, secret string) (*jwt.Token, error) {
	log := logrus.WithField("func", "VerifyTokenHeader")

	header := c.Get("Authorization")
	if header == "" {
		return nil, errors.New("empty Authorization header")
	}

	accessToken, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return nil, errors.New("invalid Authorization format")
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, errors.New("empty token")
	}

	token, err := VerifyToken(accessToken, secret)
	if err != nil {
		log.WithError(err).Warn("Failed to parse JWT token")
		return nil, err
	}

	return token, nil
}

// ClientFromToken extracts the caller identity from verified claims.
func ClientFromToken(token *jwt.Token) (entity.ClientLoginData, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return entity.ClientLoginData{}, errors.New("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return entity.ClientLoginData{}, errors.New("token has no subject")
	}
	name, _ := claims["name"].(string)
	return entity.ClientLoginData{ID: sub, Name: name}, nil
}

func GetClientLoginData(c *fiber.Ctx) (entity.ClientLoginData, error) {
	client, ok := c.Locals("client").(entity.ClientLoginData)
	if !ok {
		return entity.ClientLoginData{}, fiber.ErrUnauthorized
	}
	return client, nil
}
