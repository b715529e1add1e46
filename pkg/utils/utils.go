package utils

import (
	"crypto/rand"
	"errors"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrInvalidIdentifier = errors.New("invalid identifier")

var identifierPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{1,64}$`)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateIdentifier(id string) error
}

type utils struct{}

func New() IUtils {
	return &utils{}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// ValidateIdentifier rejects ids that are unsafe to embed in file names or
// store keys.
func (u *utils) ValidateIdentifier(id string) error {
	if !identifierPattern.MatchString(id) {
		return ErrInvalidIdentifier
	}
	return nil
}
