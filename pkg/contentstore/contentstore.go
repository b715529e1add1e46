package contentstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"RiseAndShine/pkg/audiostore"
	"RiseAndShine/pkg/redis"
	"RiseAndShine/pkg/s3"
	"RiseAndShine/pkg/utils"
	"github.com/sirupsen/logrus"
)

// Key identifies generated audio by alarm, intent and voice.
type Key struct {
	AlarmID  string
	IntentID string
	VoiceID  string
}

func (k Key) String() string {
	return "audio:" + part(k.AlarmID) + ":" + part(k.IntentID) + ":" + part(k.VoiceID)
}

func (k Key) objectKey() string {
	return "audio/" + part(k.AlarmID) + "/" + part(k.IntentID) + "/" + part(k.VoiceID) + audiostore.Extension
}

func part(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Store records where audio for a Key lives. Lookup returns "" and nil when
// nothing is registered.
type Store interface {
	Lookup(ctx context.Context, key Key) (string, error)
	Register(ctx context.Context, key Key, path string) error
}

type store struct {
	index    redis.IRedis
	mirror   s3.ItfS3
	cacheDir string
	ttl      time.Duration
	utils    utils.IUtils
	log      *logrus.Logger
}

// New returns a Store backed by a Redis index and an optional S3 mirror.
// Either backend may be nil; with both nil it returns nil.
func New(index redis.IRedis, mirror s3.ItfS3, cacheDir string, u utils.IUtils, log *logrus.Logger) Store {
	if index == nil && mirror == nil {
		return nil
	}
	return &store{
		index:    index,
		mirror:   mirror,
		cacheDir: cacheDir,
		ttl:      30 * 24 * time.Hour,
		utils:    u,
		log:      log,
	}
}

func (s *store) Lookup(ctx context.Context, key Key) (string, error) {
	if s.index != nil {
		path, err := s.index.GetAssetPath(ctx, key.String())
		switch {
		case err == nil && path != "":
			if _, statErr := os.Stat(path); statErr == nil || s.mirror == nil {
				return path, nil
			}
		case err != nil && !errors.Is(err, redis.ErrNotFound):
			if s.mirror == nil {
				return "", err
			}
			s.log.WithFields(logrus.Fields{
				"key":   key.String(),
				"error": err.Error(),
			}).Warn("Content index lookup failed, falling back to mirror")
		}
	}

	if s.mirror == nil {
		return "", nil
	}
	return s.fetchFromMirror(ctx, key)
}

func (s *store) fetchFromMirror(ctx context.Context, key Key) (string, error) {
	ok, err := s.mirror.Exists(ctx, key.objectKey())
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}

	assetID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return "", err
	}
	final := filepath.Join(s.cacheDir, key.AlarmID+"_"+assetID+audiostore.Extension)

	tmp, err := os.CreateTemp(s.cacheDir, ".partial-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	n, err := s.mirror.DownloadFile(ctx, key.objectKey(), tmp)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n == 0 {
		err = audiostore.ErrEmptyAudio
	}
	if err == nil {
		err = os.Rename(tmpName, final)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		if errors.Is(err, s3.ErrObjectNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("download %s: %w", key.objectKey(), err)
	}

	if s.index != nil {
		if err := s.index.SetAssetPath(ctx, key.String(), final, s.ttl); err != nil {
			s.log.WithFields(logrus.Fields{
				"key":   key.String(),
				"error": err.Error(),
			}).Warn("Failed to index mirrored audio")
		}
	}

	return final, nil
}

func (s *store) Register(ctx context.Context, key Key, path string) error {
	var errs []error

	if s.index != nil {
		if err := s.index.SetAssetPath(ctx, key.String(), path, s.ttl); err != nil {
			errs = append(errs, fmt.Errorf("index: %w", err))
		}
	}
	if s.mirror != nil {
		location, err := s.mirror.UploadFile(ctx, key.objectKey(), path)
		if err != nil {
			errs = append(errs, fmt.Errorf("mirror: %w", err))
		} else {
			s.log.WithFields(logrus.Fields{
				"key":      key.String(),
				"location": location,
			}).Debug("Audio mirrored")
		}
	}

	return errors.Join(errs...)
}
