package audiostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"RiseAndShine/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	Extension     = ".mp3"
	partialPrefix = ".partial-"
)

var ErrEmptyAudio = errors.New("audio payload is empty")

// Store persists synthesized audio under a single directory. A path is
// handed out only after its bytes are synced and renamed into place.
type Store struct {
	dir   string
	utils utils.IUtils
	log   *logrus.Logger
}

func New(dir string, u utils.IUtils, log *logrus.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("audio directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio directory: %w", err)
	}
	return &Store{dir: dir, utils: u, log: log}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Write stores data as a new asset for alarmID and returns its path.
// The file name is a generated identifier prefixed by the alarm id.
func (s *Store) Write(ctx context.Context, alarmID string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyAudio
	}
	if err := s.utils.ValidateIdentifier(alarmID); err != nil {
		return "", fmt.Errorf("alarm id %q: %w", alarmID, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	assetID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return "", fmt.Errorf("generate asset id: %w", err)
	}
	final := filepath.Join(s.dir, alarmID+"_"+assetID+Extension)

	if err := WriteFileAtomic(s.dir, final, data); err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{
		"alarm_id": alarmID,
		"path":     final,
		"bytes":    len(data),
	}).Debug("Audio asset written")

	return final, nil
}

// Remove deletes a previously written asset. Missing files are not an error.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if filepath.Dir(path) != filepath.Clean(s.dir) {
		return fmt.Errorf("path %q is outside the audio directory", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Prune removes every committed asset of alarmID other than keep and returns
// the removed paths. Removal continues past individual failures.
func (s *Store) Prune(alarmID, keep string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	prefix := alarmID + "_"
	var removed []string
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, Extension) {
			continue
		}
		path := filepath.Join(s.dir, name)
		if path == filepath.Clean(keep) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}

// WriteFileAtomic writes data to a temp file in dir, syncs it and renames it
// to final. Readers never observe a partially written file at final.
func WriteFileAtomic(dir, final string, data []byte) error {
	tmp, err := os.CreateTemp(dir, partialPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write audio: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close audio: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return fmt.Errorf("commit audio: %w", err)
	}
	committed = true
	return nil
}

// IsPartial reports whether name belongs to an uncommitted write.
func IsPartial(name string) bool {
	return strings.HasPrefix(name, partialPrefix)
}
