package audiostore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"RiseAndShine/pkg/utils"
	"github.com/sirupsen/logrus/hooks/test"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s, err := New(filepath.Join(t.TempDir(), "audio"), utils.New(), logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestWriteCommitsFile(t *testing.T) {
	s := newStore(t)
	payload := []byte("ID3 fake mp3 payload")

	path, err := s.Write(context.Background(), "01HALARM", payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	name := filepath.Base(path)
	if !strings.HasPrefix(name, "01HALARM_") || filepath.Ext(name) != Extension {
		t.Fatalf("unexpected asset name %q", name)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("content mismatch")
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if IsPartial(e.Name()) {
			t.Fatalf("partial file left behind: %s", e.Name())
		}
	}
}

func TestWriteRejectsEmptyPayload(t *testing.T) {
	s := newStore(t)

	if _, err := s.Write(context.Background(), "01HALARM", nil); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Fatalf("expected empty directory, found %d entries", len(entries))
	}
}

func TestWriteRejectsUnsafeAlarmID(t *testing.T) {
	s := newStore(t)

	if _, err := s.Write(context.Background(), "../escape", []byte("x")); !errors.Is(err, utils.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestWriteGeneratesDistinctNames(t *testing.T) {
	s := newStore(t)

	first, err := s.Write(context.Background(), "alarm-1", []byte("a"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	second, err := s.Write(context.Background(), "alarm-1", []byte("b"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct paths, got %q twice", first)
	}
}

func TestRemove(t *testing.T) {
	s := newStore(t)

	path, err := s.Write(context.Background(), "alarm-1", []byte("a"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still present: %v", err)
	}
	if err := s.Remove(path); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if err := s.Remove("/etc/passwd"); err == nil {
		t.Fatal("expected error removing a path outside the store")
	}
}

func TestPruneKeepsOnlyCurrentAsset(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	old, err := s.Write(ctx, "alarm-1", []byte("a"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	keep, err := s.Write(ctx, "alarm-1", []byte("b"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	other, err := s.Write(ctx, "alarm-2", []byte("c"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	removed, err := s.Prune("alarm-1", keep)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 1 || removed[0] != old {
		t.Fatalf("removed = %v, want [%s]", removed, old)
	}
	if _, err := os.Stat(old); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("old asset still present: %v", err)
	}
	for _, p := range []string{keep, other} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s: %v", p, err)
		}
	}
}
