package playbackService

import (
	"RiseAndShine/internal/entity"
	"RiseAndShine/pkg/audiostore"
	"RiseAndShine/pkg/contentstore"
	"RiseAndShine/pkg/retry"
	"RiseAndShine/pkg/telemetry"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var errNoCandidate = fmt.Errorf("no candidate: %w", fs.ErrNotExist)

// DefaultStrategyTimeout bounds each strategy so a hung lookup falls
// through to the next one.
const DefaultStrategyTimeout = 5 * time.Second

// strategy yields a candidate path for the alarm. Candidates are checked for
// existence by the resolver, never by the strategy itself.
type strategy struct {
	name entity.ResolutionStrategy
	find func(ctx context.Context, a entity.Alarm) ([]string, error)
}

// Resolver locates playable audio for an alarm by trying strategies from
// most to least precise.
type Resolver struct {
	strategies []strategy
	timeout    time.Duration
	sink       telemetry.Sink
	log        *logrus.Logger
}

func NewResolver(content contentstore.Store, scanDirs []string, sink telemetry.Sink, log *logrus.Logger) *Resolver {
	r := &Resolver{timeout: DefaultStrategyTimeout, sink: sink, log: log}
	r.strategies = []strategy{
		{name: entity.StrategyDirect, find: directPath},
		{name: entity.StrategyContentStoreLookup, find: contentStoreLookup(content)},
		{name: entity.StrategyFilesystemScan, find: filesystemScan(uniqueDirs(scanDirs))},
	}
	return r
}

// SetStrategyTimeout changes the per-strategy bound. Non-positive values
// keep the current one.
func (r *Resolver) SetStrategyTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// Resolve returns the first candidate that passes the existence check.
// Every attempted strategy is reported to the telemetry sink under label.
func (r *Resolver) Resolve(ctx context.Context, a entity.Alarm, label string) entity.ResolutionResult {
	for i, s := range r.strategies {
		if ctx.Err() != nil {
			return entity.ResolutionResult{}
		}

		path, err := r.try(ctx, s, a)
		r.sink.Emit(telemetry.AudioFileResolution(err == nil, path, string(s.name), label))
		if err == nil {
			r.log.WithFields(logrus.Fields{
				"alarm_id": a.ID,
				"strategy": s.name,
				"path":     path,
			}).Info("Audio resolved")
			return entity.ResolutionResult{Found: true, Path: path, Strategy: s.name}
		}

		verdict := retry.ClassifyWithFallbacks(err, len(r.strategies)-i-1)
		r.log.WithFields(logrus.Fields{
			"alarm_id": a.ID,
			"strategy": s.name,
			"category": verdict.Category,
			"fallback": verdict.Retryable,
			"error":    err.Error(),
		}).Debug("Audio strategy yielded nothing")
	}

	r.log.WithField("alarm_id", a.ID).Warn("No audio found for alarm")
	return entity.ResolutionResult{}
}

type lookup struct {
	candidates []string
	err        error
}

// try runs one strategy within the strategy timeout. A strategy that
// ignores its context is abandoned when the timeout fires.
func (r *Resolver) try(ctx context.Context, s strategy, a entity.Alarm) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan lookup, 1)
	go func() {
		candidates, err := s.find(sctx, a)
		done <- lookup{candidates: candidates, err: err}
	}()

	var candidates []string
	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		candidates = res.candidates
	case <-sctx.Done():
		return "", fmt.Errorf("%s lookup: %w", s.name, sctx.Err())
	}
	for _, c := range candidates {
		if err := checkExists(c); err == nil {
			return c, nil
		}
	}
	return "", errNoCandidate
}

// checkExists accepts a non-empty regular file.
func checkExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return fmt.Errorf("%s: %w", path, fs.ErrNotExist)
	}
	return nil
}

func directPath(ctx context.Context, a entity.Alarm) ([]string, error) {
	if !a.GeneratedContent.HasAudio() {
		return nil, errNoCandidate
	}
	return []string{a.GeneratedContent.AudioAssetRef}, nil
}

func contentStoreLookup(content contentstore.Store) func(ctx context.Context, a entity.Alarm) ([]string, error) {
	return func(ctx context.Context, a entity.Alarm) ([]string, error) {
		if content == nil {
			return nil, errNoCandidate
		}
		key := contentstore.Key{AlarmID: a.ID, VoiceID: a.VoiceID}
		if gc := a.GeneratedContent; gc != nil {
			key.IntentID = gc.IntentID
			if gc.VoiceID != "" {
				key.VoiceID = gc.VoiceID
			}
		}
		path, err := content.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if path == "" {
			return nil, errNoCandidate
		}
		return []string{path}, nil
	}
}

type scanned struct {
	path string
	name string
	mod  time.Time
}

// sortNewestFirst orders matches by modification time, newest first. Asset
// names carry a ULID suffix, so equal times fall back to reverse name order.
func sortNewestFirst(found []scanned) {
	sort.SliceStable(found, func(i, j int) bool {
		if !found[i].mod.Equal(found[j].mod) {
			return found[i].mod.After(found[j].mod)
		}
		return found[i].name > found[j].name
	})
}

func filesystemScan(dirs []string) func(ctx context.Context, a entity.Alarm) ([]string, error) {
	return func(ctx context.Context, a entity.Alarm) ([]string, error) {
		if a.ID == "" {
			return nil, errNoCandidate
		}
		var candidates []string
		var errs []error
		for _, dir := range dirs {
			entries, err := os.ReadDir(dir)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			var found []scanned
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() || strings.HasPrefix(name, ".") || audiostore.IsPartial(name) {
					continue
				}
				if !strings.Contains(name, a.ID) {
					continue
				}
				sc := scanned{path: filepath.Join(dir, name), name: name}
				if info, err := e.Info(); err == nil {
					sc.mod = info.ModTime()
				}
				found = append(found, sc)
			}
			sortNewestFirst(found)
			for _, sc := range found {
				candidates = append(candidates, sc.path)
			}
		}
		if len(candidates) == 0 {
			if len(errs) > 0 {
				return nil, errors.Join(append(errs, errNoCandidate)...)
			}
			return nil, errNoCandidate
		}
		return candidates, nil
	}
}

func uniqueDirs(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		clean := filepath.Clean(d)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}
