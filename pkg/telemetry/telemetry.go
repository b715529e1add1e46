package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindAudioFileResolution Kind = "audio_file_resolution"
	KindPlaybackError       Kind = "playback_error"
	KindDismissalSuccess    Kind = "dismissal_success"
)

// Event is a structured diagnostic record. Only the fields relevant to Kind
// are populated.
type Event struct {
	Kind        Kind      `json:"kind"`
	At          time.Time `json:"at"`
	Context     string    `json:"context"`
	Found       bool      `json:"found,omitempty"`
	Path        string    `json:"path,omitempty"`
	Strategy    string    `json:"strategy,omitempty"`
	Category    string    `json:"category,omitempty"`
	Method      string    `json:"method,omitempty"`
	AudioPlayed bool      `json:"audio_played,omitempty"`
}

// Sink receives events. Emit must never block the caller.
type Sink interface {
	Emit(e Event)
}

func AudioFileResolution(found bool, path, strategy, context string) Event {
	return Event{
		Kind:     KindAudioFileResolution,
		At:       time.Now(),
		Context:  context,
		Found:    found,
		Path:     path,
		Strategy: strategy,
	}
}

func PlaybackError(category, context string) Event {
	return Event{
		Kind:     KindPlaybackError,
		At:       time.Now(),
		Context:  context,
		Category: category,
	}
}

func DismissalSuccess(method string, audioPlayed bool, context string) Event {
	return Event{
		Kind:        KindDismissalSuccess,
		At:          time.Now(),
		Context:     context,
		Method:      method,
		AudioPlayed: audioPlayed,
	}
}

// LogSink buffers events and writes them to logrus from a single drain
// goroutine. Events arriving while the buffer is full are dropped.
type LogSink struct {
	log     *logrus.Logger
	events  chan Event
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

func NewLogSink(log *logrus.Logger, buffer int) *LogSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &LogSink{
		log:    log,
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

func (s *LogSink) Emit(e Event) {
	select {
	case <-s.done:
		s.dropped.Add(1)
		return
	default:
	}

	select {
	case s.events <- e:
	default:
		s.dropped.Add(1)
	}
}

func (s *LogSink) Dropped() int64 {
	return s.dropped.Load()
}

// Run drains events until ctx is cancelled, then flushes what is buffered.
func (s *LogSink) Run(ctx context.Context) error {
	for {
		select {
		case e := <-s.events:
			s.write(e)
		case <-ctx.Done():
			s.closeOnce.Do(func() { close(s.done) })
			for {
				select {
				case e := <-s.events:
					s.write(e)
				default:
					if n := s.dropped.Load(); n > 0 {
						s.log.WithField("dropped", n).Warn("Telemetry events dropped")
					}
					return nil
				}
			}
		}
	}
}

func (s *LogSink) write(e Event) {
	fields := logrus.Fields{
		"event":   string(e.Kind),
		"context": e.Context,
		"at":      e.At.Format(time.RFC3339Nano),
	}

	switch e.Kind {
	case KindAudioFileResolution:
		fields["found"] = e.Found
		fields["path"] = e.Path
		fields["strategy"] = e.Strategy
	case KindPlaybackError:
		fields["category"] = e.Category
	case KindDismissalSuccess:
		fields["method"] = e.Method
		fields["audio_played"] = e.AudioPlayed
	}

	s.log.WithFields(fields).Info("telemetry")
}
