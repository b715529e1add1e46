package playbackService

import (
	"RiseAndShine/internal/api/alarm"
	"RiseAndShine/internal/api/playback"
	"RiseAndShine/internal/entity"
	contextPkg "RiseAndShine/pkg/context"
	"RiseAndShine/pkg/player"
	"RiseAndShine/pkg/retry"
	"RiseAndShine/pkg/telemetry"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	explainNotFound   = "No wake-up audio could be found for this alarm, so it was dismissed instead of ringing silently."
	explainPlayback   = "The wake-up audio could not be played after several attempts."
	explainTimeout    = "The alarm rang without being dismissed and was stopped."
	explainSuperseded = "Replaced by a new firing of the same alarm."
	explainShutdown   = "The alarm service is shutting down."
)

// session is one alarm-firing lifecycle. All fields below mu are guarded by
// it; phase only ever moves forward.
type session struct {
	id      string
	alarm   entity.Alarm
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time

	mu           sync.Mutex
	phase        entity.AlarmPhase
	resolution   *entity.ResolutionResult
	attempts     int
	audioPlayed  bool
	dismissal    entity.DismissalState
	method       entity.DismissalMethod
	explanation  string
	snoozedUntil *time.Time
	dismissedAt  *time.Time
	handle       player.Handle
	subs         map[int]chan Event
	nextSub      int
}

func (s *session) snapshotLocked() entity.SessionSnapshot {
	snap := entity.SessionSnapshot{
		ID:               s.id,
		AlarmID:          s.alarm.ID,
		Phase:            s.phase,
		PlaybackAttempts: s.attempts,
		AudioPlayed:      s.audioPlayed,
		Dismissal:        s.dismissal,
		Method:           s.method,
		Explanation:      s.explanation,
		SnoozedUntil:     s.snoozedUntil,
		StartedAt:        s.started,
		DismissedAt:      s.dismissedAt,
	}
	if s.resolution != nil {
		r := *s.resolution
		snap.Resolution = &r
	}
	return snap
}

func (s *session) snapshot() entity.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// publishLocked delivers ev without blocking; slow subscribers miss events.
func (s *session) publishLocked(ev Event) {
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *session) publish(typ, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == entity.PhaseDismissed {
		return
	}
	s.publishLocked(Event{Type: typ, Message: message, Session: s.snapshotLocked()})
}

func (s *session) setResolution(res entity.ResolutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolution = &res
}

// enterPlaying moves awaiting_audio to playing. It fails once dismissed.
func (s *session) enterPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != entity.PhaseAwaitingAudio {
		return false
	}
	s.phase = entity.PhasePlaying
	return true
}

func (s *session) countAttempt() {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()
}

func (s *session) attach(h player.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == entity.PhaseDismissed {
		return false
	}
	s.handle = h
	s.audioPlayed = true
	return true
}

func (s *session) detach(h player.Handle) {
	s.mu.Lock()
	if s.handle == h {
		s.handle = nil
	}
	s.mu.Unlock()
}

func (s *playbackService) Fire(ctx context.Context, alarmID string) (entity.SessionSnapshot, error) {
	requestID := contextPkg.GetRequestID(ctx)

	a, err := s.alarms.GetAlarm(ctx, alarmID)
	if err != nil {
		return entity.SessionSnapshot{}, err
	}
	if !a.Enabled {
		return entity.SessionSnapshot{}, playback.ErrAlarmDisabled
	}

	sessCtx, cancel := context.WithCancel(contextPkg.Detach(ctx))
	sess := &session{
		id:      uuid.NewString(),
		alarm:   a,
		ctx:     sessCtx,
		cancel:  cancel,
		started: time.Now().UTC(),
		phase:   entity.PhaseAwaitingAudio,
		dismissal: entity.DismissalState{
			MaxVoiceAttempts: s.cfg.MaxVoiceAttempts,
		},
		subs: make(map[int]chan Event),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return entity.SessionSnapshot{}, playback.ErrServiceClosed
	}
	prev := s.byAlarm[a.ID]
	s.sessions[sess.id] = sess
	s.byAlarm[a.ID] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	if prev != nil {
		s.dismiss(prev, entity.DismissSuperseded, explainSuperseded)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"alarm_id":   a.ID,
		"session_id": sess.id,
	}).Info("Alarm fired")

	snap := sess.snapshot()
	go s.run(sess)
	return snap, nil
}

func (s *playbackService) run(sess *session) {
	defer s.wg.Done()

	res := s.resolver.Resolve(sess.ctx, sess.alarm, sess.id)
	if sess.ctx.Err() != nil {
		return
	}
	sess.setResolution(res)

	if !res.Found {
		s.dismiss(sess, entity.DismissFailure, explainNotFound)
		return
	}
	if !sess.enterPlaying() {
		return
	}
	sess.publish(EventPhase, "")

	s.ring(sess, res.Path)
}

// ring plays path until the session is dismissed, replaying after each
// natural end. The ring timeout bounds the whole loop.
func (s *playbackService) ring(sess *session, path string) {
	timer := time.AfterFunc(s.cfg.RingTimeout, func() {
		s.dismiss(sess, entity.DismissTimeout, explainTimeout)
	})
	defer timer.Stop()

	fields := logrus.Fields{
		"alarm_id":   sess.alarm.ID,
		"session_id": sess.id,
		"path":       path,
	}

	for sess.ctx.Err() == nil {
		_, err := retry.Run(sess.ctx, s.cfg.Playback, s.cfg.Sleep, func(ctx context.Context, at retry.Attempt) error {
			return s.playOnce(ctx, sess, path)
		}, func(at retry.Attempt, wait time.Duration) {
			s.log.WithFields(fields).WithFields(logrus.Fields{
				"attempt": at.Index,
				"wait_ms": wait.Milliseconds(),
				"error":   at.PriorErr.Error(),
			}).Warn("Playback failed, reloading")
		})
		if sess.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.WithFields(fields).WithField("error", err.Error()).Error("Playback failed")
			s.dismiss(sess, entity.DismissFailure, explainPlayback)
			return
		}
		if err := s.cfg.Sleep(sess.ctx, s.cfg.ReplayGap); err != nil {
			return
		}
	}
}

// playOnce plays path to the end. Failures are wrapped so the classifier
// treats them as reloadable.
func (s *playbackService) playOnce(ctx context.Context, sess *session, path string) error {
	sess.countAttempt()

	h, err := s.player.Play(ctx, path)
	if err != nil {
		return s.playbackFailed(sess, err)
	}
	if !sess.attach(h) {
		_ = h.Stop()
		return nil
	}

	err = h.Wait()
	sess.detach(h)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return s.playbackFailed(sess, err)
	}
	return nil
}

func (s *playbackService) playbackFailed(sess *session, err error) error {
	wrapped := retry.PlaybackFailure(err)
	verdict := retry.Classify(wrapped)
	s.sink.Emit(telemetry.PlaybackError(string(verdict.Category), sess.id))
	return wrapped
}

// dismiss performs the single terminal transition of sess. It reports
// whether this call won; later calls are no-ops.
func (s *playbackService) dismiss(sess *session, method entity.DismissalMethod, explanation string) bool {
	sess.mu.Lock()
	if sess.phase == entity.PhaseDismissed {
		sess.mu.Unlock()
		return false
	}
	now := time.Now().UTC()
	sess.phase = entity.PhaseDismissed
	sess.method = method
	sess.explanation = explanation
	sess.dismissedAt = &now
	sess.dismissal.Terminal = true
	sess.dismissal.Listening = false
	handle := sess.handle
	sess.handle = nil
	audioPlayed := sess.audioPlayed
	snap := sess.snapshotLocked()
	sess.publishLocked(Event{Type: EventDismissed, Message: explanation, Session: snap})
	for id, ch := range sess.subs {
		close(ch)
		delete(sess.subs, id)
	}
	sess.mu.Unlock()

	sess.cancel()
	if handle != nil {
		if err := handle.Stop(); err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": sess.id,
				"error":      err.Error(),
			}).Warn("Failed to stop playback")
		}
	}

	s.sink.Emit(telemetry.DismissalSuccess(string(method), audioPlayed, sess.id))
	s.retire(sess, snap)

	s.log.WithFields(logrus.Fields{
		"alarm_id":     sess.alarm.ID,
		"session_id":   sess.id,
		"method":       method,
		"audio_played": audioPlayed,
	}).Info("Alarm dismissed")
	return true
}

// retire drops sess from the live registry and keeps its final snapshot
// for later reads.
func (s *playbackService) retire(sess *session, snap entity.SessionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sess.id)
	if s.byAlarm[sess.alarm.ID] == sess {
		delete(s.byAlarm, sess.alarm.ID)
	}

	s.finished[sess.id] = snap
	s.order = append(s.order, sess.id)
	for len(s.order) > s.cfg.KeepFinished {
		delete(s.finished, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *playbackService) lookup(id string) (*session, entity.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, entity.SessionSnapshot{}, nil
	}
	if snap, ok := s.finished[id]; ok {
		return nil, snap, nil
	}
	return nil, entity.SessionSnapshot{}, playback.ErrSessionNotFound
}

// live returns the running session, or an error for unknown and
// finished sessions.
func (s *playbackService) live(id string) (*session, error) {
	sess, _, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, playback.ErrSessionDismissed
	}
	return sess, nil
}

func (s *playbackService) Session(id string) (entity.SessionSnapshot, error) {
	sess, snap, err := s.lookup(id)
	if err != nil {
		return entity.SessionSnapshot{}, err
	}
	if sess != nil {
		return sess.snapshot(), nil
	}
	return snap, nil
}

// Stop is the manual dismissal path. It always succeeds on a live session.
func (s *playbackService) Stop(ctx context.Context, id string) (entity.SessionSnapshot, error) {
	sess, err := s.live(id)
	if err != nil {
		return entity.SessionSnapshot{}, err
	}
	if !s.dismiss(sess, entity.DismissManual, "") {
		return entity.SessionSnapshot{}, playback.ErrSessionDismissed
	}
	s.resetSnooze(ctx, sess)
	return sess.snapshot(), nil
}

// Snooze consumes one snooze from the alarm policy and dismisses the
// session. An exhausted policy leaves the session ringing. A failure to
// record the snooze still silences the alarm.
func (s *playbackService) Snooze(ctx context.Context, id string) (entity.SessionSnapshot, error) {
	sess, err := s.live(id)
	if err != nil {
		return entity.SessionSnapshot{}, err
	}

	snooze := sess.alarm.Snooze
	a, err := s.alarms.RecordSnooze(ctx, sess.alarm.ID)
	switch {
	case errors.Is(err, alarm.ErrSnoozeLimitReached):
		sess.publish(EventGuidance, "Snooze limit reached. Stop the alarm or say a dismissal phrase.")
		return entity.SessionSnapshot{}, err
	case err != nil:
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"alarm_id":   sess.alarm.ID,
			"session_id": sess.id,
			"error":      err.Error(),
		}).Error("Failed to record snooze, snoozing anyway")
	default:
		snooze = a.Snooze
	}

	until := time.Now().UTC().Add(snooze.Duration)
	sess.mu.Lock()
	if sess.phase != entity.PhaseDismissed {
		sess.snoozedUntil = &until
	}
	sess.mu.Unlock()

	if !s.dismiss(sess, entity.DismissSnooze, "") {
		return entity.SessionSnapshot{}, playback.ErrSessionDismissed
	}
	return sess.snapshot(), nil
}

func (s *playbackService) resetSnooze(ctx context.Context, sess *session) {
	if err := s.alarms.ResetSnooze(ctx, sess.alarm.ID); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"alarm_id":   sess.alarm.ID,
			"error":      err.Error(),
		}).Warn("Failed to reset snooze counter")
	}
}

// Subscribe streams events for a session. The channel is closed after the
// dismissed event. For a finished session it yields the final state only.
func (s *playbackService) Subscribe(id string) (<-chan Event, func(), error) {
	sess, snap, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		ch := make(chan Event, 1)
		ch <- Event{Type: EventDismissed, Message: snap.Explanation, Session: snap}
		close(ch)
		return ch, func() {}, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	ch := make(chan Event, 16)
	if sess.phase == entity.PhaseDismissed {
		final := sess.snapshotLocked()
		ch <- Event{Type: EventDismissed, Message: final.Explanation, Session: final}
		close(ch)
		return ch, func() {}, nil
	}

	subID := sess.nextSub
	sess.nextSub++
	sess.subs[subID] = ch
	ch <- Event{Type: EventPhase, Session: sess.snapshotLocked()}

	unsubscribe := func() {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if c, ok := sess.subs[subID]; ok {
			close(c)
			delete(sess.subs, subID)
		}
	}
	return ch, unsubscribe, nil
}

// Shutdown dismisses every live session and waits for their loops.
func (s *playbackService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	live := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		s.dismiss(sess, entity.DismissFailure, explainShutdown)
	}
	s.wg.Wait()
}
