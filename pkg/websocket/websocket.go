package websocketPkg

import (
	"RiseAndShine/internal/api/playback"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var ErrStreamClosed = errors.New("session event stream closed")

type ISessionStream interface {
	// Next blocks for the next event. It returns ErrStreamClosed once the
	// server ends the stream normally.
	Next() (playback.EventMessage, error)
	Close() error
}

type sessionStream struct {
	conn         *websocket.Conn
	mu           sync.Mutex
	closed       bool
	done         chan struct{}
	pingInterval time.Duration
	writeTimeout time.Duration
}

type frame struct {
	playback.EventMessage
	Error string `json:"error"`
}

// EventsURL turns an http(s) API base into the websocket URL of a session's
// event stream.
func EventsURL(apiBase, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(apiBase, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	u.Path += "/sessions/" + url.PathEscape(sessionID) + "/events"
	return u.String(), nil
}

// Dial connects to a session event stream. token may be empty.
func Dial(ctx context.Context, streamURL, token string) (ISessionStream, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := dialer.DialContext(ctx, streamURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: status %d: %w", streamURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", streamURL, err)
	}

	s := &sessionStream{
		conn:         conn,
		done:         make(chan struct{}),
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
	}

	conn.SetPingHandler(func(appData string) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(s.writeTimeout))
	})

	go s.keepAlive()

	return s, nil
}

func (s *sessionStream) Next() (playback.EventMessage, error) {
	_, message, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return playback.EventMessage{}, ErrStreamClosed
		}
		return playback.EventMessage{}, fmt.Errorf("error reading session event: %w", err)
	}

	var f frame
	if err := jsoniter.Unmarshal(message, &f); err != nil {
		return playback.EventMessage{}, fmt.Errorf("error unmarshaling session event: %w", err)
	}
	if f.Error != "" {
		return playback.EventMessage{}, errors.New(f.Error)
	}
	return f.EventMessage, nil
}

func (s *sessionStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(s.writeTimeout))
	s.mu.Unlock()

	return s.conn.Close()
}

func (s *sessionStream) keepAlive() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		err := s.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(s.writeTimeout))
		s.mu.Unlock()
		if err != nil {
			// Next surfaces the broken connection to the caller
			return
		}
	}
}
