package retry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"syscall"
)

type Category string

const (
	CategoryNetworkTransient Category = "network_transient"
	CategoryParseOrProtocol  Category = "parse_or_protocol"
	CategoryNotFound         Category = "not_found"
	CategoryPlaybackFailed   Category = "playback_failed"
	CategoryUnknown          Category = "unknown"
)

// Verdict is the outcome of classifying a failure. It is a pure function of
// the error and the number of resolution strategies still untried.
type Verdict struct {
	Retryable bool     `json:"retryable"`
	Category  Category `json:"category"`
}

// StatusCoder is implemented by provider errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

var transientStatus = map[int]bool{
	http.StatusRequestTimeout:     true,
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

var transientErrnos = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.ENETUNREACH,
	syscall.ENETDOWN,
	syscall.EHOSTUNREACH,
	syscall.EPIPE,
	syscall.ETIMEDOUT,
}

var transientPhrases = []string{
	"connection lost",
	"network connection was lost",
	"connection reset",
	"connection refused",
	"no internet",
	"not connected to the internet",
	"network is unreachable",
	"timed out",
	"timeout",
	"deadline exceeded",
}

var parsePhrases = []string{
	"cannot parse response",
	"could not parse",
	"failed to parse",
	"malformed response",
	"invalid json",
	"unexpected end of json input",
	"invalid character",
}

// Classify maps err to a Verdict assuming no resolution fallbacks remain.
func Classify(err error) Verdict {
	return ClassifyWithFallbacks(err, 0)
}

// ClassifyWithFallbacks maps err to a Verdict. A not-found condition is
// retryable only while remaining > 0.
func ClassifyWithFallbacks(err error, remaining int) Verdict {
	if err == nil || errors.Is(err, context.Canceled) {
		return Verdict{Retryable: false, Category: CategoryUnknown}
	}

	var pf *playbackFailure
	if errors.As(err, &pf) {
		return Verdict{Retryable: true, Category: CategoryPlaybackFailed}
	}

	if errors.Is(err, fs.ErrNotExist) {
		return Verdict{Retryable: remaining > 0, Category: CategoryNotFound}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return Verdict{Retryable: true, Category: CategoryParseOrProtocol}
	}

	if isTransient(err) {
		return Verdict{Retryable: true, Category: CategoryNetworkTransient}
	}

	var sc StatusCoder
	if errors.As(err, &sc) && transientStatus[sc.StatusCode()] {
		return Verdict{Retryable: true, Category: CategoryNetworkTransient}
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return Verdict{Retryable: true, Category: CategoryNetworkTransient}
		}
	}
	for _, phrase := range parsePhrases {
		if strings.Contains(msg, phrase) {
			return Verdict{Retryable: true, Category: CategoryParseOrProtocol}
		}
	}

	return Verdict{Retryable: false, Category: CategoryUnknown}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type playbackFailure struct {
	err error
}

func (p *playbackFailure) Error() string {
	return "playback failed: " + p.err.Error()
}

func (p *playbackFailure) Unwrap() error {
	return p.err
}

// PlaybackFailure marks err as a failure to load or play audio.
func PlaybackFailure(err error) error {
	if err == nil {
		return nil
	}
	return &playbackFailure{err: err}
}
