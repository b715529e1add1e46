package log

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestErrorWithTraceIDPrefersRequestID(t *testing.T) {
	logger, hook := test.NewNullLogger()

	got := ErrorWithTraceID(logger, Fields{"request_id": "01REQ"}, "boom")
	if got != "01REQ" {
		t.Fatalf("trace id = %q", got)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Data["trace_id"] != "01REQ" {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestErrorWithTraceIDGeneratesUUID(t *testing.T) {
	logger, _ := test.NewNullLogger()

	for _, fields := range []Fields{nil, {"request_id": "unknown"}} {
		got := ErrorWithTraceID(logger, fields, "boom")
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("trace id %q is not a uuid", got)
		}
	}
}
