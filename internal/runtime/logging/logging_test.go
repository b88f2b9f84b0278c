package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/axonbridge/internal/runtime/events"
)

// spyAdapter records every call, children included, in one shared journal.
type spyAdapter struct {
	journal *journal
	fields  watermill.LogFields
}

type journal struct {
	mu    sync.Mutex
	lines []spyLine
}

type spyLine struct {
	level  string
	msg    string
	err    error
	fields watermill.LogFields
}

func newSpyAdapter() *spyAdapter {
	return &spyAdapter{journal: &journal{}}
}

func (s *spyAdapter) log(level, msg string, err error, fields watermill.LogFields) {
	s.journal.mu.Lock()
	defer s.journal.mu.Unlock()
	s.journal.lines = append(s.journal.lines, spyLine{level: level, msg: msg, err: err, fields: s.fields.Add(fields)})
}

func (s *spyAdapter) Error(msg string, err error, fields watermill.LogFields) {
	s.log("error", msg, err, fields)
}
func (s *spyAdapter) Info(msg string, fields watermill.LogFields)  { s.log("info", msg, nil, fields) }
func (s *spyAdapter) Debug(msg string, fields watermill.LogFields) { s.log("debug", msg, nil, fields) }
func (s *spyAdapter) Trace(msg string, fields watermill.LogFields) { s.log("trace", msg, nil, fields) }

func (s *spyAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &spyAdapter{journal: s.journal, fields: s.fields.Add(fields)}
}

func (s *spyAdapter) lines() []spyLine {
	s.journal.mu.Lock()
	defer s.journal.mu.Unlock()
	return append([]spyLine(nil), s.journal.lines...)
}

func TestServiceLoggerForwardsToWatermill(t *testing.T) {
	spy := newSpyAdapter()
	logger := NewWatermillServiceLogger(spy)
	boom := errors.New("boom")

	logger.Debug("dial", LogFields{"scheme": "nats"})
	logger.Info("connected", nil)
	logger.Trace("frame", LogFields{"n": 3})
	logger.Error("publish failed", boom, LogFields{"topic": "axon"})
	logger.With(LogFields{"component": "dealer"}).Info("closed", LogFields{"reason": "shutdown"})

	lines := spy.lines()
	require.Len(t, lines, 5)

	levels := make([]string, len(lines))
	for i, l := range lines {
		levels[i] = l.level
	}
	assert.Equal(t, []string{"debug", "info", "trace", "error", "info"}, levels)
	assert.Equal(t, "nats", lines[0].fields["scheme"])
	assert.ErrorIs(t, lines[3].err, boom)
	assert.Equal(t, watermill.LogFields{"component": "dealer", "reason": "shutdown"}, lines[4].fields)
}

func TestAdapterForwardsToServiceLogger(t *testing.T) {
	spy := newSpyAdapter()
	adapter := NewWatermillAdapter(NewWatermillServiceLogger(spy))

	adapter.Info("subscribed", watermill.LogFields{"topic": "replies"})
	adapter.With(watermill.LogFields{"subscriber": "nats"}).Error("ack failed", errors.New("gone"), nil)

	lines := spy.lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "replies", lines[0].fields["topic"])
	assert.Equal(t, "nats", lines[1].fields["subscriber"])
	assert.EqualError(t, lines[1].err, "gone")
}

func TestConstructorsRejectNil(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"slog", func() { NewSlogServiceLogger(nil) }},
		{"watermill", func() { NewWatermillServiceLogger(nil) }},
		{"adapter", func() { NewWatermillAdapter(nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.fn)
		})
	}
}

func TestFieldConversions(t *testing.T) {
	assert.Nil(t, toWatermillFields(nil))
	assert.Nil(t, fromWatermillFields(nil))
	assert.Equal(t, LogFields{"port": 8080}, fromWatermillFields(toWatermillFields(LogFields{"port": 8080})))
}

func TestSlogServiceLoggerWritesStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogServiceLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.With(LogFields{"component": "server"}).Info("listening", LogFields{"addr": "127.0.0.1:8080"})

	out := buf.String()
	assert.Contains(t, out, `"msg":"listening"`)
	assert.Contains(t, out, `"component":"server"`)
	assert.Contains(t, out, `"addr":"127.0.0.1:8080"`)
}

func TestRequestLine(t *testing.T) {
	rec := events.RequestRecord{
		ClientAddr: "10.0.0.7:51234",
		StartTime:  time.Date(2024, time.March, 5, 14, 7, 9, 0, time.FixedZone("CET", 3600)),
		Method:     "POST",
		Path:       "/receive-tagged?mid=order-1",
		Proto:      "HTTP/1.1",
		Status:     200,
		Duration:   42 * time.Millisecond,
	}

	tests := []struct {
		name   string
		client string
		want   string
	}{
		{"host and port", "10.0.0.7:51234", `10.0.0.7 - - [05/Mar/2024:14:07:09 +0100] "POST /receive-tagged?mid=order-1 HTTP/1.1" 200 42ms`},
		{"bare host", "10.0.0.7", `10.0.0.7 - - [05/Mar/2024:14:07:09 +0100] "POST /receive-tagged?mid=order-1 HTTP/1.1" 200 42ms`},
		{"unknown client", "", `- - - [05/Mar/2024:14:07:09 +0100] "POST /receive-tagged?mid=order-1 HTTP/1.1" 200 42ms`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rec
			r.ClientAddr = tt.client
			assert.Equal(t, tt.want, RequestLine(r))
		})
	}
}

func TestRequestFields(t *testing.T) {
	fields := RequestFields(events.RequestRecord{Method: "GET", Path: "/_server/", Status: 200, Duration: 2 * time.Millisecond})
	assert.Equal(t, 200, fields["status"])
	assert.Equal(t, int64(2), fields["duration_ms"])
	assert.Equal(t, "GET", fields["method"])
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.With(LogFields{"a": 1}).Error("ignored", errors.New("boom"), nil)
		logger.Debug(strings.Repeat("x", 3), nil)
	})
}
