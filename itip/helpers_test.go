package itip

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/require"
)

type sentResponse struct {
	recipients []Attendee
	msg        *Message
}

type recordingTransport struct {
	scheme string
	err    error

	mu   sync.Mutex
	sent []sentResponse
}

func (t *recordingTransport) Scheme() string {
	return t.scheme
}

func (t *recordingTransport) SendItems(_ context.Context, recipients []Attendee, msg *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentResponse{recipients: recipients, msg: msg})
	return t.err
}

func (t *recordingTransport) responses() []sentResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]sentResponse(nil), t.sent...)
}

type recordingListener struct {
	mu          sync.Mutex
	completions []Completion
}

func (l *recordingListener) OnComplete(c Completion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completions = append(l.completions, c)
}

func (l *recordingListener) byKind(kind CompletionKind) []Completion {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Completion
	for _, c := range l.completions {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type fixedScheduling struct {
	attendee mo.Option[Attendee]
}

func (s fixedScheduling) InvitedAttendee(*Item) mo.Option[Attendee] {
	return s.attendee
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestProcessor(t *testing.T, def Transport) (*Processor, *Dispatcher) {
	t.Helper()
	d, err := NewDispatcher(def, testLogger())
	require.NoError(t, err)
	p, err := NewProcessor(d, testLogger())
	require.NoError(t, err)
	return p, d
}
