package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSource answers MessagesAfter with the next scripted response, then empty results
type scriptedSource struct {
	mu      sync.Mutex
	calls   []int64
	results []func(cursor int64) ([]Message, error)
}

func (s *scriptedSource) MessagesAfter(_ context.Context, cursor int64) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, cursor)
	if len(s.results) == 0 {
		return []Message{}, nil
	}
	next := s.results[0]
	s.results = s.results[1:]
	return next(cursor)
}

func (s *scriptedSource) cursors() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.calls))
	copy(out, s.calls)
	return out
}

func messages(ms ...Message) func(int64) ([]Message, error) {
	return func(int64) ([]Message, error) { return ms, nil }
}

func failing(err error) func(int64) ([]Message, error) {
	return func(int64) ([]Message, error) { return nil, err }
}

func newTestPoller(source MessageSource, out *syncBuffer) *Poller {
	return NewPoller(source, NewPrinter(out, false), zap.NewNop().Sugar(), "alice", 5*time.Millisecond)
}

func TestPoller_AdvancesCursorAndRenders(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{results: []func(int64) ([]Message, error){
		messages(
			Message{ID: 1, Sender: "alice", Content: "hi", Timestamp: "t1"},
			Message{ID: 2, Sender: "bob", Content: "hey", Timestamp: "t2"},
		),
		messages(Message{ID: 3, Sender: "bob", Content: "again", Timestamp: "t3"}),
	}}
	out := &syncBuffer{}
	p := newTestPoller(source, out)

	go p.Run(context.Background())

	require.Eventually(t, func() bool { return p.Cursor() == 3 }, time.Second, time.Millisecond)
	require.True(t, p.Stop(time.Second))

	text := out.String()
	require.Contains(t, text, "Listening for new messages...")
	require.Contains(t, text, "[You @ t1]: hi\n")
	require.Contains(t, text, "[bob @ t2]: hey\n")
	require.Contains(t, text, "[bob @ t3]: again\n")
	require.Less(t, strings.Index(text, "hi"), strings.Index(text, "hey"))

	cursors := source.cursors()
	require.Equal(t, []int64{0, 2}, cursors[:2])
	for _, c := range cursors[2:] {
		require.Equal(t, int64(3), c)
	}
}

func TestPoller_CursorNeverMovesBack(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{results: []func(int64) ([]Message, error){
		messages(Message{ID: 5, Sender: "bob", Content: "five"}),
		messages(Message{ID: 4, Sender: "bob", Content: "late"}),
	}}
	out := &syncBuffer{}
	p := newTestPoller(source, out)

	go p.Run(context.Background())

	require.Eventually(t, func() bool { return len(source.cursors()) >= 3 }, time.Second, time.Millisecond)
	require.True(t, p.Stop(time.Second))
	require.Equal(t, int64(5), p.Cursor())
}

func TestPoller_SurvivesErrors(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{results: []func(int64) ([]Message, error){
		failing(fmt.Errorf("%w: connection refused", ErrTransport)),
		failing(&APIError{StatusCode: 500, Kind: "internal_error", Message: "internal server error"}),
		messages(Message{ID: 1, Sender: "bob", Content: "finally"}),
	}}
	out := &syncBuffer{}
	p := newTestPoller(source, out)

	go p.Run(context.Background())

	require.Eventually(t, func() bool { return p.Cursor() == 1 }, time.Second, time.Millisecond)
	require.True(t, p.Stop(time.Second))

	text := out.String()
	require.Contains(t, text, "Could not contact server for new messages.")
	require.Contains(t, text, "Error fetching messages: HTTP 500")
	require.Contains(t, text, "finally")
}

func TestPoller_StopsOnContext(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{}
	p := newTestPoller(source, &syncBuffer{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(source.cursors()) > 0 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after context cancellation")
	}
}

// blockingSource never returns until released
type blockingSource struct {
	release chan struct{}
}

func (b *blockingSource) MessagesAfter(context.Context, int64) ([]Message, error) {
	<-b.release
	return nil, nil
}

func TestPoller_StopIsBounded(t *testing.T) {
	t.Parallel()

	source := &blockingSource{release: make(chan struct{})}
	defer close(source.release)

	p := newTestPoller(source, &syncBuffer{})
	go p.Run(context.Background())

	start := time.Now()
	require.False(t, p.Stop(20*time.Millisecond))
	require.Less(t, time.Since(start), time.Second)

	// a second Stop is harmless
	require.False(t, p.Stop(time.Millisecond))
}

func TestPoller_AgainstAPI(t *testing.T) {
	t.Parallel()

	fake, ts := newFakeChat(t)
	api := NewAPI(ts.URL, time.Second)

	_, err := api.Send(context.Background(), "bob", "hello alice")
	require.NoError(t, err)

	out := &syncBuffer{}
	p := newTestPoller(api, out)
	go p.Run(context.Background())

	require.Eventually(t, func() bool { return p.Cursor() == 1 }, time.Second, time.Millisecond)

	_, err = api.Send(context.Background(), "alice", "hi bob")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.Cursor() == 2 }, time.Second, time.Millisecond)
	require.True(t, p.Stop(time.Second))

	require.Contains(t, out.String(), "[bob @ 2024-05-01 12:30:45]: hello alice")
	require.Contains(t, out.String(), "[You @ 2024-05-01 12:30:45]: hi bob")
	require.Len(t, fake.sent(), 2)
}
