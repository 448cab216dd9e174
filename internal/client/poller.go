package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MessageSource is implemented by *API
type MessageSource interface {
	MessagesAfter(ctx context.Context, cursor int64) ([]Message, error)
}

// Poller periodically fetches messages newer than its cursor and renders them.
// Fetch failures are reported and retried on the next tick; the loop only ends on Stop or context cancellation.
type Poller struct {
	source   MessageSource
	printer  *Printer
	logger   *zap.SugaredLogger
	username string
	interval time.Duration

	cursor   atomic.Int64
	stopped  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewPoller(source MessageSource, printer *Printer, logger *zap.SugaredLogger, username string, interval time.Duration) *Poller {
	return &Poller{
		source:   source,
		printer:  printer,
		logger:   logger,
		username: username,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Cursor returns id of the last message seen
func (p *Poller) Cursor() int64 {
	return p.cursor.Load()
}

// Run polls until Stop is called or ctx is done
func (p *Poller) Run(ctx context.Context) {
	defer close(p.done)

	p.printer.Info("Listening for new messages...")

	for {
		if p.stopped.Load() || ctx.Err() != nil {
			return
		}

		p.poll(ctx)

		timer := time.NewTimer(p.interval)
		select {
		case <-timer.C:
		case <-p.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	cursor := p.cursor.Load()

	messages, err := p.source.MessagesAfter(ctx, cursor)
	if err != nil {
		if ctx.Err() != nil || p.stopped.Load() {
			return
		}
		p.logger.Debugw("fetching messages failed", "cursor", cursor, "error", err)

		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr):
			p.printer.Notice("Error fetching messages: HTTP %d", apiErr.StatusCode)
		default:
			p.printer.Notice("Could not contact server for new messages.")
		}
		return
	}

	for _, m := range messages {
		if m.ID > cursor {
			cursor = m.ID
		}
		p.printer.Message(m, m.Sender == p.username)
	}

	p.cursor.Store(cursor)
}

// Stop signals the loop to finish and waits at most timeout for it.
// It reports whether the loop exited in time.
func (p *Poller) Stop(timeout time.Duration) bool {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.stop)
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}
