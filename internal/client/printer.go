package client

import (
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
)

// Printer serializes terminal output of the input loop and the poller
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	colors bool
}

func NewPrinter(out io.Writer, colors bool) *Printer {
	return &Printer{out: out, colors: colors}
}

func (p *Printer) write(style color.Color, newline bool, format string, args ...interface{}) {
	text := fmt.Sprintf(format, args...)
	if newline {
		text += "\n"
	}
	if p.colors {
		text = style.Render(text)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, text)
}

// Message renders a chat message, own marks messages sent by the logged in user
func (p *Printer) Message(m Message, own bool) {
	if own {
		p.write(color.FgGreen, true, "[You @ %s]: %s", m.Timestamp, m.Content)
		return
	}
	p.write(color.FgCyan, true, "[%s @ %s]: %s", m.Sender, m.Timestamp, m.Content)
}

func (p *Printer) Info(format string, args ...interface{}) {
	p.write(color.FgDefault, true, format, args...)
}

// Prompt prints format without a trailing newline
func (p *Printer) Prompt(format string, args ...interface{}) {
	p.write(color.FgDefault, false, format, args...)
}

func (p *Printer) Success(format string, args ...interface{}) {
	p.write(color.FgGreen, true, format, args...)
}

func (p *Printer) Notice(format string, args ...interface{}) {
	p.write(color.FgYellow, true, format, args...)
}

func (p *Printer) Error(format string, args ...interface{}) {
	p.write(color.FgRed, true, format, args...)
}
