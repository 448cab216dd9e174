package client

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrinter_Plain(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, false)

	p.Message(Message{Sender: "alice", Content: "hi", Timestamp: "ts"}, true)
	p.Message(Message{Sender: "bob", Content: "hey", Timestamp: "ts"}, false)
	p.Notice("retrying %d", 1)

	require.Equal(t, "[You @ ts]: hi\n[bob @ ts]: hey\nretrying 1\n", out.String())
}

func TestPrinter_Colors(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, true)

	p.Message(Message{Sender: "bob", Content: "hey", Timestamp: "ts"}, false)

	require.Contains(t, out.String(), "[bob @ ts]: hey")
}
