package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
)

// maxLineBytes bounds a single input line. Longer lines are dropped, not sent.
const maxLineBytes = 32 << 10

type inputLine struct {
	text    string
	tooLong bool
}

// Terminal drives the interactive session: a login menu, then the chat room
type Terminal struct {
	cfg     Config
	api     *API
	printer *Printer
	logger  *zap.SugaredLogger
	lines   <-chan inputLine
}

// NewTerminal returns Terminal reading user input from in and writing to printer
func NewTerminal(cfg Config, api *API, printer *Printer, logger *zap.SugaredLogger, in io.Reader) *Terminal {
	return &Terminal{
		cfg:     cfg,
		api:     api,
		printer: printer,
		logger:  logger,
		lines:   readLines(in),
	}
}

// readLines feeds lines of in to the returned channel and closes it at end of input.
// A line over maxLineBytes is consumed in full and delivered with tooLong set.
func readLines(in io.Reader) <-chan inputLine {
	lines := make(chan inputLine)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(in)
		for {
			var (
				buf     []byte
				tooLong bool
			)
			for {
				fragment, isPrefix, err := reader.ReadLine()
				if err != nil {
					return
				}
				if !tooLong {
					if len(buf)+len(fragment) > maxLineBytes {
						tooLong, buf = true, nil
					} else {
						buf = append(buf, fragment...)
					}
				}
				if !isPrefix {
					break
				}
			}
			lines <- inputLine{text: string(buf), tooLong: tooLong}
		}
	}()
	return lines
}

// readLine waits for the next input line. It returns false on end of input or when ctx is done.
func (t *Terminal) readLine(ctx context.Context) (inputLine, bool) {
	select {
	case <-ctx.Done():
		return inputLine{}, false
	case line, ok := <-t.lines:
		return line, ok
	}
}

func (t *Terminal) ask(ctx context.Context, label string) (string, bool) {
	t.printer.Prompt("%s", label)
	line, ok := t.readLine(ctx)
	if line.tooLong {
		t.printer.Notice("Input too long, ignored.")
	}
	return strings.TrimSpace(line.text), ok
}

// Run shows the menu until the user logs in or exits, then runs the chat room until interrupted
func (t *Terminal) Run(ctx context.Context) error {
	t.printer.Info("=== Chatroom Client ===")
	t.printer.Info("Server: %s\n", t.cfg.ServerURL)

	for {
		t.printer.Info("1) Login")
		t.printer.Info("2) Create account")
		t.printer.Info("3) Exit")

		choice, ok := t.ask(ctx, "Choose an option: ")
		if !ok {
			t.printer.Info("\nGoodbye.")
			return nil
		}

		switch choice {
		case "1":
			username, ok := t.login(ctx)
			if ok {
				t.chat(ctx, username)
				return nil
			}
		case "2":
			t.signup(ctx)
		case "3":
			t.printer.Info("Goodbye.")
			return nil
		default:
			t.printer.Notice("Invalid option. Please choose 1, 2, or 3.\n")
		}

		if ctx.Err() != nil {
			t.printer.Info("\nGoodbye.")
			return nil
		}
	}
}

// credentials asks for username and password, rejecting empty values locally
func (t *Terminal) credentials(ctx context.Context, userLabel, passLabel string) (string, string, bool) {
	username, ok := t.ask(ctx, userLabel)
	if !ok {
		return "", "", false
	}
	password, ok := t.ask(ctx, passLabel)
	if !ok {
		return "", "", false
	}

	if username == "" || password == "" {
		t.printer.Error("Username and password cannot be empty.")
		return "", "", false
	}

	return username, password, true
}

func (t *Terminal) signup(ctx context.Context) {
	t.printer.Info("\n=== Create New Account ===")

	username, password, ok := t.credentials(ctx, "Choose a username: ", "Choose a password: ")
	if !ok {
		return
	}

	if err := t.api.Signup(ctx, username, password); err != nil {
		t.reportFailure("Signup failed", err)
		return
	}

	t.printer.Success("Account created successfully!")
}

func (t *Terminal) login(ctx context.Context) (string, bool) {
	t.printer.Info("\n=== Login ===")

	username, password, ok := t.credentials(ctx, "Username: ", "Password: ")
	if !ok {
		return "", false
	}

	if err := t.api.Login(ctx, username, password); err != nil {
		t.reportFailure("Login failed", err)
		return "", false
	}

	t.printer.Success("Login successful.")
	return username, true
}

// chat runs the poller in the background and sends every non-empty input line until ctx is done or input ends
func (t *Terminal) chat(ctx context.Context, username string) {
	pollCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller := NewPoller(t.api, t.printer, t.logger, username, t.cfg.PollInterval)
	go poller.Run(pollCtx)

	t.printer.Info("\n=== You are now in the chatroom ===")
	t.printer.Info("Type your message and press Enter to send.")
	t.printer.Info("Press Ctrl+C to exit.\n")

	for {
		line, ok := t.readLine(ctx)
		if !ok {
			break
		}

		if line.tooLong {
			t.printer.Notice("Message too long (max %d bytes), not sent.", maxLineBytes)
			continue
		}

		content := strings.TrimSpace(line.text)
		if content == "" {
			continue
		}

		if _, err := t.api.Send(ctx, username, content); err != nil {
			if ctx.Err() != nil {
				break
			}
			t.reportFailure("Error sending message", err)
		}
	}

	t.printer.Info("\nExiting chat...")
	if !poller.Stop(t.cfg.ShutdownTimeout) {
		t.logger.Warnf("poller did not stop within %s", t.cfg.ShutdownTimeout)
	}
}

// reportFailure prints err the way the user should see it and never aborts the session
func (t *Terminal) reportFailure(prefix string, err error) {
	t.logger.Debugw(prefix, "error", err)

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		t.printer.Error("%s: %s", prefix, apiErr.Error())
	case errors.Is(err, ErrTransport):
		t.printer.Error("%s: could not reach server.", prefix)
	default:
		t.printer.Error("%s: %v", prefix, err)
	}
}
