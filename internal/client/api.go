package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

// ErrTransport wraps every failure to reach the server: refused connections, timeouts, broken responses
var ErrTransport = errors.New("could not reach server")

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "HTTP " + strconv.Itoa(e.StatusCode)
}

// Message is a chat message as returned by the server
type Message struct {
	ID        int64
	Sender    string
	Content   string
	Timestamp string
}

// API is a client of the chat HTTP API
type API struct {
	baseURL string
	http    *http.Client
	parsers fastjson.ParserPool
}

// NewAPI returns API talking to baseURL with every call bounded by timeout
func NewAPI(baseURL string, timeout time.Duration) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Signup creates an account
func (a *API) Signup(ctx context.Context, username, password string) error {
	_, err := a.do(ctx, http.MethodPost, "/signup", map[string]string{
		"username": username,
		"password": password,
	}, http.StatusCreated, nil)
	return err
}

// Login verifies credentials. No session is created, the caller keeps the username.
func (a *API) Login(ctx context.Context, username, password string) error {
	_, err := a.do(ctx, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	}, http.StatusOK, nil)
	return err
}

// Send posts content on behalf of username and returns the stored message
func (a *API) Send(ctx context.Context, username, content string) (Message, error) {
	var m Message
	_, err := a.do(ctx, http.MethodPost, "/send", map[string]string{
		"username": username,
		"content":  content,
	}, http.StatusCreated, func(v *fastjson.Value) error {
		data := v.Get("data")
		if data == nil {
			return errors.New("missing field \"data\"")
		}
		var err error
		m, err = decodeMessage(data)
		return err
	})
	return m, err
}

// MessagesAfter fetches messages with id greater than cursor in ascending id order
func (a *API) MessagesAfter(ctx context.Context, cursor int64) ([]Message, error) {
	query := url.Values{"after_id": {strconv.FormatInt(cursor, 10)}}

	var messages []Message
	_, err := a.do(ctx, http.MethodGet, "/messages?"+query.Encode(), nil, http.StatusOK, func(v *fastjson.Value) error {
		mv := v.Get("messages")
		if mv == nil {
			return errors.New("missing field \"messages\"")
		}
		values, err := mv.Array()
		if err != nil {
			return fmt.Errorf("field \"messages\": %w", err)
		}
		messages = make([]Message, 0, len(values))
		for _, item := range values {
			m, err := decodeMessage(item)
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return nil
	})
	return messages, err
}

func decodeMessage(v *fastjson.Value) (Message, error) {
	idValue := v.Get("id")
	if idValue == nil {
		return Message{}, errors.New("message field \"id\" is missing")
	}
	id, err := idValue.Int64()
	if err != nil {
		return Message{}, fmt.Errorf("message field \"id\": %w", err)
	}
	return Message{
		ID:        id,
		Sender:    string(v.GetStringBytes("sender")),
		Content:   string(v.GetStringBytes("content")),
		Timestamp: string(v.GetStringBytes("timestamp")),
	}, nil
}

// do performs a request, checks for want status and hands the parsed body to decode
func (a *API) do(ctx context.Context, method, path string, body interface{}, want int, decode func(*fastjson.Value) error) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	parser := a.parsers.Get()
	defer a.parsers.Put(parser)
	v, parseErr := parser.ParseBytes(raw)

	if resp.StatusCode != want {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if parseErr == nil {
			apiErr.Kind = string(v.GetStringBytes("error"))
			apiErr.Message = string(v.GetStringBytes("message"))
		}
		return resp.StatusCode, apiErr
	}

	if decode == nil {
		return resp.StatusCode, nil
	}
	if parseErr != nil {
		return resp.StatusCode, fmt.Errorf("%w: malformed response: %v", ErrTransport, parseErr)
	}
	if err = decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: malformed response: %v", ErrTransport, err)
	}

	return resp.StatusCode, nil
}
