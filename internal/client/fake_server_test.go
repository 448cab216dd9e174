package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// fakeChat is a minimal in-memory implementation of the chat HTTP API
type fakeChat struct {
	mu       sync.Mutex
	users    map[string]string
	messages []map[string]interface{}
}

func newFakeChat(t *testing.T) (*fakeChat, *httptest.Server) {
	f := &fakeChat{users: make(map[string]string)}
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)
	return f, ts
}

func writeFake(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fakeError(w http.ResponseWriter, status int, kind, msg string) {
	writeFake(w, status, map[string]string{"error": kind, "message": msg})
}

func (f *fakeChat) add(sender, content string) map[string]interface{} {
	m := map[string]interface{}{
		"id":        len(f.messages) + 1,
		"sender":    sender,
		"content":   content,
		"timestamp": "2024-05-01 12:30:45",
	}
	f.messages = append(f.messages, m)
	return m
}

func (f *fakeChat) addUser(username, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[username] = password
}

func (f *fakeChat) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func (f *fakeChat) seed(sender, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.add(sender, content)
}

func (f *fakeChat) sent() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]interface{}, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeChat) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]string
	if r.Method == http.MethodPost {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		if err := json.Unmarshal(buf.Bytes(), &body); err != nil {
			fakeError(w, http.StatusBadRequest, "invalid_json", "Malformed JSON")
			return
		}
	}

	switch r.URL.Path {
	case "/signup":
		if body["username"] == "" || body["password"] == "" {
			fakeError(w, http.StatusBadRequest, "validation_error", "username is required")
			return
		}
		if _, ok := f.users[body["username"]]; ok {
			fakeError(w, http.StatusConflict, "conflict", "username already exists")
			return
		}
		f.users[body["username"]] = body["password"]
		writeFake(w, http.StatusCreated, map[string]string{"message": "account created"})
	case "/login":
		if p, ok := f.users[body["username"]]; !ok || p != body["password"] {
			fakeError(w, http.StatusUnauthorized, "unauthorized", "invalid username or password")
			return
		}
		writeFake(w, http.StatusOK, map[string]string{"message": "login successful"})
	case "/send":
		m := f.add(body["username"], body["content"])
		writeFake(w, http.StatusCreated, map[string]interface{}{"message": "message sent", "data": m})
	case "/messages":
		after, err := strconv.Atoi(r.URL.Query().Get("after_id"))
		if err != nil {
			fakeError(w, http.StatusBadRequest, "invalid_query", "after_id must be an integer")
			return
		}
		out := make([]map[string]interface{}, 0)
		for _, m := range f.messages {
			if m["id"].(int) > after {
				out = append(out, m)
			}
		}
		writeFake(w, http.StatusOK, map[string]interface{}{"messages": out})
	default:
		fakeError(w, http.StatusNotFound, "not_found", "no route")
	}
}

// syncBuffer is a bytes.Buffer safe for concurrent writes and reads
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
