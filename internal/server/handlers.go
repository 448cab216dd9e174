package server

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"polling-chat/internal/storage"
)

// Store is the persistence contract used by handlers, implemented by *storage.Store
type Store interface {
	Initialize(ctx context.Context) error
	CreateUser(ctx context.Context, username, password string) (bool, error)
	VerifyUser(ctx context.Context, username, password string) (bool, error)
	AddMessage(ctx context.Context, sender, content string) (storage.Message, error)
	MessagesAfter(ctx context.Context, cursor int64) ([]storage.Message, error)
}

// timestampLayout is the wire format of message timestamps, always UTC
const timestampLayout = "2006-01-02 15:04:05"

type parsers struct {
	signupPool fastjson.ParserPool
	loginPool  fastjson.ParserPool
	sendPool   fastjson.ParserPool
}

type handler struct {
	logger   *zap.SugaredLogger
	store    Store
	parsers  *parsers
	validate *validator.Validate
}

func newHandler(logger *zap.SugaredLogger, store Store) *handler {
	validate := validator.New()
	// report json names instead of Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})

	return &handler{
		logger:   logger,
		store:    store,
		parsers:  &parsers{},
		validate: validate,
	}
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sendRequest struct {
	Username string `json:"username" validate:"required"`
	Content  string `json:"content" validate:"required"`
}

type messagePayload struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type statusResponse struct {
	Message string `json:"message"`
}

type sendResponse struct {
	Message string         `json:"message"`
	Data    messagePayload `json:"data"`
}

type messagesResponse struct {
	Messages []messagePayload `json:"messages"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func toPayload(m storage.Message) messagePayload {
	return messagePayload{
		ID:        m.ID,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: formatTimestamp(m.CreatedAt),
	}
}

// errFieldType is returned by stringField when a present field is not a JSON string
var errFieldType = errors.New("field must be a string")

// stringField returns trimmed string value of field name, or empty string when field is absent or null
func stringField(v *fastjson.Value, name string) (string, error) {
	fv := v.Get(name)
	if fv == nil || fv.Type() == fastjson.TypeNull {
		return "", nil
	}

	b, err := fv.StringBytes()
	if err != nil {
		return "", fmt.Errorf("field %q: %w", name, errFieldType)
	}

	return strings.TrimSpace(string(b)), nil
}

// parseFields extracts the named string fields from a JSON object body
func parseFields(pool *fastjson.ParserPool, body []byte, names ...string) ([]string, error) {
	parser := pool.Get()
	defer pool.Put(parser)

	v, err := parser.ParseBytes(body)
	if err != nil {
		return nil, err
	}
	if v.Type() != fastjson.TypeObject {
		return nil, errors.New("body must be a JSON object")
	}

	values := make([]string, len(names))
	for i, name := range names {
		values[i], err = stringField(v, name)
		if err != nil {
			return nil, err
		}
	}

	return values, nil
}

// validationMessage converts validator errors into a human-readable message
func (h *handler) validationMessage(s interface{}) (string, bool) {
	err := h.validate.Struct(s)
	if err == nil {
		return "", true
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error(), false
	}

	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed validation (%s)", fe.Field(), fe.Tag()))
		}
	}

	return strings.Join(msgs, "; "), false
}

// credentials reads and validates {username, password} body, answering the request itself on failure
func (h *handler) credentials(w http.ResponseWriter, r *http.Request, pool *fastjson.ParserPool) (credentialsRequest, bool) {
	body, _ := ioutil.ReadAll(r.Body)

	fields, err := parseFields(pool, body, "username", "password")
	if err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err.Error())
		return credentialsRequest{}, false
	}

	req := credentialsRequest{Username: fields[0], Password: fields[1]}
	if msg, ok := h.validationMessage(req); !ok {
		writeError(w, http.StatusBadRequest, kindValidation, msg)
		return credentialsRequest{}, false
	}

	return req, true
}

// signup handles HTTP requests on "/signup" endpoint
func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	req, ok := h.credentials(w, r, &h.parsers.signupPool)
	if !ok {
		return
	}

	created, err := h.store.CreateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		writeInternalError(w, h.logger, r, err)
		return
	}

	if !created {
		signupsTotal.WithLabelValues("conflict").Inc()
		writeError(w, http.StatusConflict, kindConflict, "username already exists")
		return
	}

	signupsTotal.WithLabelValues("created").Inc()
	writeJSON(w, h.logger, http.StatusCreated, statusResponse{Message: "account created"})
}

// login handles HTTP requests on "/login" endpoint
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.credentials(w, r, &h.parsers.loginPool)
	if !ok {
		return
	}

	valid, err := h.store.VerifyUser(r.Context(), req.Username, req.Password)
	if err != nil {
		writeInternalError(w, h.logger, r, err)
		return
	}

	if !valid {
		loginsTotal.WithLabelValues("failure").Inc()
		writeError(w, http.StatusUnauthorized, kindUnauthorized, "invalid username or password")
		return
	}

	loginsTotal.WithLabelValues("success").Inc()
	writeJSON(w, h.logger, http.StatusOK, statusResponse{Message: "login successful"})
}

// send handles HTTP requests on "/send" endpoint
func (h *handler) send(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)

	fields, err := parseFields(&h.parsers.sendPool, body, "username", "content")
	if err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, err.Error())
		return
	}

	req := sendRequest{Username: fields[0], Content: fields[1]}
	if msg, ok := h.validationMessage(req); !ok {
		writeError(w, http.StatusBadRequest, kindValidation, msg)
		return
	}

	m, err := h.store.AddMessage(r.Context(), req.Username, req.Content)
	if err != nil {
		writeInternalError(w, h.logger, r, err)
		return
	}

	messagesSentTotal.Inc()
	writeJSON(w, h.logger, http.StatusCreated, sendResponse{
		Message: "message sent",
		Data:    toPayload(m),
	})
}

// messages handles HTTP requests on "/messages" endpoint
func (h *handler) messages(w http.ResponseWriter, r *http.Request) {
	var cursor int64
	if raw := r.URL.Query().Get("after_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, kindInvalidQuery, "after_id must be an integer")
			return
		}
		cursor = parsed
	}

	messages, err := h.store.MessagesAfter(r.Context(), cursor)
	if err != nil {
		writeInternalError(w, h.logger, r, err)
		return
	}

	payload := make([]messagePayload, 0, len(messages))
	for _, m := range messages {
		payload = append(payload, toPayload(m))
	}

	writeJSON(w, h.logger, http.StatusOK, messagesResponse{Messages: payload})
}

// health handles HTTP requests on "/healthz" endpoint
func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// notFound answers every path without a registered route
func (h *handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, kindNotFound, "no route for "+r.URL.Path)
}
