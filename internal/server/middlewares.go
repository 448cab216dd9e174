package server

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/xid"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"polling-chat/internal/storage/zapadapter"
)

// maxBodyBytes limits reading from request body
const maxBodyBytes = 64 << 10

// enforcePostJSON is a middleware pre-processing each HTTP request
// it checks for POST method, application/json Content-Type header and valid json body
// it also sets blank Content-Type header to application/json
func enforcePostJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, kindMethodNotAllowed, "method must be POST")
			return
		}

		// check "Content-Type" header
		contentType := r.Header.Get("Content-Type")
		if contentType != "" {
			mt, _, err := mime.ParseMediaType(contentType)
			if err != nil {
				writeError(w, http.StatusBadRequest, kindInvalidJSON, "Malformed Content-Type header")
				return
			}

			if mt != "application/json" {
				writeError(w, http.StatusUnsupportedMediaType, kindUnsupportedMedia, "Content-Type header must be application/json")
				return
			}
		} else {
			r.Header.Set("Content-Type", "application/json")
		}

		// check if provided request body is valid JSON
		var bodyBuf bytes.Buffer
		bodyReader := io.TeeReader(http.MaxBytesReader(w, r.Body, maxBodyBytes), &bodyBuf)
		body, err := ioutil.ReadAll(bodyReader)
		if err != nil {
			writeError(w, http.StatusBadRequest, kindInvalidJSON, "Can not read request body")
			return
		}

		if len(body) == 0 {
			writeError(w, http.StatusBadRequest, kindInvalidJSON, "No body provided")
			return
		}

		err = fastjson.ValidateBytes(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, kindInvalidJSON, "Malformed JSON")
			return
		}

		r.Body = ioutil.NopCloser(&bodyBuf)

		next.ServeHTTP(w, r)
	})
}

// enforceGet rejects every method except GET and HEAD
func enforceGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet)
			writeError(w, http.StatusMethodNotAllowed, kindMethodNotAllowed, "method must be GET")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) code() int {
	if sr.status == 0 {
		return http.StatusOK
	}
	return sr.status
}

func log(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := xid.New().String()

		ctx := zapadapter.NewContextWithID(r.Context(), id)
		rwID := r.WithContext(ctx)

		logger.Info("incoming http request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("uri", r.URL.RequestURI()),
			zap.String("ip", r.RemoteAddr),
		)

		w.Header().Set("X-Request-Id", id)
		sr := &statusRecorder{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(sr, rwID)

		logger.Info("http request served",
			zap.String("id", id),
			zap.Int("status", sr.code()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// recoverer converts a panic in next into a 500 response
func recoverer(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			id, _ := zapadapter.IDFromContext(r.Context())
			logger.Error("panic while serving http request",
				zap.String("id", id),
				zap.String("uri", r.URL.RequestURI()),
				zap.String("panic", fmt.Sprint(rec)),
				zap.Stack("stack"),
			)
			writeError(w, http.StatusInternalServerError, kindInternal, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}

// instrument records request count and latency for route
func instrument(next http.Handler, route string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(sr, r)

		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(sr.code())).Inc()
	})
}

// jsonTimeout wraps next in http.TimeoutHandler answering with the JSON envelope on timeout
func jsonTimeout(next http.Handler, d time.Duration) http.Handler {
	th := http.TimeoutHandler(next, d, timeoutBody)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		th.ServeHTTP(w, r)
	})
}
