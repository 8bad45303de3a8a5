package cache

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// StatusHeader reports whether a response came from the cache
	StatusHeader = "X-Cache"
)

// entry is a cached response
type entry struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Middleware caches successful GET responses. Any other method that
// succeeds clears the cache, since a write may change the serialized form
// of every model that reaches the written record.
type Middleware struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewMiddleware creates a response cache middleware
func NewMiddleware(c Cache, ttl time.Duration, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{cache: c, ttl: ttl, logger: logger}
}

// Handler wraps next with the response cache
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rec := newRecorder(w, false)
			next.ServeHTTP(rec, r)
			if rec.status >= 200 && rec.status < 300 {
				if err := m.cache.Clear(r.Context()); err != nil {
					m.logger.Warn("cache clear failed", zap.Error(err))
				}
			}
			return
		}

		key := RequestKey(r)
		if cached, ok := m.lookup(r, key); ok {
			m.write(w, r, cached, "HIT")
			return
		}

		rec := newRecorder(w, true)
		rec.Header().Set(StatusHeader, "MISS")
		next.ServeHTTP(rec, r)

		if rec.status != http.StatusOK {
			rec.flush()
			return
		}

		e := entry{
			Status:      rec.status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}
		m.store(r, key, e)
		m.write(w, r, e, "MISS")
	})
}

func (m *Middleware) lookup(r *http.Request, key string) (entry, bool) {
	data, err := m.cache.Get(r.Context(), key)
	if err != nil {
		if !IsCacheMiss(err) {
			m.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return entry{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		m.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return entry{}, false
	}
	return e, true
}

func (m *Middleware) store(r *http.Request, key string, e entry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := m.cache.Set(r.Context(), key, data, m.ttl); err != nil {
		m.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (m *Middleware) write(w http.ResponseWriter, r *http.Request, e entry, status string) {
	etag := GenerateETag(e.Body)
	h := w.Header()
	h.Set(StatusHeader, status)
	h.Set("ETag", etag)
	if e.ContentType != "" {
		h.Set("Content-Type", e.ContentType)
	}

	if MatchesETag(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(e.Status)
	_, _ = w.Write(e.Body)
}

// recorder captures the status and, when buffering, the body of a response
type recorder struct {
	http.ResponseWriter
	status      int
	buffer      bool
	wroteHeader bool
	body        bytes.Buffer
}

func newRecorder(w http.ResponseWriter, buffer bool) *recorder {
	return &recorder{ResponseWriter: w, status: http.StatusOK, buffer: buffer}
}

func (rec *recorder) WriteHeader(status int) {
	if rec.wroteHeader {
		return
	}
	rec.wroteHeader = true
	rec.status = status
	if !rec.buffer {
		rec.ResponseWriter.WriteHeader(status)
	}
}

func (rec *recorder) Write(b []byte) (int, error) {
	if !rec.wroteHeader {
		rec.WriteHeader(http.StatusOK)
	}
	if rec.buffer {
		return rec.body.Write(b)
	}
	return rec.ResponseWriter.Write(b)
}

// flush sends a buffered response through unchanged
func (rec *recorder) flush() {
	rec.ResponseWriter.WriteHeader(rec.status)
	_, _ = rec.ResponseWriter.Write(rec.body.Bytes())
}
