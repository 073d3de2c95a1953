package idempotency

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
)

var ErrInFlight = errors.New("request with this idempotency key is still in flight")

// ResponseCache is the part of Store the HTTP middleware needs.
type ResponseCache interface {
	Reserve(ctx context.Context, key string) (*Response, error)
	Save(ctx context.Context, key string, resp Response) error
	Release(ctx context.Context, key string) error
}

// Middleware replays the first response recorded for a POST carrying an
// Idempotency-Key header. Requests without the header pass through. Only
// final replies are recorded: a 5xx, or any reply carrying Retry-After,
// frees the key so the retry runs the command again.
func Middleware(log *slog.Logger, cache ResponseCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idem := r.Header.Get(HeaderKey)
			if r.Method != http.MethodPost || idem == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := "idem:http:" + r.URL.Path + ":" + idem
			ctx := r.Context()

			stored, err := cache.Reserve(ctx, key)
			switch {
			case errors.Is(err, ErrInFlight):
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"request already in progress","code":"conflict"}`))
				return
			case err != nil:
				log.Warn("idempotency lookup failed, serving without it", "key", key, "err", err)
				next.ServeHTTP(w, r)
				return
			case stored != nil:
				w.Header().Set(HeaderReplayed, "true")
				if stored.ContentType != "" {
					w.Header().Set("Content-Type", stored.ContentType)
				}
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if retryable(rec) {
				if err := cache.Release(ctx, key); err != nil {
					log.Warn("idempotency release failed", "key", key, "err", err)
				}
				return
			}
			resp := Response{Status: rec.status, ContentType: rec.Header().Get("Content-Type"), Body: rec.body.Bytes()}
			if err := cache.Save(ctx, key, resp); err != nil {
				log.Warn("idempotency save failed", "key", key, "err", err)
			}
		})
	}
}

func retryable(rec *recorder) bool {
	return rec.status >= http.StatusInternalServerError || rec.Header().Get("Retry-After") != ""
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
	wrote  bool
}

func (r *recorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(p []byte) (int, error) {
	r.wrote = true
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
