package handler

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/Shivanand-hulikatti/event-seat-ledger/internal/log"
)

// IdempotencyHeader names the request header carrying the client's key.
const IdempotencyHeader = "Idempotency-Key"

type inFlight struct{}

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// Idempotency replays the first response for a repeated Idempotency-Key.
// A repeat that arrives while the first request is still running gets 409.
type Idempotency struct {
	cache *cache.Cache
}

// NewIdempotency keeps responses for ttl.
func NewIdempotency(ttl time.Duration) *Idempotency {
	return &Idempotency{cache: cache.New(ttl, 2*ttl)}
}

func (i *Idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(IdempotencyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		cacheKey := r.Method + " " + r.URL.Path + " " + key

		if err := i.cache.Add(cacheKey, inFlight{}, cache.DefaultExpiration); err != nil {
			v, _ := i.cache.Get(cacheKey)
			if resp, ok := v.(*cachedResponse); ok {
				log.Debug(log.CatCache, "replaying response", "key", key, "status", resp.status)
				w.Header().Set("Content-Type", resp.contentType)
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(resp.status)
				_, _ = w.Write(resp.body)
				return
			}
			writeError(w, http.StatusConflict, "a request with this "+IdempotencyHeader+" is still in progress")
			return
		}

		var body bytes.Buffer
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(&body)
		defer func() {
			if rec := recover(); rec != nil {
				i.cache.Delete(cacheKey)
				panic(rec)
			}
			status := ww.Status()
			// Server-side failures and empty responses are not remembered
			// so the client can retry.
			if status == 0 || status >= http.StatusInternalServerError {
				i.cache.Delete(cacheKey)
				return
			}
			i.cache.Set(cacheKey, &cachedResponse{
				status:      status,
				contentType: ww.Header().Get("Content-Type"),
				body:        body.Bytes(),
			}, cache.DefaultExpiration)
			log.Debug(log.CatCache, "stored response", "key", key, "status", status)
		}()
		next.ServeHTTP(ww, r)
	})
}

// Len reports how many keys are tracked.
func (i *Idempotency) Len() int {
	return i.cache.ItemCount()
}
