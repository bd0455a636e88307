// Package ratelimit enforces request rate limits backed by ulule/limiter.
// The coupon endpoints get a tighter limit than the global one because code
// probing is the cheapest abuse vector on this surface.
package ratelimit

import (
	"net/http"
	"strconv"

	limiter "github.com/ulule/limiter/v3"

	"github.com/lapak-id/backend-lapak/internal/common"
)

// KeyFunc derives the limit bucket for a request.
type KeyFunc func(*http.Request) string

// ByClientIP buckets by source address.
func ByClientIP(r *http.Request) string {
	return common.ClientIP(r)
}

// ByUserOrIP buckets authenticated sessions by user id and guests by source
// address, so one NAT does not starve a whole office.
func ByUserOrIP(r *http.Request) string {
	if userID, ok := common.UserID(r.Context()); ok {
		return "u:" + userID
	}
	return "ip:" + common.ClientIP(r)
}

// New builds a limiter from a formatted rate such as "300-M" or "20-M".
func New(store limiter.Store, rate string) (*limiter.Limiter, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	return limiter.New(store, parsed), nil
}

// Middleware enforces the limit, exposing the standard X-RateLimit headers.
// A store error fails open: throttling is protection, not correctness.
func Middleware(l *limiter.Limiter, key KeyFunc, onError func(error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil || key == nil {
				next.ServeHTTP(w, r)
				return
			}
			lctx, err := l.Get(r.Context(), key(r))
			if err != nil {
				if onError != nil {
					onError(err)
				}
				next.ServeHTTP(w, r)
				return
			}

			headers := w.Header()
			headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
