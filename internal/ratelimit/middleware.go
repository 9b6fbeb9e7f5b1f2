package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"eshop/internal/platform/privacy"
	dErrors "eshop/pkg/domain-errors"
	"eshop/pkg/platform/httputil"
	"eshop/pkg/requestcontext"
)

const msgTooManyRequests = "Too many requests from this IP, please try again later."

// Middleware rejects requests whose client IP ran out of tokens. Buckets
// are shared by every route wrapped with the same Limiter.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		if ip == "" {
			ip = r.RemoteAddr
		}

		res := l.Allow(ip)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
			l.logger.WarnContext(ctx, "rate limit exceeded",
				"path", r.URL.Path,
				"client_ip", privacy.AnonymizeIP(ip),
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, r, dErrors.New(dErrors.CodeRateLimited, msgTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) int {
	return max(int(d.Round(time.Second)/time.Second), 1)
}
