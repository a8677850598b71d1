package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"

	domainerrors "github.com/chaptermark/chaptermark-server/internal/errors"
)

// requestLogger logs one line per request through slog, tagged with the chi
// request ID.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			} else if r.URL.Path != "/health" {
				level = slog.LevelInfo
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"remote", r.RemoteAddr,
			)
		})
	}
}

// rateLimitGenerate is a huma middleware that limits chapter generation per
// client IP. Exceeding the limit returns 429 with a Retry-After header.
func (s *Server) rateLimitGenerate(ctx huma.Context, next func(huma.Context)) {
	if s.generateLimiter == nil {
		next(ctx)
		return
	}

	key := clientIP(ctx.Header("X-Forwarded-For"), ctx.Header("X-Real-IP"), ctx.RemoteAddr())
	if !s.generateLimiter.Allow(key) {
		s.logger.Warn("rate limit exceeded",
			"ip", key,
			"path", ctx.URL().Path,
		)
		ctx.SetHeader("Retry-After", "60")
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests,
			"too many requests, try again later", domainerrors.ErrRateLimited)
		return
	}

	next(ctx)
}

// clientIP picks the client address: the first X-Forwarded-For entry, then
// X-Real-IP, then the remote address without its port.
func clientIP(forwardedFor, realIP, remoteAddr string) string {
	if forwardedFor != "" {
		for i := 0; i < len(forwardedFor); i++ {
			if forwardedFor[i] == ',' {
				return forwardedFor[:i]
			}
		}
		return forwardedFor
	}

	if realIP != "" {
		return realIP
	}

	for i := len(remoteAddr) - 1; i >= 0; i-- {
		if remoteAddr[i] == ':' {
			return remoteAddr[:i]
		}
	}
	return remoteAddr
}
