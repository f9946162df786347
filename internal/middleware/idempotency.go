package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jelani-tech/minibus-booking-backend/internal/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// ResponseStore persists responses of idempotent requests.
type ResponseStore interface {
	GetResponse(ctx context.Context, key string) (*redis.CachedResponse, error)
	SaveResponse(ctx context.Context, key string, response *redis.CachedResponse, ttl time.Duration) error
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response when a mutating request repeats its
// Idempotency-Key. Keys are scoped to the authenticated user, so it must run after Auth.
func Idempotency(store ResponseStore, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := scopedKey(GetUserID(c), c.Request.Method, c.FullPath(), key)

		cached, err := store.GetResponse(ctx, cacheKey)
		if err != nil {
			// Store unavailable - proceed without idempotency.
			logger.WithError(err).WithField("request_id", GetRequestID(c)).Warn("idempotency lookup failed")
			c.Next()
			return
		}

		if cached != nil {
			for k, v := range cached.Headers {
				for _, val := range v {
					c.Header(k, val)
				}
			}
			c.Header("Idempotent-Replayed", "true")
			contentType := cached.Headers.Get("Content-Type")
			if contentType == "" {
				contentType = "application/json"
			}
			c.Data(cached.StatusCode, contentType, cached.Body)
			c.Abort()
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// Server errors are retryable and never replayed.
		status := c.Writer.Status()
		if status >= 200 && status < 500 {
			response := &redis.CachedResponse{
				StatusCode: status,
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := store.SaveResponse(context.WithoutCancel(ctx), cacheKey, response, idempotencyTTL); err != nil {
				logger.WithError(err).WithField("request_id", GetRequestID(c)).Warn("idempotency save failed")
			}
		}
	}
}

func scopedKey(userID, method, route, key string) string {
	if userID == "" {
		userID = "anonymous"
	}
	return userID + ":" + method + ":" + route + ":" + key
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}

var _ ResponseStore = (*redis.IdempotencyStore)(nil)
