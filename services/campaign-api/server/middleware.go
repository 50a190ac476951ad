package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Mutter0815/ListSync/pkg/logx"
	"github.com/Mutter0815/ListSync/pkg/metrics"
)

const requestIDHeader = "X-Request-ID"

// Observability tags each request with an id, opens a span, records metrics
// and writes an access log line. Unmatched routes share one metric label.
func Observability() gin.HandlerFunc {
	tracer := otel.Tracer("campaign-api")
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.Request.Header.Get(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Set("request_id", rid)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+path)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		lat := time.Since(start).Seconds()
		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String("request.id", rid),
			attribute.Int("http.status_code", status),
		)

		metrics.APIRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(c.Request.Method, path).Observe(lat)

		log := logx.L().Infow
		if status >= http.StatusInternalServerError {
			log = logx.L().Warnw
		}
		log("http_access",
			"rid", rid,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", path,
			"status", status,
			"duration", lat,
			"client_ip", c.ClientIP(),
		)
	}
}
