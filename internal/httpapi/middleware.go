package httpapi

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shotdeck/internal/logging"
	"shotdeck/internal/services"
)

const requestIDHeader = "X-Request-ID"

func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "http_request"),
			logging.String("method", c.Request.Method),
			logging.String("route", route),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("duration", time.Since(start)),
		}
		if user := userOf(c); user != "" {
			attrs = append(attrs, logging.String(logging.FieldUserID, user))
		}
		logger := logging.WithContext(c.Request.Context(), s.logger)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Warn("request failed", logging.Args(attrs...)...)
		case strings.HasPrefix(route, s.mediaPrefix()):
			logger.Debug("media request", logging.Args(attrs...)...)
		default:
			logger.Info("request", logging.Args(attrs...)...)
		}
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && s.originAllowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+requestIDHeader)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) originAllowed(origin string) bool {
	allowed := s.cfg.Server.AllowedOrigins
	return slices.Contains(allowed, "*") || slices.Contains(allowed, strings.TrimRight(origin, "/"))
}

// checkOrigin accepts same-host WebSocket upgrades and configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.originAllowed(origin) {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Host, r.Host)
}

func (s *Server) mediaPrefix() string {
	if s.media == nil {
		return "/media"
	}
	return s.media.Prefix()
}
