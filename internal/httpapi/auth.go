package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"shotdeck/internal/config"
	"shotdeck/internal/services"
)

const userKey = "shotdeck.user"

var errUnauthorized = errors.New("unauthorized")

// authenticator resolves the user behind a request. With neither a token
// nor a JWT secret configured, every request acts as the default user.
type authenticator struct {
	token       string
	secret      []byte
	defaultUser string
}

func newAuthenticator(cfg config.Server) *authenticator {
	return &authenticator{
		token:       strings.TrimSpace(cfg.APIToken),
		secret:      []byte(strings.TrimSpace(cfg.JWTSecret)),
		defaultUser: strings.TrimSpace(cfg.DefaultUser),
	}
}

func (a *authenticator) open() bool {
	return a.token == "" && len(a.secret) == 0
}

// userFor validates the bearer credential. Browsers cannot set headers on
// WebSocket requests, so a token query parameter is accepted too.
func (a *authenticator) userFor(r *http.Request) (string, error) {
	if a.open() {
		return a.defaultUser, nil
	}
	credential := ""
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		credential = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	} else {
		credential = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if credential == "" {
		return "", errUnauthorized
	}
	if a.token != "" && subtle.ConstantTimeCompare([]byte(credential), []byte(a.token)) == 1 {
		return a.defaultUser, nil
	}
	if len(a.secret) == 0 {
		return "", errUnauthorized
	}
	return a.parseJWT(credential)
}

func (a *authenticator) parseJWT(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", errUnauthorized
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return "", errUnauthorized
	}
	return subject, nil
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.auth.userFor(c.Request)
		if err != nil {
			s.writeError(c, services.Wrap(services.ErrUnauthorized, "api", "authenticate", "missing or invalid credentials", nil))
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Request = c.Request.WithContext(services.WithUserID(c.Request.Context(), user))
		c.Next()
	}
}

func userOf(c *gin.Context) string {
	return c.GetString(userKey)
}
