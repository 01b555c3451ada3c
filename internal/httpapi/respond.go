package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"shotdeck/internal/logging"
	"shotdeck/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

func statusFor(err error) int {
	switch services.Kind(err) {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	details := services.Details(err)
	message := strings.TrimSpace(details.Message)
	if status == http.StatusInternalServerError {
		logging.WithContext(c.Request.Context(), s.logger).Error("request error",
			logging.String(logging.FieldEventType, "http_error"),
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.Error(err),
		)
		if details.Kind != services.KindConfiguration {
			message = "internal error"
		}
	}
	c.JSON(status, errorResponse{Error: message, Kind: string(details.Kind), Hint: details.Hint})
}

func badRequest(op, message string, err error) error {
	return services.Wrap(services.ErrValidation, "api", op, message, err)
}

// bindJSON decodes the request body into dst. An empty body is accepted
// when optional is true.
func bindJSON(c *gin.Context, op string, dst any, optional bool) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest(op, "invalid JSON body", err)
	}
	return nil
}

func queryInt(c *gin.Context, op, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(op, key+" must be an integer", nil)
	}
	return value, nil
}

func queryBool(c *gin.Context, key string) bool {
	value := strings.TrimSpace(c.Query(key))
	return value == "1" || strings.EqualFold(value, "true")
}
