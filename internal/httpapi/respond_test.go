package httpapi

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"shotdeck/internal/services"
)

func TestStatusForMarkers(t *testing.T) {
	cases := map[error]int{
		services.ErrValidation:    http.StatusBadRequest,
		services.ErrNotFound:      http.StatusNotFound,
		services.ErrConflict:      http.StatusConflict,
		services.ErrUnauthorized:  http.StatusUnauthorized,
		services.ErrExternal:      http.StatusBadGateway,
		services.ErrConfiguration: http.StatusInternalServerError,
		services.ErrTransient:     http.StatusInternalServerError,
		errors.New("plain"):       http.StatusInternalServerError,
	}
	for marker, want := range cases {
		err := services.Wrap(marker, "test", "op", "message", nil)
		if marker.Error() == "plain" {
			err = marker
		}
		assert.Equal(t, want, statusFor(err), marker.Error())
	}
}
