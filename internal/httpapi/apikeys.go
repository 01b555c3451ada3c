package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type setKeyRequest struct {
	Key string `json:"key"`
}

func (s *Server) listAPIKeys(c *gin.Context) {
	keys, err := s.studio.ListAPIKeys(c.Request.Context(), userOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (s *Server) setAPIKey(c *gin.Context) {
	var req setKeyRequest
	if err := bindJSON(c, "set api key", &req, false); err != nil {
		s.writeError(c, err)
		return
	}
	key, err := s.studio.SetAPIKey(c.Request.Context(), userOf(c), c.Param("provider"), req.Key)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (s *Server) deleteAPIKey(c *gin.Context) {
	if err := s.studio.DeleteAPIKey(c.Request.Context(), userOf(c), c.Param("provider")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
