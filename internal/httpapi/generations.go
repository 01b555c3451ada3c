package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shotdeck/internal/studio"
)

func (s *Server) listGenerations(c *gin.Context) {
	const op = "list generations"
	limit, err := queryInt(c, op, "limit")
	if err != nil {
		s.writeError(c, err)
		return
	}
	offset, err := queryInt(c, op, "offset")
	if err != nil {
		s.writeError(c, err)
		return
	}
	gens, err := s.studio.ListGenerations(c.Request.Context(), userOf(c), c.Param("projectId"), c.Query("type"), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"generations": gens})
}

func (s *Server) createGeneration(c *gin.Context) {
	var input studio.GenerationInput
	if err := bindJSON(c, "create generation", &input, false); err != nil {
		s.writeError(c, err)
		return
	}
	gen, err := s.studio.CreateGeneration(c.Request.Context(), userOf(c), input)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gen)
}

func (s *Server) getGeneration(c *gin.Context) {
	gen, err := s.studio.GetGeneration(c.Request.Context(), userOf(c), c.Param("generationId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gen)
}

func (s *Server) deleteGeneration(c *gin.Context) {
	if err := s.studio.DeleteGeneration(c.Request.Context(), userOf(c), c.Param("generationId")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
