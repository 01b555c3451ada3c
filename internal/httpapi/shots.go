package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shotdeck/internal/studio"
)

type renameRequest struct {
	Name string `json:"name"`
}

type addGenerationRequest struct {
	GenerationID string `json:"generationId"`
	Position     *int   `json:"position"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) listShots(c *gin.Context) {
	shots, err := s.studio.ListShots(c.Request.Context(), userOf(c), c.Param("projectId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shots": shots})
}

func (s *Server) createShot(c *gin.Context) {
	var input studio.ShotInput
	if err := bindJSON(c, "create shot", &input, false); err != nil {
		s.writeError(c, err)
		return
	}
	shot, err := s.studio.CreateShot(c.Request.Context(), userOf(c), input)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shot)
}

func (s *Server) getShot(c *gin.Context) {
	shot, err := s.studio.GetShot(c.Request.Context(), userOf(c), c.Param("shotId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shot)
}

func (s *Server) renameShot(c *gin.Context) {
	var req renameRequest
	if err := bindJSON(c, "rename shot", &req, false); err != nil {
		s.writeError(c, err)
		return
	}
	shot, err := s.studio.RenameShot(c.Request.Context(), userOf(c), c.Param("shotId"), req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shot)
}

func (s *Server) deleteShot(c *gin.Context) {
	if err := s.studio.DeleteShot(c.Request.Context(), userOf(c), c.Param("shotId")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) addShotGeneration(c *gin.Context) {
	var req addGenerationRequest
	if err := bindJSON(c, "add generation to shot", &req, false); err != nil {
		s.writeError(c, err)
		return
	}
	shot, err := s.studio.AddGenerationToShot(c.Request.Context(), userOf(c), c.Param("shotId"), req.GenerationID, req.Position)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shot)
}

func (s *Server) removeShotGeneration(c *gin.Context) {
	shot, err := s.studio.RemoveShotGeneration(c.Request.Context(), userOf(c), c.Param("shotId"), c.Param("entryId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shot)
}

func (s *Server) reorderShot(c *gin.Context) {
	var req reorderRequest
	if err := bindJSON(c, "reorder shot", &req, false); err != nil {
		s.writeError(c, err)
		return
	}
	shot, err := s.studio.ReorderShot(c.Request.Context(), userOf(c), c.Param("shotId"), req.IDs)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shot)
}

func (s *Server) duplicateShot(c *gin.Context) {
	var req renameRequest
	if err := bindJSON(c, "duplicate shot", &req, true); err != nil {
		s.writeError(c, err)
		return
	}
	shot, err := s.studio.DuplicateShot(c.Request.Context(), userOf(c), c.Param("shotId"), req.Name)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shot)
}
