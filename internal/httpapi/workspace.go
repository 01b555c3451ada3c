package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shotdeck/internal/studio"
)

type selectProjectRequest struct {
	ProjectID string `json:"projectId"`
}

type currentShotRequest struct {
	ShotID string `json:"shotId"`
}

type paneRequest struct {
	Action string `json:"action"`
}

func (s *Server) getWorkspace(c *gin.Context) {
	ws, err := s.studio.GetWorkspace(c.Request.Context(), userOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (s *Server) selectProject(c *gin.Context) {
	var req selectProjectRequest
	if err := bindJSON(c, "select project", &req, false); err != nil {
		s.writeError(c, err)
		return
	}
	ws, err := s.studio.SelectProject(c.Request.Context(), userOf(c), req.ProjectID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (s *Server) setCurrentShot(c *gin.Context) {
	var req currentShotRequest
	if err := bindJSON(c, "set current shot", &req, false); err != nil {
		s.writeError(c, err)
		return
	}
	ws, err := s.studio.SetCurrentShot(c.Request.Context(), userOf(c), req.ShotID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (s *Server) setPane(c *gin.Context) {
	var req paneRequest
	if err := bindJSON(c, "set pane", &req, false); err != nil {
		s.writeError(c, err)
		return
	}
	ws, err := s.studio.SetPane(c.Request.Context(), userOf(c), c.Param("pane"), studio.PaneAction(req.Action))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}
