package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shotdeck/internal/store"
	"shotdeck/internal/studio"
)

func (s *Server) listProjects(c *gin.Context) {
	projects, err := s.studio.ListProjects(c.Request.Context(), userOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) createProject(c *gin.Context) {
	var input studio.ProjectInput
	if err := bindJSON(c, "create project", &input, false); err != nil {
		s.writeError(c, err)
		return
	}
	project, err := s.studio.CreateProject(c.Request.Context(), userOf(c), input)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (s *Server) getProject(c *gin.Context) {
	project, err := s.studio.GetProject(c.Request.Context(), userOf(c), c.Param("projectId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) updateProject(c *gin.Context) {
	var update store.ProjectUpdate
	if err := bindJSON(c, "update project", &update, false); err != nil {
		s.writeError(c, err)
		return
	}
	project, err := s.studio.UpdateProject(c.Request.Context(), userOf(c), c.Param("projectId"), update)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) deleteProject(c *gin.Context) {
	if err := s.studio.DeleteProject(c.Request.Context(), userOf(c), c.Param("projectId")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
