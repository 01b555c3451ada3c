package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shotdeck/internal/studio"
)

func (s *Server) listTasks(c *gin.Context) {
	var statuses []string
	for _, value := range c.QueryArray("status") {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, part)
			}
		}
	}
	tasks, err := s.studio.ListTasks(c.Request.Context(), userOf(c), c.Param("projectId"), statuses...)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) taskCounts(c *gin.Context) {
	counts, err := s.studio.TaskCounts(c.Request.Context(), userOf(c), c.Param("projectId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (s *Server) cancelPendingTasks(c *gin.Context) {
	ids, err := s.studio.CancelPendingTasks(c.Request.Context(), userOf(c), c.Param("projectId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": ids})
}

func (s *Server) createTask(c *gin.Context) {
	var input studio.TaskInput
	if err := bindJSON(c, "create task", &input, false); err != nil {
		s.writeError(c, err)
		return
	}
	task, err := s.studio.CreateTask(c.Request.Context(), userOf(c), input)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) getTask(c *gin.Context) {
	task, err := s.studio.GetTask(c.Request.Context(), userOf(c), c.Param("taskId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) cancelTask(c *gin.Context) {
	task, err := s.studio.CancelTask(c.Request.Context(), userOf(c), c.Param("taskId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) retryTask(c *gin.Context) {
	task, err := s.studio.RetryTask(c.Request.Context(), userOf(c), c.Param("taskId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}
