package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shotdeck/internal/prompts"
	"shotdeck/internal/services"
)

type generatePromptsRequest struct {
	prompts.GenerateRequest
	WithSummaries bool `json:"withSummaries"`
}

type summarizeRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) promptService(c *gin.Context, op string) bool {
	if s.prompts != nil {
		return true
	}
	s.writeError(c, services.WithHint(
		services.Wrap(services.ErrConfiguration, "api", op, "prompt service not configured", nil),
		"set [llm] api_key or OPENAI_API_KEY",
	))
	return false
}

func (s *Server) generatePrompts(c *gin.Context) {
	const op = "generate prompts"
	if !s.promptService(c, op) {
		return
	}
	var req generatePromptsRequest
	if err := bindJSON(c, op, &req, false); err != nil {
		s.writeError(c, err)
		return
	}
	if req.WithSummaries {
		out, err := s.prompts.GenerateWithSummaries(c.Request.Context(), userOf(c), req.GenerateRequest)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"prompts": out})
		return
	}
	texts, err := s.prompts.Generate(c.Request.Context(), userOf(c), req.GenerateRequest)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]prompts.Prompt, 0, len(texts))
	for _, text := range texts {
		out = append(out, prompts.Prompt{Text: text})
	}
	c.JSON(http.StatusOK, gin.H{"prompts": out})
}

func (s *Server) editPrompt(c *gin.Context) {
	const op = "edit prompt"
	if !s.promptService(c, op) {
		return
	}
	var req prompts.EditRequest
	if err := bindJSON(c, op, &req, false); err != nil {
		s.writeError(c, err)
		return
	}
	text, err := s.prompts.Edit(c.Request.Context(), userOf(c), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": text})
}

func (s *Server) summarizePrompt(c *gin.Context) {
	const op = "summarize prompt"
	if !s.promptService(c, op) {
		return
	}
	var req summarizeRequest
	if err := bindJSON(c, op, &req, false); err != nil {
		s.writeError(c, err)
		return
	}
	summary, err := s.prompts.Summarize(c.Request.Context(), userOf(c), req.Prompt)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
