package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"finrag-go/internal/model"
	"finrag-go/internal/service"
	"finrag-go/pkg/log"
)

// AnswerHandler serves the retrieve-then-generate endpoint.
type AnswerHandler struct {
	answerService *service.AnswerService
}

// NewAnswerHandler creates a new AnswerHandler instance.
func NewAnswerHandler(answerService *service.AnswerService) *AnswerHandler {
	return &AnswerHandler{answerService: answerService}
}

// Answer handles one question end to end.
func (h *AnswerHandler) Answer(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: query is required"})
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}

	resp, err := h.answerService.Answer(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, model.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("[AnswerHandler] answer failed, query: %q, error: %v", req.Query, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "answer generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": resp})
}
