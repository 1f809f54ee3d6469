package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"finrag-go/internal/model"
	"finrag-go/internal/service"
	"finrag-go/pkg/log"
)

const defaultTopK = 10

// SearchHandler serves the retrieval endpoint.
type SearchHandler struct {
	searchService *service.SearchService
}

// NewSearchHandler creates a new SearchHandler instance.
func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search handles one retrieval request.
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: query is required"})
		return
	}
	if req.TopK == 0 {
		req.TopK = defaultTopK
	}

	results, err := h.searchService.Search(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, model.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("[SearchHandler] search failed, query: %q, error: %v", req.Query, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": results})
}
