package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"finrag-go/internal/model"
	"finrag-go/internal/repository"
	"finrag-go/internal/tracker"
	"finrag-go/pkg/log"
)

// IndexAdmin is the slice of the vector store the admin endpoints need.
type IndexAdmin interface {
	RecreateIndex(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
	DeleteByFileName(ctx context.Context, fileName string) error
}

// fileLister is implemented by trackers that can enumerate their entries.
type fileLister interface {
	List() ([]*model.ProcessedFile, error)
}

// AdminHandler serves the operator endpoints: tracker resets, index
// management and performance stats.
type AdminHandler struct {
	tracker  tracker.Tracker
	index    IndexAdmin
	queryLog repository.QueryLogRepository
}

// NewAdminHandler creates a new AdminHandler instance. queryLog may be
// nil when performance logging is disabled.
func NewAdminHandler(tr tracker.Tracker, index IndexAdmin, queryLog repository.QueryLogRepository) *AdminHandler {
	return &AdminHandler{tracker: tr, index: index, queryLog: queryLog}
}

// ResetTrackerRequest is the request body for the tracker reset endpoint.
// An empty file_name resets every entry.
type ResetTrackerRequest struct {
	FileName    string `json:"file_name"`
	PurgeChunks bool   `json:"purge_chunks"`
}

// ResetTracker removes tracker entries so the files are re-ingested on
// the next run. With purge_chunks the file's stored chunks are deleted
// too.
func (h *AdminHandler) ResetTracker(c *gin.Context) {
	var req ResetTrackerRequest
	_ = c.ShouldBindJSON(&req)

	if req.FileName == "" {
		if req.PurgeChunks {
			c.JSON(http.StatusBadRequest, gin.H{"error": "purge_chunks requires a file_name"})
			return
		}
		if err := h.tracker.ResetAll(); err != nil {
			log.Errorf("[AdminHandler] tracker reset failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "tracker reset failed"})
			return
		}
		log.Info("[AdminHandler] tracker fully reset")
		c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "tracker reset"})
		return
	}

	if err := h.tracker.Reset(req.FileName); err != nil {
		log.Errorf("[AdminHandler] tracker reset failed, file: %s, error: %v", req.FileName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tracker reset failed"})
		return
	}
	if req.PurgeChunks {
		if err := h.index.DeleteByFileName(c.Request.Context(), req.FileName); err != nil {
			log.Errorf("[AdminHandler] chunk purge failed, file: %s, error: %v", req.FileName, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "tracker reset but chunk purge failed"})
			return
		}
	}

	log.Infof("[AdminHandler] tracker reset, file: %s, purged: %v", req.FileName, req.PurgeChunks)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "tracker reset", "data": gin.H{"file_name": req.FileName}})
}

// RecreateIndex drops and recreates the chunk index and clears the
// tracker so the two stay consistent. Destructive; operator only.
func (h *AdminHandler) RecreateIndex(c *gin.Context) {
	if err := h.index.RecreateIndex(c.Request.Context()); err != nil {
		log.Errorf("[AdminHandler] index recreation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "index recreation failed"})
		return
	}
	if err := h.tracker.ResetAll(); err != nil {
		log.Errorf("[AdminHandler] tracker reset after index recreation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "index recreated but tracker reset failed"})
		return
	}

	log.Info("[AdminHandler] index recreated and tracker cleared")
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "index recreated"})
}

// IndexInfo reports the stored chunk count and, when the tracker supports
// it, the processed files.
func (h *AdminHandler) IndexInfo(c *gin.Context) {
	count, err := h.index.Count(c.Request.Context())
	if err != nil {
		log.Errorf("[AdminHandler] index count failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read index info"})
		return
	}

	data := gin.H{"chunk_count": count}
	if lister, ok := h.tracker.(fileLister); ok {
		files, err := lister.List()
		if err != nil {
			log.Errorf("[AdminHandler] tracker listing failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list processed files"})
			return
		}
		data["processed_files"] = files
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

// Stats reports aggregate query performance numbers.
func (h *AdminHandler) Stats(c *gin.Context) {
	if h.queryLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "query logging is not configured"})
		return
	}

	stats, err := h.queryLog.Stats()
	if err != nil {
		log.Errorf("[AdminHandler] stats query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": stats})
}
