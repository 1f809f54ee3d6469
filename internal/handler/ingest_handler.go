package handler

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"finrag-go/internal/pipeline"
	"finrag-go/pkg/kafka"
	"finrag-go/pkg/log"
	"finrag-go/pkg/tasks"
)

// IngestHandler drives the ingestion pipeline over HTTP.
type IngestHandler struct {
	ingestor     *pipeline.Ingestor
	kafkaEnabled bool
}

// NewIngestHandler creates a new IngestHandler instance. kafkaEnabled
// gates the async ingestion path.
func NewIngestHandler(ingestor *pipeline.Ingestor, kafkaEnabled bool) *IngestHandler {
	return &IngestHandler{ingestor: ingestor, kafkaEnabled: kafkaEnabled}
}

// IngestFolderRequest is the optional request body for folder ingestion.
type IngestFolderRequest struct {
	Path string `json:"path"`
}

// IngestFolder runs folder ingestion. With ?async=true the candidate
// files are enqueued as Kafka tasks instead of processed inline.
func (h *IngestHandler) IngestFolder(c *gin.Context) {
	var req IngestFolderRequest
	// Body is optional; an empty path means the configured raw files dir.
	_ = c.ShouldBindJSON(&req)

	if async := c.Query("async"); async == "1" || async == "true" {
		h.enqueueFolder(c, req.Path)
		return
	}

	report, err := h.ingestor.IngestFolder(c.Request.Context(), req.Path)
	if err != nil {
		log.Errorf("[IngestHandler] folder ingestion failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": report})
}

// enqueueFolder publishes one ingest task per candidate file.
func (h *IngestHandler) enqueueFolder(c *gin.Context, path string) {
	if !h.kafkaEnabled {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "async ingestion is not configured"})
		return
	}

	files, err := h.ingestor.DiscoverFolder(path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	enqueued := 0
	for _, fileName := range files {
		task := tasks.IngestTask{FileName: fileName, Source: tasks.SourceFolder}
		if err := kafka.ProduceIngestTask(task); err != nil {
			log.Errorf("[IngestHandler] failed to enqueue %s: %v", fileName, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue ingestion tasks"})
			return
		}
		enqueued++
	}

	log.Infof("[IngestHandler] enqueued %d ingest tasks", enqueued)
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "ingestion tasks enqueued",
		"data":    gin.H{"enqueued": enqueued},
	})
}

// IngestBucket runs ingestion over the configured object-store bucket.
func (h *IngestHandler) IngestBucket(c *gin.Context) {
	report, err := h.ingestor.IngestBucket(c.Request.Context())
	if err != nil {
		log.Errorf("[IngestHandler] bucket ingestion failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": report})
}

// Upload ingests one uploaded document immediately, bypassing the
// tracker. Re-uploading overwrites the file's chunks in place.
func (h *IngestHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing uploaded file"})
		return
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .pdf files are supported"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open uploaded file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return
	}

	fileName := filepath.Base(fileHeader.Filename)
	result, err := h.ingestor.IngestReader(c.Request.Context(), fileName, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Errorf("[IngestHandler] upload ingestion failed, file: %s, error: %v", fileName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": result})
}
