package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"study-notes-platform/internal/config"
	"study-notes-platform/internal/logger"
	"study-notes-platform/models"
	"study-notes-platform/utils"
)

// DocumentService is the pipeline surface the HTTP layer needs.
type DocumentService interface {
	Ingest(ctx context.Context, data []byte, fileName, mimeType string) (*models.IngestResponse, error)
	IngestHTML(ctx context.Context, req models.HTMLIngestRequest) (*models.IngestResponse, error)
	JobStatus(ctx context.Context, jobID string) (*models.Job, error)
	GetDocument(ctx context.Context, documentID string) (*models.Document, error)
	ListDocuments(ctx context.Context, limit int) ([]models.DocumentSummary, error)
	DeleteDocument(ctx context.Context, documentID string) error
	ResolveScope(ctx context.Context, documentID string, scope models.Scope) (string, error)
	Generate(ctx context.Context, documentID string, contentType models.ContentType, req models.GenerateRequest, appendMode bool) (*models.GenerateResponse, error)
	StoredContent(ctx context.Context, documentID string, contentType models.ContentType) (json.RawMessage, error)
	Chat(ctx context.Context, documentID string, req models.ChatRequest) (*models.ChatResponse, error)
	ChatStream(ctx context.Context, documentID string, req models.ChatRequest) (iter.Seq2[string, error], []models.Source, error)
	Merge(oldRaw, newRaw json.RawMessage, contentType models.ContentType) (any, error)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func SetupDocumentRoutes(router gin.IRouter, cfg *config.Config, svc DocumentService) {
	documents := router.Group("/documents")
	documents.POST("", HandleUpload(cfg, svc))
	documents.POST("/html", HandleHTMLIngest(svc))
	documents.GET("", HandleListDocuments(svc))
	documents.GET("/:id", HandleGetDocument(svc))
	documents.DELETE("/:id", HandleDeleteDocument(svc))
	documents.POST("/:id/scope", HandleResolveScope(svc))
	documents.POST("/:id/generate/:contentType", HandleGenerate(svc))
	documents.GET("/:id/content/:contentType", HandleStoredContent(svc))
	documents.POST("/:id/chat", HandleChat(svc))
	documents.GET("/:id/chat/stream", HandleChatStream(svc))

	router.GET("/jobs/:id", HandleJobStatus(svc))
	router.POST("/merge/:contentType", HandleMerge(svc))
}

// HandleUpload accepts a multipart "file" field and queues it for ingestion.
func HandleUpload(cfg *config.Config, svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithBadRequest(c, "Invalid multipart form", gin.H{"error": err.Error()})
			return
		}
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", gin.H{"field": "file"})
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large", "File size exceeds maximum limit",
				gin.H{"max_size": cfg.MaxFileSize})
			return
		}
		data, err := io.ReadAll(io.LimitReader(file, cfg.MaxFileSize))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", nil)
			return
		}

		resp, err := svc.Ingest(c.Request.Context(), data, header.Filename, header.Header.Get("Content-Type"))
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, resp)
	}
}

func HandleHTMLIngest(svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.HTMLIngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		resp, err := svc.IngestHTML(c.Request.Context(), req)
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, resp)
	}
}

func HandleJobStatus(svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := svc.JobStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func HandleListDocuments(svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultListLimit
		if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= maxListLimit {
			limit = l
		}
		docs, err := svc.ListDocuments(c.Request.Context(), limit)
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs, "limit": limit})
	}
}

func HandleGetDocument(svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := svc.GetDocument(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func HandleDeleteDocument(svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func HandleResolveScope(svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScopeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		text, err := svc.ResolveScope(c.Request.Context(), c.Param("id"), req.Scope)
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documentId": c.Param("id"), "text": text})
	}
}

// HandleGenerate runs one full-document generation. ?mode=append merges the
// result into what is already stored.
func HandleGenerate(svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		contentType, ok := models.ParseContentType(c.Param("contentType"))
		if !ok {
			utils.RespondWithBadRequest(c, "Unknown content type", gin.H{"contentType": c.Param("contentType")})
			return
		}
		var req models.GenerateRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
				return
			}
		}

		resp, err := svc.Generate(c.Request.Context(), c.Param("id"), contentType, req, c.Query("mode") == "append")
		if errors.Is(err, utils.ErrGenerationParseFailed) && resp != nil {
			utils.RespondWithError(c, http.StatusUnprocessableEntity, "generation_parse_failed",
				utils.ErrGenerationParseFailed.Error(), gin.H{"raw": resp.Raw})
			return
		}
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func HandleStoredContent(svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		contentType, ok := models.ParseContentType(c.Param("contentType"))
		if !ok {
			utils.RespondWithBadRequest(c, "Unknown content type", gin.H{"contentType": c.Param("contentType")})
			return
		}
		raw, err := svc.StoredContent(c.Request.Context(), c.Param("id"), contentType)
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documentId": c.Param("id"), "contentType": contentType, "data": raw})
	}
}

func HandleChat(svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		resp, err := svc.Chat(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleChatStream answers ?q= as Server-Sent Events: one "message" per
// fragment, then "done", or "error" if the upstream fails mid-stream.
// Errors found before the first fragment are plain JSON responses.
func HandleChatStream(svc DocumentService) gin.HandlerFunc {
	log := logger.With("chat_stream")
	return func(c *gin.Context) {
		req := models.ChatRequest{Query: c.Query("q")}
		if req.Query == "" {
			utils.RespondWithBadRequest(c, "Query parameter q is required", nil)
			return
		}
		if k, err := strconv.Atoi(c.Query("topK")); err == nil {
			req.Settings.TopK = k
		}

		ctx := c.Request.Context()
		seq, sources, err := svc.ChatStream(ctx, c.Param("id"), req)
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		fragments := 0
		for fragment, err := range seq {
			if err != nil {
				log.Warn("stream failed", "document_id", c.Param("id"), "fragments", fragments, "error", err)
				_, code := utils.StatusFor(err)
				c.SSEvent("error", gin.H{"error_code": code, "message": "generation failed"})
				c.Writer.Flush()
				return
			}
			if ctx.Err() != nil {
				return
			}
			fragments++
			c.SSEvent("message", gin.H{"text": fragment})
			c.Writer.Flush()
		}
		c.SSEvent("done", gin.H{"sources": sources})
		c.Writer.Flush()
	}
}

func HandleMerge(svc DocumentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		contentType, ok := models.ParseContentType(c.Param("contentType"))
		if !ok {
			utils.RespondWithBadRequest(c, "Unknown content type", gin.H{"contentType": c.Param("contentType")})
			return
		}
		var req models.MergeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		merged, err := svc.Merge(req.Old, req.New, contentType)
		if err != nil {
			utils.RespondWithPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"contentType": contentType, "data": merged})
	}
}
