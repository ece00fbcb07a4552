package routes

import (
	"context"
	"errors"
	"io"
	"net/http"

	"pdf-chat-service/internal/queue"
	"pdf-chat-service/middleware"
	"pdf-chat-service/models"
	"pdf-chat-service/services"
	"pdf-chat-service/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultUploadName = "document.pdf"

// DocumentService is what the PDF routes need from services.PDFService
type DocumentService interface {
	Validate(filename string, data []byte) error
	NewDocumentID() string
	Upload(ctx context.Context, filename string, data []byte) (*models.UploadResult, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// SetupPDFRoutes registers upload, listing and deletion under /api/pdf.
// enqueuer may be nil, in which case async uploads answer 503.
func SetupPDFRoutes(router *gin.Engine, pdfService DocumentService, enqueuer queue.Enqueuer, maxFileSize int64, logger *zap.Logger) {
	h := &pdfHandler{pdf: pdfService, enqueuer: enqueuer, maxFileSize: maxFileSize, logger: logger}

	pdf := router.Group("/api/pdf")
	pdf.Use(middleware.RequestSizeLimit(maxFileSize))
	{
		pdf.POST("/upload", h.upload)
		pdf.POST("/upload/async", h.uploadAsync)
		pdf.GET("/documents", h.listDocuments)
		pdf.DELETE("/:documentId", h.deleteDocument)
	}
}

type pdfHandler struct {
	pdf         DocumentService
	enqueuer    queue.Enqueuer
	maxFileSize int64
	logger      *zap.Logger
}

// readUpload reads the multipart "file" field fully into memory. It writes
// the error response itself and reports whether the caller may continue.
func (h *pdfHandler) readUpload(c *gin.Context) (string, []byte, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			utils.RespondWithTooLarge(c, "File size exceeds maximum limit", gin.H{"max_size": h.maxFileSize})
			return "", nil, false
		}
		utils.RespondWithBadRequest(c, "No PDF file provided", nil)
		return "", nil, false
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		utils.RespondWithTooLarge(c, "File size exceeds maximum limit", gin.H{"max_size": h.maxFileSize})
		return "", nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		utils.RespondWithBadRequest(c, "Cannot read uploaded file", nil)
		return "", nil, false
	}

	filename := header.Filename
	if filename == "" {
		filename = defaultUploadName
	}
	return filename, data, true
}

// respondUploadError maps a failed validation or ingestion to the error envelope
func (h *pdfHandler) respondUploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrFileTooLarge):
		utils.RespondWithTooLarge(c, "File size exceeds maximum limit", gin.H{"max_size": h.maxFileSize})
	case errors.Is(err, services.ErrInvalidInput):
		utils.RespondWithBadRequest(c, "Only valid PDF files are allowed", err.Error())
	default:
		utils.RespondWithInternalError(c, "Failed to upload and process PDF", nil)
	}
}

func (h *pdfHandler) upload(c *gin.Context) {
	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}

	ctx, cancel := utils.WithIngestTimeout(c.Request.Context())
	defer cancel()

	result, err := h.pdf.Upload(ctx, filename, data)
	if err != nil {
		c.Error(err)
		h.respondUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UploadResponse{
		Success:    true,
		DocumentID: result.DocumentID,
		Filename:   result.Filename,
		ChunkCount: result.ChunkCount,
		Message:    "PDF uploaded and processed successfully!",
	})
}

func (h *pdfHandler) uploadAsync(c *gin.Context) {
	if h.enqueuer == nil {
		utils.RespondWithServiceUnavailable(c, "Background processing is not configured")
		return
	}

	filename, data, ok := h.readUpload(c)
	if !ok {
		return
	}
	if err := h.pdf.Validate(filename, data); err != nil {
		h.respondUploadError(c, err)
		return
	}

	documentID := h.pdf.NewDocumentID()
	taskID, err := h.enqueuer.EnqueueIngest(c.Request.Context(), queue.IngestPayload{
		DocumentID: documentID,
		Filename:   filename,
		Data:       data,
		RequestID:  middleware.GetRequestID(c),
	})
	if err != nil {
		h.logger.Error("Failed to enqueue PDF", zap.String("document_id", documentID), zap.Error(err))
		utils.RespondWithInternalError(c, "Failed to queue PDF for processing", nil)
		return
	}

	c.JSON(http.StatusAccepted, models.AsyncUploadResponse{
		Success:    true,
		DocumentID: documentID,
		Filename:   filename,
		TaskID:     taskID,
		Status:     models.StatusQueued,
	})
}

func (h *pdfHandler) listDocuments(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	docs, err := h.pdf.ListDocuments(ctx)
	if err != nil {
		c.Error(err)
		utils.RespondWithInternalError(c, "Failed to fetch documents", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *pdfHandler) deleteDocument(c *gin.Context) {
	ctx, cancel := utils.WithTimeout(c.Request.Context())
	defer cancel()

	if err := h.pdf.DeleteDocument(ctx, c.Param("documentId")); err != nil {
		c.Error(err)
		if errors.Is(err, services.ErrInvalidInput) {
			utils.RespondWithBadRequest(c, "Document ID is required", nil)
			return
		}
		utils.RespondWithInternalError(c, "Failed to delete document", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Document deleted successfully"})
}
