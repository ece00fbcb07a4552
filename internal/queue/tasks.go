package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"pdf-chat-service/internal/config"
	"pdf-chat-service/internal/logger"
	"pdf-chat-service/models"
	"pdf-chat-service/services"
)

const (
	TaskIngestPDF = "pdf:ingest"

	QueueCritical = "critical"
	QueueDefault  = "default"
)

// IngestPayload carries the whole upload so the worker needs no shared disk
type IngestPayload struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Data       []byte `json:"data"`
	RequestID  string `json:"request_id,omitempty"`
}

// NewIngestTask creates the background ingestion task for one upload
func NewIngestTask(p IngestPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestPDF,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueCritical),
		asynq.TaskID(p.DocumentID),
	), nil
}

// RedisConnOpt builds asynq connection options from the shared Redis settings
func RedisConnOpt(cfg *config.Config) (asynq.RedisClientOpt, error) {
	opt, err := config.RedisOptions(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// Enqueuer hands uploads to the worker
type Enqueuer interface {
	EnqueueIngest(ctx context.Context, p IngestPayload) (string, error)
}

// Client is the asynq-backed Enqueuer
type Client struct {
	client *asynq.Client
}

func NewClient(opt asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

func (c *Client) EnqueueIngest(ctx context.Context, p IngestPayload) (string, error) {
	task, err := NewIngestTask(p)
	if err != nil {
		return "", fmt.Errorf("building ingest task: %w", err)
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueueing ingest task: %w", err)
	}
	return info.ID, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Ingester is the part of the PDF service the worker drives
type Ingester interface {
	IngestDocument(ctx context.Context, documentID, filename string, data []byte) (*models.UploadResult, error)
}

// Task handlers
type TaskProcessor struct {
	ingester Ingester
	logger   *zap.Logger
}

func NewTaskProcessor(ingester Ingester, logger *zap.Logger) *TaskProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskProcessor{ingester: ingester, logger: logger}
}

// ProcessIngest runs the ingestion pipeline for one queued upload. Inputs
// that can never succeed are not retried.
func (p *TaskProcessor) ProcessIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	ctx = logger.WithRequestID(ctx, payload.RequestID)
	log := logger.For(ctx, p.logger)
	log.Info("Processing PDF",
		zap.String("document_id", payload.DocumentID),
		zap.String("filename", payload.Filename),
	)

	result, err := p.ingester.IngestDocument(ctx, payload.DocumentID, payload.Filename, payload.Data)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) || errors.Is(err, services.ErrPDFParse) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	log.Info("PDF processed",
		zap.String("document_id", result.DocumentID),
		zap.Int("chunks", result.ChunkCount),
	)
	return nil
}

// Register attaches every handler to mux
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskIngestPDF, p.ProcessIngest)
}
