package models

import "time"

// Document is an uploaded PDF as seen by the document list
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ChunkMetadata is stored alongside every chunk record
type ChunkMetadata struct {
	DocumentID string    `bson:"document_id" json:"document_id"`
	Filename   string    `bson:"filename" json:"filename"`
	ChunkIndex int       `bson:"chunk_index" json:"chunk_index"`
	ChunkCount int       `bson:"chunk_count" json:"chunk_count"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// Match is a stored chunk returned by a similarity query
type Match struct {
	Content    string        `json:"content"`
	Similarity float64       `json:"similarity"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// UploadResult is what a finished ingestion reports back
type UploadResult struct {
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunkCount"`
}

// UploadResponse represents the response after successful upload
type UploadResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunkCount"`
	Message    string `json:"message"`
}

// AsyncUploadResponse is returned when ingestion is handed to the worker
type AsyncUploadResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	TaskID     string `json:"taskId"`
	Status     string `json:"status"`
}

// Ingestion status reported for queued uploads
const (
	StatusQueued = "queued"
)
