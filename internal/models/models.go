package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus tracks a document through its processing lifecycle.
type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// ChunkType distinguishes plain prose from tabular content.
type ChunkType string

const (
	ChunkText  ChunkType = "text"
	ChunkTable ChunkType = "table"
)

// Document is an uploaded PDF registered against a chat session. Its status
// is mutated only by the document pipeline.
type Document struct {
	ID         int64
	ChatID     uuid.UUID
	Name       string
	FilePath   string
	PageCount  int
	Status     DocumentStatus
	UploadedAt time.Time
}

// TablePayload is the structured form of a table chunk. It is persisted as an
// opaque JSON blob and must round-trip through storage unchanged.
type TablePayload struct {
	Text       string `json:"text"`
	HTML       string `json:"html"`
	PageNumber int    `json:"page_number"`
}

// Chunk is one retrievable unit of document content. Index is the 0-based
// position within the owning document; text and table chunks share a single
// contiguous index space. Table is non-nil only for table chunks.
type Chunk struct {
	DocumentID int64
	Index      int
	Type       ChunkType
	Text       string
	PageNumber int
	Table      *TablePayload
	Embedding  []float32
}

// RawElement is one element as returned by the extraction oracle, before
// normalization.
type RawElement struct {
	Type       string
	Text       string
	PageNumber int
	HTML       string
}

// ScoredChunk is a retrieval-time view of a chunk: the chunk itself, its
// similarity to the query, and the parent document's display name.
type ScoredChunk struct {
	Chunk
	Similarity   float32
	DocumentName string
}

// SourceReference is the persisted citation embedded in a query record.
type SourceReference struct {
	DocumentID   int64         `json:"document_id"`
	DocumentName string        `json:"document_name"`
	PageNumber   int           `json:"page_number"`
	ChunkType    ChunkType     `json:"chunk_type"`
	Text         string        `json:"text"`
	Table        *TablePayload `json:"table_data,omitempty"`
	Similarity   float32       `json:"similarity"`
}

// QueryRecord is the audit log entry for one answered question. Written once,
// never mutated.
type QueryRecord struct {
	ID           int64
	ChatID       uuid.UUID
	QueryText    string
	ResponseText string
	Sources      []SourceReference
	CreatedAt    time.Time
}

// DocumentUpdate carries the fields the pipeline may change on a document.
// Nil fields are left untouched.
type DocumentUpdate struct {
	Status    *DocumentStatus
	PageCount *int
}

// SearchScope bounds a similarity search to a chat session and, optionally,
// a subset of its documents. The store returns only matches at or above
// Threshold, at most Limit of them, ranked by descending similarity.
type SearchScope struct {
	ChatID      uuid.UUID
	DocumentIDs []int64
	Threshold   float32
	Limit       int
}

// BatchResult is the per-document outcome of a batch run. Err is nil on
// success.
type BatchResult struct {
	DocumentID int64
	Name       string
	ChunkCount int
	PageCount  int
	Err        error
}

// Ref converts a scored chunk into its persistable citation form.
func (s ScoredChunk) Ref() SourceReference {
	return SourceReference{
		DocumentID:   s.DocumentID,
		DocumentName: s.DocumentName,
		PageNumber:   s.PageNumber,
		ChunkType:    s.Type,
		Text:         s.Text,
		Table:        s.Table,
		Similarity:   s.Similarity,
	}
}
