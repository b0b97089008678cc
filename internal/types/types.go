package types

import (
	"context"

	"github.com/google/uuid"

	"github.com/finlens/finlens/internal/models"
)

// ExtractionOracle partitions a PDF into typed elements, in original document
// order. An empty result is total extraction failure.
type ExtractionOracle interface {
	Extract(ctx context.Context, fileBytes []byte, filename string) ([]models.RawElement, error)
}

// EmbeddingClient converts text to a vector. Dimension validation is the
// gateway's job, not the client's.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer from an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FileResolver turns a storage path into the document bytes, typically via a
// short-lived signed URL.
type FileResolver interface {
	Resolve(ctx context.Context, storagePath string) ([]byte, error)
}

// ChunkStore is the vector-capable persistence layer. No call spans a
// transaction with any other call; writes are fire-and-forget from the
// pipeline's perspective.
type ChunkStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) (int64, error)
	UpdateDocument(ctx context.Context, documentID int64, update models.DocumentUpdate) error
	DocumentsByChat(ctx context.Context, chatID uuid.UUID) ([]models.Document, error)
	InsertChunks(ctx context.Context, documentID int64, chunks []models.Chunk) error
	SimilaritySearch(ctx context.Context, embedding []float32, scope models.SearchScope) ([]models.ScoredChunk, error)
	ChunkWindow(ctx context.Context, documentID int64, pageNumber, center, radius int) ([]models.Chunk, error)
	InsertQuery(ctx context.Context, rec *models.QueryRecord) error
}
