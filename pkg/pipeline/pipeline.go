package pipeline

import (
	"context"
	"fmt"

	"github.com/finlens/finlens/internal/models"
	"github.com/finlens/finlens/internal/types"
	"github.com/finlens/finlens/pkg/extractor"
	"github.com/finlens/finlens/pkg/logging"
)

// Pipeline runs one document from storage path to persisted chunks. All
// collaborators are injected at construction; there is no shared state
// between runs.
type Pipeline struct {
	resolver   types.FileResolver
	oracle     types.ExtractionOracle
	normalizer *extractor.Normalizer
	embedder   types.EmbeddingClient
	store      types.ChunkStore
	log        *logging.Logger
}

func New(resolver types.FileResolver, oracle types.ExtractionOracle,
	normalizer *extractor.Normalizer, embedder types.EmbeddingClient,
	store types.ChunkStore, log *logging.Logger) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		oracle:     oracle,
		normalizer: normalizer,
		embedder:   embedder,
		store:      store,
		log:        log,
	}
}

// Result summarizes a completed run.
type Result struct {
	ChunkCount int
	PageCount  int
}

// Process drives the document through the processing state machine:
// processing, then completed or failed. Whatever goes wrong after the
// document is marked processing, it is moved to failed before the error
// propagates. Partial chunk writes are not rolled back; re-processing means
// re-running the full pipeline.
func (p *Pipeline) Process(ctx context.Context, doc models.Document) (Result, error) {
	log := p.log.With("document_id", doc.ID, "chat_id", doc.ChatID, "file", doc.Name)

	processing := models.StatusProcessing
	if err := p.store.UpdateDocument(ctx, doc.ID, models.DocumentUpdate{Status: &processing}); err != nil {
		log.Error("failed to mark document processing", "error", err)
		return Result{}, err
	}

	res, err := p.run(ctx, doc, log)
	if err != nil {
		log.Error("document processing failed", "error", err)
		failed := models.StatusFailed
		if uerr := p.store.UpdateDocument(ctx, doc.ID, models.DocumentUpdate{Status: &failed}); uerr != nil {
			log.Error("failed to mark document failed", "error", uerr)
		}
		return Result{}, err
	}

	log.Info("document processed", "chunks", res.ChunkCount, "pages", res.PageCount)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, doc models.Document, log *logging.Logger) (Result, error) {
	fileBytes, err := p.resolver.Resolve(ctx, doc.FilePath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve %s: %w", doc.FilePath, err)
	}

	elements, err := p.oracle.Extract(ctx, fileBytes, doc.Name)
	if err != nil {
		return Result{}, &models.ExtractionError{Filename: doc.Name, Cause: err}
	}
	if len(elements) == 0 {
		return Result{}, &models.ExtractionError{Filename: doc.Name, Cause: fmt.Errorf("oracle returned no elements")}
	}

	norm := p.normalizer.Normalize(elements)
	log.Debug("extraction normalized", "elements", len(elements), "chunks", len(norm.Chunks))

	// Chunks are embedded strictly in order; the 0-based position in this
	// final sequence is the chunk_index, shared across text and table chunks.
	for i := range norm.Chunks {
		embedding, err := p.embedder.Embed(ctx, norm.Chunks[i].Text)
		if err != nil {
			return Result{}, err
		}
		norm.Chunks[i].DocumentID = doc.ID
		norm.Chunks[i].Index = i
		norm.Chunks[i].Embedding = embedding
	}

	if err := p.store.InsertChunks(ctx, doc.ID, norm.Chunks); err != nil {
		return Result{}, err
	}

	completed := models.StatusCompleted
	update := models.DocumentUpdate{Status: &completed, PageCount: &norm.TotalPages}
	if err := p.store.UpdateDocument(ctx, doc.ID, update); err != nil {
		return Result{}, err
	}

	return Result{ChunkCount: len(norm.Chunks), PageCount: norm.TotalPages}, nil
}
