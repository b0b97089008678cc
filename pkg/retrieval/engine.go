package retrieval

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/finlens/finlens/internal/models"
	"github.com/finlens/finlens/internal/types"
	"github.com/finlens/finlens/pkg/logging"
)

// Config tunes retrieval behavior.
type Config struct {
	// TopK is the number of chunks requested from the store.
	TopK int

	// SimilarityThreshold is the minimum similarity a chunk must meet; the
	// store excludes anything below it.
	SimilarityThreshold float32

	// WindowRadius bounds the chunk_index window searched for a co-located
	// table around the best text match.
	WindowRadius int

	// RefuseOnNoMatch makes the engine answer with a fixed refusal instead
	// of generating ungrounded when nothing clears the threshold.
	RefuseOnNoMatch bool
}

// Engine answers a question against a session's processed documents: embed
// the query, retrieve similar chunks, widen to a nearby table when useful,
// generate a grounded answer and persist the exchange.
type Engine struct {
	embedder  types.EmbeddingClient
	generator types.Generator
	store     types.ChunkStore
	config    Config
	log       *logging.Logger
}

func New(embedder types.EmbeddingClient, generator types.Generator,
	store types.ChunkStore, config Config, log *logging.Logger) *Engine {
	if config.TopK < 1 {
		config.TopK = 5
	}
	if config.WindowRadius == 0 {
		config.WindowRadius = 5
	}
	return &Engine{
		embedder:  embedder,
		generator: generator,
		store:     store,
		config:    config,
		log:       log,
	}
}

// Answer is the engine's result: the generated text plus the citations it
// was grounded on.
type Answer struct {
	Text    string
	Sources []models.SourceReference
}

// Answer runs one query for a chat session, optionally restricted to a
// subset of its documents. Any failure is a failure of the whole query; there
// are no partial answers.
func (e *Engine) Answer(ctx context.Context, queryText string, chatID uuid.UUID, documentIDs []int64) (*Answer, error) {
	log := e.log.With("chat_id", chatID)

	embedding, err := e.embedder.Embed(ctx, queryText)
	if err != nil {
		log.Error("query embedding failed", "error", err)
		return nil, err
	}

	scope := models.SearchScope{
		ChatID:      chatID,
		DocumentIDs: documentIDs,
		Threshold:   e.config.SimilarityThreshold,
		Limit:       e.config.TopK,
	}
	matches, err := e.store.SimilaritySearch(ctx, embedding, scope)
	if err != nil {
		log.Error("similarity search failed", "error", err)
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	var responseText string
	if len(matches) == 0 && e.config.RefuseOnNoMatch {
		log.Info("no chunks above threshold, refusing", "threshold", e.config.SimilarityThreshold)
		responseText = refusalAnswer
	} else {
		table := e.widenTableContext(ctx, matches, log)
		prompt := buildPrompt(queryText, matches, table)

		responseText, err = e.generator.Generate(ctx, prompt)
		if err != nil {
			log.Error("answer generation failed", "error", err)
			return nil, &models.GenerationError{Cause: err}
		}
	}

	sources := make([]models.SourceReference, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, m.Ref())
	}

	rec := &models.QueryRecord{
		ChatID:       chatID,
		QueryText:    queryText,
		ResponseText: responseText,
		Sources:      sources,
	}
	if err := e.store.InsertQuery(ctx, rec); err != nil {
		log.Error("failed to persist query record", "error", err)
		return nil, err
	}

	log.Info("query answered", "sources", len(sources))
	return &Answer{Text: responseText, Sources: sources}, nil
}

// widenTableContext looks for a table chunk co-located with the single best
// text match, within WindowRadius chunk_index positions on the same document
// and page. The first table found wins. This step is best-effort: on any
// miss or error the query proceeds with text-only grounding.
func (e *Engine) widenTableContext(ctx context.Context, matches []models.ScoredChunk, log *logging.Logger) *models.TablePayload {
	best := bestTextMatch(matches)
	if best == nil {
		return nil
	}

	window, err := e.store.ChunkWindow(ctx, best.DocumentID, best.PageNumber, best.Index, e.config.WindowRadius)
	if err != nil {
		log.Warn("table window lookup failed", "document_id", best.DocumentID, "error", err)
		return nil
	}

	for _, chunk := range window {
		if chunk.Type == models.ChunkTable && chunk.Table != nil {
			log.Debug("widened context with nearby table",
				"document_id", best.DocumentID, "page", chunk.PageNumber, "chunk_index", chunk.Index)
			return chunk.Table
		}
	}
	return nil
}

// bestTextMatch returns the text chunk with the highest similarity, or nil
// when the results hold no text chunks.
func bestTextMatch(matches []models.ScoredChunk) *models.ScoredChunk {
	var best *models.ScoredChunk
	for i := range matches {
		if matches[i].Type != models.ChunkText {
			continue
		}
		if best == nil || matches[i].Similarity > best.Similarity {
			best = &matches[i]
		}
	}
	return best
}
