package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens/finlens/internal/models"
	"github.com/finlens/finlens/pkg/logging"
	"github.com/finlens/finlens/pkg/retrieval"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

type fakeGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// fakeQueryStore serves a fixed scored corpus, honoring the scope's threshold
// and limit the way the real store does in SQL.
type fakeQueryStore struct {
	corpus    []models.ScoredChunk
	window    []models.Chunk
	windowErr error

	lastScope models.SearchScope
	queries   []*models.QueryRecord
	insertErr error
}

func (f *fakeQueryStore) CreateDocument(context.Context, *models.Document) (int64, error) {
	return 0, nil
}

func (f *fakeQueryStore) UpdateDocument(context.Context, int64, models.DocumentUpdate) error {
	return nil
}

func (f *fakeQueryStore) DocumentsByChat(context.Context, uuid.UUID) ([]models.Document, error) {
	return nil, nil
}

func (f *fakeQueryStore) InsertChunks(context.Context, int64, []models.Chunk) error {
	return nil
}

func (f *fakeQueryStore) SimilaritySearch(_ context.Context, _ []float32, scope models.SearchScope) ([]models.ScoredChunk, error) {
	f.lastScope = scope

	var out []models.ScoredChunk
	for _, sc := range f.corpus {
		if sc.Similarity < scope.Threshold {
			continue
		}
		out = append(out, sc)
		if len(out) == scope.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeQueryStore) ChunkWindow(context.Context, int64, int, int, int) ([]models.Chunk, error) {
	if f.windowErr != nil {
		return nil, f.windowErr
	}
	return f.window, nil
}

func (f *fakeQueryStore) InsertQuery(_ context.Context, rec *models.QueryRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.queries = append(f.queries, rec)
	return nil
}

func scoredCorpus() []models.ScoredChunk {
	mk := func(index int, page int, sim float32, text string) models.ScoredChunk {
		return models.ScoredChunk{
			Chunk: models.Chunk{
				DocumentID: 1,
				Index:      index,
				Type:       models.ChunkText,
				Text:       text,
				PageNumber: page,
			},
			Similarity:   sim,
			DocumentName: "annual-report.pdf",
		}
	}
	return []models.ScoredChunk{
		mk(10, 4, 0.9, "Total revenue reached 1.2 billion."),
		mk(22, 7, 0.6, "Operating expenses were flat."),
		mk(3, 1, 0.4, "The cover letter thanks shareholders."),
		mk(31, 9, 0.2, "Forward looking statements disclaimer."),
	}
}

func newEngine(store *fakeQueryStore, gen *fakeGenerator, config retrieval.Config) *retrieval.Engine {
	return retrieval.New(&fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}, gen, store, config, logging.Nop())
}

func TestEngine_Answer(t *testing.T) {
	store := &fakeQueryStore{corpus: scoredCorpus()}
	gen := &fakeGenerator{answer: "Revenue was 1.2 billion (annual-report.pdf, page 4)."}
	engine := newEngine(store, gen, retrieval.Config{TopK: 5, SimilarityThreshold: 0.5})

	chatID := uuid.New()
	answer, err := engine.Answer(context.Background(), "What was total revenue?", chatID, nil)
	require.NoError(t, err)

	// only the two chunks above the threshold survive
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, float32(0.9), answer.Sources[0].Similarity)
	assert.Equal(t, float32(0.6), answer.Sources[1].Similarity)
	assert.Equal(t, "annual-report.pdf", answer.Sources[0].DocumentName)
	assert.Equal(t, 4, answer.Sources[0].PageNumber)

	assert.Equal(t, gen.answer, answer.Text)

	// search ran scoped to the chat with the configured cutoff
	assert.Equal(t, chatID, store.lastScope.ChatID)
	assert.Equal(t, float32(0.5), store.lastScope.Threshold)
	assert.Equal(t, 5, store.lastScope.Limit)

	// the exchange is persisted with its citations
	require.Len(t, store.queries, 1)
	rec := store.queries[0]
	assert.Equal(t, "What was total revenue?", rec.QueryText)
	assert.Equal(t, gen.answer, rec.ResponseText)
	assert.Len(t, rec.Sources, 2)

	// prompt carries document name, page and the retrieved text
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "annual-report.pdf, page 4")
	assert.Contains(t, gen.prompts[0], "Total revenue reached 1.2 billion.")
	assert.Contains(t, gen.prompts[0], "What was total revenue?")
}

func TestEngine_DocumentScope(t *testing.T) {
	store := &fakeQueryStore{corpus: scoredCorpus()}
	engine := newEngine(store, &fakeGenerator{answer: "ok"}, retrieval.Config{TopK: 5, SimilarityThreshold: 0.5})

	_, err := engine.Answer(context.Background(), "query", uuid.New(), []int64{1, 2})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, store.lastScope.DocumentIDs)
}

func TestEngine_TableWindowWidening(t *testing.T) {
	table := &models.TablePayload{
		Text:       "Revenue | 1,200\nCosts | (400)",
		HTML:       "<table><tr><td>Revenue</td><td>1,200</td></tr></table>",
		PageNumber: 4,
	}
	store := &fakeQueryStore{
		corpus: scoredCorpus(),
		window: []models.Chunk{
			{DocumentID: 1, Index: 9, Type: models.ChunkText, Text: "intro", PageNumber: 4},
			{DocumentID: 1, Index: 11, Type: models.ChunkTable, Text: table.Text, PageNumber: 4, Table: table},
		},
	}
	gen := &fakeGenerator{answer: "ok"}
	engine := newEngine(store, gen, retrieval.Config{TopK: 5, SimilarityThreshold: 0.5, WindowRadius: 5})

	_, err := engine.Answer(context.Background(), "How did revenue compare to costs?", uuid.New(), nil)
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Nearby table on page 4")
	assert.Contains(t, gen.prompts[0], "Revenue | 1,200")
	assert.Contains(t, gen.prompts[0], "<table>")
}

func TestEngine_WideningIsBestEffort(t *testing.T) {
	store := &fakeQueryStore{
		corpus:    scoredCorpus(),
		windowErr: errors.New("window query failed"),
	}
	gen := &fakeGenerator{answer: "ok"}
	engine := newEngine(store, gen, retrieval.Config{TopK: 5, SimilarityThreshold: 0.5})

	answer, err := engine.Answer(context.Background(), "query", uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", answer.Text)
	assert.NotContains(t, gen.prompts[0], "Nearby table")
}

func TestEngine_RefusesWithoutMatches(t *testing.T) {
	store := &fakeQueryStore{}
	gen := &fakeGenerator{answer: "should not run"}
	engine := newEngine(store, gen, retrieval.Config{
		TopK: 5, SimilarityThreshold: 0.5, RefuseOnNoMatch: true,
	})

	answer, err := engine.Answer(context.Background(), "Who won the world cup?", uuid.New(), nil)
	require.NoError(t, err)

	assert.Empty(t, gen.prompts)
	assert.Empty(t, answer.Sources)
	assert.Contains(t, answer.Text, "could not find relevant information")

	// the refusal is still recorded as a query
	require.Len(t, store.queries, 1)
	assert.Equal(t, answer.Text, store.queries[0].ResponseText)
	assert.Empty(t, store.queries[0].Sources)
}

func TestEngine_AnswersWithoutMatchesByDefault(t *testing.T) {
	store := &fakeQueryStore{}
	gen := &fakeGenerator{answer: "The documents do not cover this."}
	engine := newEngine(store, gen, retrieval.Config{TopK: 5, SimilarityThreshold: 0.5})

	answer, err := engine.Answer(context.Background(), "Who won the world cup?", uuid.New(), nil)
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "no relevant passages")
	assert.Equal(t, "The documents do not cover this.", answer.Text)
}

func TestEngine_GenerationFailure(t *testing.T) {
	store := &fakeQueryStore{corpus: scoredCorpus()}
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	engine := newEngine(store, gen, retrieval.Config{TopK: 5, SimilarityThreshold: 0.5})

	_, err := engine.Answer(context.Background(), "query", uuid.New(), nil)

	var genErr *models.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Empty(t, store.queries)
}

func TestEngine_EmbeddingFailure(t *testing.T) {
	store := &fakeQueryStore{corpus: scoredCorpus()}
	engine := retrieval.New(
		&fakeEmbedder{err: &models.EmbeddingError{Reason: "oracle call failed"}},
		&fakeGenerator{}, store, retrieval.Config{TopK: 5, SimilarityThreshold: 0.5}, logging.Nop())

	_, err := engine.Answer(context.Background(), "query", uuid.New(), nil)

	var embErr *models.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Empty(t, store.queries)
}

func TestEngine_PersistFailure(t *testing.T) {
	store := &fakeQueryStore{
		corpus:    scoredCorpus(),
		insertErr: &models.StorageError{Op: "insert query", Cause: errors.New("connection reset")},
	}
	engine := newEngine(store, &fakeGenerator{answer: "ok"}, retrieval.Config{TopK: 5, SimilarityThreshold: 0.5})

	_, err := engine.Answer(context.Background(), "query", uuid.New(), nil)

	var storeErr *models.StorageError
	require.ErrorAs(t, err, &storeErr)
}
