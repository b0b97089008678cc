package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens/finlens/internal/models"
	"github.com/finlens/finlens/pkg/extractor"
	"github.com/finlens/finlens/pkg/logging"
	"github.com/finlens/finlens/pkg/pipeline"
)

type fakeResolver struct {
	data map[string][]byte
	err  error
}

func (f *fakeResolver) Resolve(_ context.Context, path string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data[path], nil
}

type fakeOracle struct {
	elements map[string][]models.RawElement
	err      error
}

func (f *fakeOracle) Extract(_ context.Context, _ []byte, filename string) ([]models.RawElement, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.elements[filename], nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 0.5, 0.25}, nil
}

// fakeStore records every write the pipeline makes.
type fakeStore struct {
	mu       sync.Mutex
	statuses map[int64][]models.DocumentStatus
	pages    map[int64]int
	chunks   map[int64][]models.Chunk

	updateErr error
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statuses: make(map[int64][]models.DocumentStatus),
		pages:    make(map[int64]int),
		chunks:   make(map[int64][]models.Chunk),
	}
}

func (f *fakeStore) CreateDocument(_ context.Context, doc *models.Document) (int64, error) {
	return doc.ID, nil
}

func (f *fakeStore) UpdateDocument(_ context.Context, documentID int64, update models.DocumentUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if update.Status != nil {
		f.statuses[documentID] = append(f.statuses[documentID], *update.Status)
	}
	if update.PageCount != nil {
		f.pages[documentID] = *update.PageCount
	}
	return nil
}

func (f *fakeStore) DocumentsByChat(context.Context, uuid.UUID) ([]models.Document, error) {
	return nil, nil
}

func (f *fakeStore) InsertChunks(_ context.Context, documentID int64, chunks []models.Chunk) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[documentID] = append(f.chunks[documentID], chunks...)
	return nil
}

func (f *fakeStore) SimilaritySearch(context.Context, []float32, models.SearchScope) ([]models.ScoredChunk, error) {
	return nil, nil
}

func (f *fakeStore) ChunkWindow(context.Context, int64, int, int, int) ([]models.Chunk, error) {
	return nil, nil
}

func (f *fakeStore) InsertQuery(context.Context, *models.QueryRecord) error {
	return nil
}

func (f *fakeStore) lastStatus(documentID int64) models.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := f.statuses[documentID]
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1]
}

func testElements() []models.RawElement {
	return []models.RawElement{
		{Type: "Title", Text: "Q3 Report", PageNumber: 1},
		{Type: "NarrativeText", Text: "Revenue increased.", PageNumber: 1},
		{Type: "Table", Text: "Revenue | 100", PageNumber: 2,
			HTML: "<table><tr><td>Revenue</td><td>100</td></tr></table>"},
		{Type: "Text", Text: "Outlook remains stable.", PageNumber: 3},
	}
}

func newTestPipeline(resolver *fakeResolver, oracle *fakeOracle, store *fakeStore) *pipeline.Pipeline {
	return pipeline.New(
		resolver,
		oracle,
		extractor.NewNormalizer(logging.Nop()),
		&fakeEmbedder{},
		store,
		logging.Nop(),
	)
}

func TestPipeline_Process(t *testing.T) {
	doc := models.Document{ID: 1, ChatID: uuid.New(), Name: "report.pdf", FilePath: "pdfs/x/report.pdf"}

	store := newFakeStore()
	p := newTestPipeline(
		&fakeResolver{data: map[string][]byte{doc.FilePath: []byte("%PDF")}},
		&fakeOracle{elements: map[string][]models.RawElement{doc.Name: testElements()}},
		store,
	)

	res, err := p.Process(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 4, res.ChunkCount)
	assert.Equal(t, 3, res.PageCount)

	// processing first, completed last
	require.Len(t, store.statuses[doc.ID], 2)
	assert.Equal(t, models.StatusProcessing, store.statuses[doc.ID][0])
	assert.Equal(t, models.StatusCompleted, store.statuses[doc.ID][1])
	assert.Equal(t, 3, store.pages[doc.ID])

	// chunk_index is contiguous and shared across text and table chunks
	chunks := store.chunks[doc.ID]
	require.Len(t, chunks, 4)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, doc.ID, chunk.DocumentID)
		assert.NotEmpty(t, chunk.Embedding)
	}
	assert.Equal(t, models.ChunkTable, chunks[2].Type)
}

func TestPipeline_ExtractionFailureMarksFailed(t *testing.T) {
	doc := models.Document{ID: 2, Name: "broken.pdf", FilePath: "pdfs/x/broken.pdf"}

	store := newFakeStore()
	p := newTestPipeline(
		&fakeResolver{data: map[string][]byte{doc.FilePath: []byte("garbage")}},
		&fakeOracle{err: errors.New("unparseable document")},
		store,
	)

	_, err := p.Process(context.Background(), doc)
	require.Error(t, err)

	var extErr *models.ExtractionError
	assert.ErrorAs(t, err, &extErr)
	assert.Equal(t, models.StatusFailed, store.lastStatus(doc.ID))
}

func TestPipeline_EmptyExtractionFails(t *testing.T) {
	doc := models.Document{ID: 3, Name: "empty.pdf", FilePath: "pdfs/x/empty.pdf"}

	store := newFakeStore()
	p := newTestPipeline(
		&fakeResolver{data: map[string][]byte{doc.FilePath: []byte("%PDF")}},
		&fakeOracle{elements: map[string][]models.RawElement{}},
		store,
	)

	_, err := p.Process(context.Background(), doc)

	var extErr *models.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, models.StatusFailed, store.lastStatus(doc.ID))
}

func TestPipeline_InsertFailureMarksFailed(t *testing.T) {
	doc := models.Document{ID: 4, Name: "report.pdf", FilePath: "pdfs/x/report.pdf"}

	store := newFakeStore()
	store.insertErr = &models.StorageError{Op: "insert chunks", Cause: errors.New("connection reset")}
	p := newTestPipeline(
		&fakeResolver{data: map[string][]byte{doc.FilePath: []byte("%PDF")}},
		&fakeOracle{elements: map[string][]models.RawElement{doc.Name: testElements()}},
		store,
	)

	_, err := p.Process(context.Background(), doc)
	require.Error(t, err)

	var storeErr *models.StorageError
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, models.StatusFailed, store.lastStatus(doc.ID))
}
