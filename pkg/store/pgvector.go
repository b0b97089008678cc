package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/finlens/finlens/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	VectorDim  int
}

// VectorStore persists documents, chunks and query records in PostgreSQL with
// pgvector similarity search.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			chat_id UUID NOT NULL,
			name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			page_count INTEGER,
			processing_status TEXT NOT NULL DEFAULT 'processing',
			upload_date TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS chunks (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			chunk_type TEXT NOT NULL,
			text TEXT NOT NULL,
			page_number INTEGER NOT NULL,
			table_payload JSONB,
			embedding vector(%d) NOT NULL,
			UNIQUE (document_id, chunk_index)
		);

		CREATE TABLE IF NOT EXISTS queries (
			id BIGSERIAL PRIMARY KEY,
			chat_id UUID NOT NULL,
			query_text TEXT NOT NULL,
			response_text TEXT NOT NULL,
			source_references JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %v", err)
	}

	createIndex := `
		CREATE INDEX IF NOT EXISTS chunks_embedding_idx
		ON chunks
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

func (vs *VectorStore) CreateDocument(ctx context.Context, doc *models.Document) (int64, error) {
	status := doc.Status
	if status == "" {
		status = models.StatusProcessing
	}

	var id int64
	err := vs.pool.QueryRow(ctx, `
		INSERT INTO documents (chat_id, name, file_path, processing_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		doc.ChatID, doc.Name, doc.FilePath, string(status)).Scan(&id)
	if err != nil {
		return 0, &models.StorageError{Op: "create document", Cause: err}
	}

	doc.ID = id
	doc.Status = status
	return id, nil
}

func (vs *VectorStore) UpdateDocument(ctx context.Context, documentID int64, update models.DocumentUpdate) error {
	var sets []string
	args := []interface{}{documentID}

	if update.Status != nil {
		args = append(args, string(*update.Status))
		sets = append(sets, fmt.Sprintf("processing_status = $%d", len(args)))
	}
	if update.PageCount != nil {
		args = append(args, *update.PageCount)
		sets = append(sets, fmt.Sprintf("page_count = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	stmt := fmt.Sprintf("UPDATE documents SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := vs.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return &models.StorageError{Op: "update document", Cause: err}
	}
	if tag.RowsAffected() == 0 {
		return &models.StorageError{Op: "update document", Cause: fmt.Errorf("document %d not found", documentID)}
	}
	return nil
}

func (vs *VectorStore) DocumentsByChat(ctx context.Context, chatID uuid.UUID) ([]models.Document, error) {
	rows, err := vs.pool.Query(ctx, `
		SELECT id, chat_id, name, file_path, COALESCE(page_count, 0), processing_status, upload_date
		FROM documents
		WHERE chat_id = $1
		ORDER BY upload_date`, chatID)
	if err != nil {
		return nil, &models.StorageError{Op: "list documents", Cause: err}
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var status string
		if err := rows.Scan(&doc.ID, &doc.ChatID, &doc.Name, &doc.FilePath,
			&doc.PageCount, &status, &doc.UploadedAt); err != nil {
			return nil, &models.StorageError{Op: "scan document", Cause: err}
		}
		doc.Status = models.DocumentStatus(status)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "list documents", Cause: err}
	}

	return docs, nil
}

// InsertChunks writes all chunks of one document in a single transaction.
func (vs *VectorStore) InsertChunks(ctx context.Context, documentID int64, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return &models.StorageError{Op: "insert chunks", Cause: err}
	}
	defer tx.Rollback(ctx)

	stmt := `
		INSERT INTO chunks (document_id, chunk_index, chunk_type, text, page_number, table_payload, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, chunk := range chunks {
		payload, err := marshalTablePayload(chunk.Table)
		if err != nil {
			return &models.StorageError{Op: "insert chunks", Cause: err}
		}

		_, err = tx.Exec(ctx, stmt,
			documentID,
			chunk.Index,
			string(chunk.Type),
			chunk.Text,
			chunk.PageNumber,
			payload,
			pgvector.NewVector(chunk.Embedding),
		)
		if err != nil {
			return &models.StorageError{Op: "insert chunks", Cause: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &models.StorageError{Op: "insert chunks", Cause: err}
	}
	return nil
}

// SimilaritySearch returns the chunks most similar to the given embedding
// within scope, ranked by descending similarity. Matches below
// scope.Threshold are excluded by the query itself.
func (vs *VectorStore) SimilaritySearch(ctx context.Context, embedding []float32, scope models.SearchScope) ([]models.ScoredChunk, error) {
	stmt, args := buildSimilarityQuery(pgvector.NewVector(embedding), scope)

	rows, err := vs.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, &models.StorageError{Op: "similarity search", Cause: err}
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		sc, err := scanScoredChunk(rows)
		if err != nil {
			return nil, &models.StorageError{Op: "similarity search", Cause: err}
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "similarity search", Cause: err}
	}

	return results, nil
}

// ChunkWindow returns the chunks of one document whose chunk_index lies
// within radius of center, restricted to one page, in index order.
func (vs *VectorStore) ChunkWindow(ctx context.Context, documentID int64, pageNumber, center, radius int) ([]models.Chunk, error) {
	rows, err := vs.pool.Query(ctx, `
		SELECT document_id, chunk_index, chunk_type, text, page_number, table_payload
		FROM chunks
		WHERE document_id = $1
		  AND page_number = $2
		  AND chunk_index BETWEEN $3 AND $4
		ORDER BY chunk_index`,
		documentID, pageNumber, center-radius, center+radius)
	if err != nil {
		return nil, &models.StorageError{Op: "chunk window", Cause: err}
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var chunkType string
		var payload []byte
		if err := rows.Scan(&chunk.DocumentID, &chunk.Index, &chunkType,
			&chunk.Text, &chunk.PageNumber, &payload); err != nil {
			return nil, &models.StorageError{Op: "chunk window", Cause: err}
		}
		chunk.Type = models.ChunkType(chunkType)
		chunk.Table, err = unmarshalTablePayload(payload)
		if err != nil {
			return nil, &models.StorageError{Op: "chunk window", Cause: err}
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "chunk window", Cause: err}
	}

	return chunks, nil
}

func (vs *VectorStore) InsertQuery(ctx context.Context, rec *models.QueryRecord) error {
	sources := rec.Sources
	if sources == nil {
		sources = []models.SourceReference{}
	}
	refs, err := json.Marshal(sources)
	if err != nil {
		return &models.StorageError{Op: "insert query", Cause: err}
	}

	err = vs.pool.QueryRow(ctx, `
		INSERT INTO queries (chat_id, query_text, response_text, source_references)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		rec.ChatID, rec.QueryText, rec.ResponseText, refs).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return &models.StorageError{Op: "insert query", Cause: err}
	}
	return nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// buildSimilarityQuery assembles the scoped cosine-similarity search. Kept
// separate from execution so the filter logic is testable without a database.
func buildSimilarityQuery(embedding pgvector.Vector, scope models.SearchScope) (string, []interface{}) {
	var sb strings.Builder
	args := []interface{}{embedding, scope.ChatID}

	sb.WriteString(`
		SELECT c.document_id, d.name, c.chunk_index, c.chunk_type, c.text, c.page_number, c.table_payload,
		       1 - (c.embedding <=> $1) AS similarity
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.chat_id = $2`)

	if len(scope.DocumentIDs) > 0 {
		args = append(args, scope.DocumentIDs)
		fmt.Fprintf(&sb, "\n\t\t  AND c.document_id = ANY($%d)", len(args))
	}

	args = append(args, scope.Threshold)
	fmt.Fprintf(&sb, "\n\t\t  AND 1 - (c.embedding <=> $1) >= $%d", len(args))

	sb.WriteString("\n\t\tORDER BY c.embedding <=> $1")

	limit := scope.Limit
	if limit <= 0 {
		limit = 5
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, "\n\t\tLIMIT $%d", len(args))

	return sb.String(), args
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanScoredChunk(row scannable) (models.ScoredChunk, error) {
	var sc models.ScoredChunk
	var chunkType string
	var payload []byte

	err := row.Scan(&sc.DocumentID, &sc.DocumentName, &sc.Index, &chunkType,
		&sc.Text, &sc.PageNumber, &payload, &sc.Similarity)
	if err != nil {
		return sc, err
	}

	sc.Type = models.ChunkType(chunkType)
	sc.Table, err = unmarshalTablePayload(payload)
	return sc, err
}

func marshalTablePayload(payload *models.TablePayload) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal table payload: %w", err)
	}
	return data, nil
}

func unmarshalTablePayload(data []byte) (*models.TablePayload, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var payload models.TablePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal table payload: %w", err)
	}
	return &payload, nil
}
