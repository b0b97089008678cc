package models

import "fmt"

// ExtractionError means the extraction oracle returned nothing usable for a
// document. Fatal to that document.
type ExtractionError struct {
	Filename string
	Cause    error
}

func (e *ExtractionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("extraction failed for %s", e.Filename)
	}
	return fmt.Sprintf("extraction failed for %s: %v", e.Filename, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// EmbeddingError means the embedding oracle returned a missing or wrong-shape
// vector. Fatal to the current chunk or query.
type EmbeddingError struct {
	Reason string
	Cause  error
}

func (e *EmbeddingError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("embedding failed: %s", e.Reason)
	}
	return fmt.Sprintf("embedding failed: %s: %v", e.Reason, e.Cause)
}

func (e *EmbeddingError) Unwrap() error { return e.Cause }

// StorageError wraps a failed store read or write. Writes are never rolled
// back mid-batch.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// GenerationError means the generation oracle call failed. Fatal to the query.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }
