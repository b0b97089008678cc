package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/finlens/finlens/internal/models"
	"github.com/finlens/finlens/pkg/logging"
)

// OrchestratorConfig tunes batch processing.
type OrchestratorConfig struct {
	// MaxConcurrent caps how many documents are processed at once.
	MaxConcurrent int

	// OnProgress, when set, is called once per finished document, from the
	// goroutine that processed it.
	OnProgress func(models.BatchResult)
}

// Orchestrator runs document pipelines for a batch with bounded concurrency.
// Each document's failure is converted into a per-document result; one
// corrupt PDF never blocks or fails its siblings.
type Orchestrator struct {
	pipeline   *Pipeline
	permits    int64
	onProgress func(models.BatchResult)
	log        *logging.Logger
}

func NewOrchestrator(p *Pipeline, config OrchestratorConfig, log *logging.Logger) *Orchestrator {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 3
	}
	return &Orchestrator{
		pipeline:   p,
		permits:    int64(config.MaxConcurrent),
		onProgress: config.OnProgress,
		log:        log,
	}
}

// Run processes the documents of one session and returns one result per
// input document, in input order. It never returns an error itself.
func (o *Orchestrator) Run(ctx context.Context, docs []models.Document) []models.BatchResult {
	sem := semaphore.NewWeighted(o.permits)
	results := make([]models.BatchResult, len(docs))

	var wg sync.WaitGroup
	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc models.Document) {
			defer wg.Done()

			result := models.BatchResult{DocumentID: doc.ID, Name: doc.Name}
			if err := sem.Acquire(ctx, 1); err != nil {
				result.Err = err
				results[i] = result
				return
			}

			res, err := o.pipeline.Process(ctx, doc)
			sem.Release(1)

			result.ChunkCount = res.ChunkCount
			result.PageCount = res.PageCount
			result.Err = err
			results[i] = result

			if o.onProgress != nil {
				o.onProgress(result)
			}
		}(i, doc)
	}
	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			o.log.Warn("document failed in batch", "document_id", r.DocumentID, "file", r.Name, "error", r.Err)
		}
	}

	return results
}
