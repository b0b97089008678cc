package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/finlens/finlens/internal/models"
	"github.com/finlens/finlens/internal/types"
)

// GatewayConfig configures the embedding gateway.
type GatewayConfig struct {
	// VectorDim is the corpus-wide embedding dimension. Every vector the
	// oracle returns must have exactly this length.
	VectorDim int

	// Rate caps embedding calls per second. Zero means unlimited.
	Rate float64
}

// Gateway wraps an embedding oracle with dimension validation and optional
// rate limiting. It performs no retries; retry policy belongs to callers.
type Gateway struct {
	client  types.EmbeddingClient
	dim     int
	limiter *rate.Limiter
}

func NewGateway(client types.EmbeddingClient, config GatewayConfig) (*Gateway, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding client is required")
	}
	if config.VectorDim < 1 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", config.VectorDim)
	}

	g := &Gateway{
		client: client,
		dim:    config.VectorDim,
	}
	if config.Rate > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}
	return g, nil
}

// Dim reports the fixed embedding dimension for this deployment.
func (g *Gateway) Dim() int { return g.dim }

// Embed converts text to a vector, failing with an EmbeddingError when the
// oracle returns a malformed or wrong-dimension result.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, &models.EmbeddingError{Reason: "rate limiter wait interrupted", Cause: err}
		}
	}

	vec, err := g.client.Embed(ctx, text)
	if err != nil {
		return nil, &models.EmbeddingError{Reason: "oracle call failed", Cause: err}
	}
	if len(vec) == 0 {
		return nil, &models.EmbeddingError{Reason: "oracle returned no embedding data"}
	}
	if len(vec) != g.dim {
		return nil, &models.EmbeddingError{
			Reason: fmt.Sprintf("dimension mismatch: got %d, want %d", len(vec), g.dim),
		}
	}

	return vec, nil
}
