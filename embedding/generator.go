// Package embedding converts resources into fixed-length vectors for
// semantic search.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kartta-io/kartta/telemetry"
	"github.com/kartta-io/kartta/types"
)

// ModelClient produces one vector per input text.
type ModelClient interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// DimensionError reports a vector that does not match the configured
// dimension.
type DimensionError struct {
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension %d, configured %d", e.Got, e.Want)
}

// ErrBatchDimension means every vector in a batch mismatched the configured
// dimension: the model and the configuration disagree, which no retry fixes.
var ErrBatchDimension = errors.New("embedding model dimension does not match configuration")

// Generator builds embedding inputs and validates model output.
type Generator struct {
	client    ModelClient
	dimension int
	logger    *telemetry.Logger
}

// NewGenerator creates a generator with the configured vector dimension
func NewGenerator(client ModelClient, dimension int) *Generator {
	return &Generator{
		client:    client,
		dimension: dimension,
		logger:    telemetry.NewLogger("embedding"),
	}
}

// Dimension returns the configured vector dimension.
func (g *Generator) Dimension() int { return g.dimension }

// BuildInput renders a resource's descriptive text. The construction is
// pinned for reproducibility: type, display name, external id, then
// "key: value" tag pairs sorted by key, all space-joined. Changing this
// changes search results for every stored resource.
func BuildInput(r types.Resource) string {
	parts := make([]string, 0, 3+len(r.Tags))
	for _, p := range []string{r.Type, r.Name, r.ExternalID} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	keys := make([]string, 0, len(r.Tags))
	for k := range r.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+": "+r.Tags[k])
	}

	return strings.Join(parts, " ")
}

// Embed produces the vector for one resource.
func (g *Generator) Embed(ctx context.Context, r types.Resource) ([]float32, error) {
	vectors, err := g.client.Embed(ctx, []string{BuildInput(r)})
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", r.ExternalID, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed %s: model returned %d vectors for 1 input", r.ExternalID, len(vectors))
	}
	if len(vectors[0]) != g.dimension {
		return nil, &DimensionError{Got: len(vectors[0]), Want: g.dimension}
	}
	return vectors[0], nil
}

// EmbedBatch produces vectors for a batch of resources. The returned slices
// are index-aligned with the input: a resource whose vector failed dimension
// validation gets a nil vector and a non-nil error at its index. The batch
// error is non-nil when the model call itself failed, when it returned the
// wrong vector count, or — wrapped around ErrBatchDimension — when every
// single vector mismatched the configured dimension.
func (g *Generator) EmbedBatch(ctx context.Context, resources []types.Resource) ([][]float32, []error, error) {
	if len(resources) == 0 {
		return nil, nil, nil
	}

	inputs := make([]string, len(resources))
	for i, r := range resources {
		inputs[i] = BuildInput(r)
	}

	vectors, err := g.client.Embed(ctx, inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("embed batch of %d: %w", len(resources), err)
	}
	if len(vectors) != len(resources) {
		return nil, nil, fmt.Errorf("model returned %d vectors for %d inputs", len(vectors), len(resources))
	}

	errs := make([]error, len(resources))
	mismatched := 0
	for i, vector := range vectors {
		if len(vector) != g.dimension {
			errs[i] = &DimensionError{Got: len(vector), Want: g.dimension}
			vectors[i] = nil
			mismatched++
		}
	}

	if mismatched == len(resources) {
		return nil, nil, fmt.Errorf("all %d vectors mismatched: %w", mismatched, ErrBatchDimension)
	}
	if mismatched > 0 {
		g.logger.Warn().
			Int("mismatched", mismatched).
			Int("batch", len(resources)).
			Msg("dropped vectors with wrong dimension")
	}

	return vectors, errs, nil
}
