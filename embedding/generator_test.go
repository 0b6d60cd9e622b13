package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartta-io/kartta/types"
)

type mockModel struct {
	vectors [][]float32
	err     error
	inputs  []string
}

func (m *mockModel) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	m.inputs = inputs
	if m.err != nil {
		return nil, m.err
	}
	return m.vectors, nil
}

func vec(dim int, fill float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestBuildInputConstruction(t *testing.T) {
	r := types.Resource{
		Type:       "compute.instance",
		Name:       "web-1",
		ExternalID: "i-0abc123",
		Tags: map[string]string{
			"Team":        "platform",
			"Environment": "prod",
		},
	}

	// tags render sorted by key, after type/name/id
	assert.Equal(t,
		"compute.instance web-1 i-0abc123 Environment: prod Team: platform",
		BuildInput(r))
}

func TestBuildInputSkipsEmptyName(t *testing.T) {
	r := types.Resource{Type: "objectstore.bucket", ExternalID: "artifacts"}
	assert.Equal(t, "objectstore.bucket artifacts", BuildInput(r))
}

func TestBuildInputDeterministic(t *testing.T) {
	r := types.Resource{
		Type:       "database.instance",
		Name:       "orders-db",
		ExternalID: "orders-db",
		Tags:       map[string]string{"b": "2", "a": "1", "c": "3"},
	}
	first := BuildInput(r)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, BuildInput(r))
	}
}

func TestEmbedValidatesDimension(t *testing.T) {
	g := NewGenerator(&mockModel{vectors: [][]float32{vec(8, 0.5)}}, 8)

	v, err := g.Embed(context.Background(), types.Resource{ExternalID: "i-1"})
	require.NoError(t, err)
	assert.Len(t, v, 8)

	g = NewGenerator(&mockModel{vectors: [][]float32{vec(4, 0.5)}}, 8)
	_, err = g.Embed(context.Background(), types.Resource{ExternalID: "i-1"})

	var dimErr *DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 4, dimErr.Got)
	assert.Equal(t, 8, dimErr.Want)
}

func TestEmbedBatchAlignsErrors(t *testing.T) {
	model := &mockModel{vectors: [][]float32{vec(8, 1), vec(3, 1), vec(8, 1)}}
	g := NewGenerator(model, 8)

	resources := []types.Resource{
		{ExternalID: "a"}, {ExternalID: "b"}, {ExternalID: "c"},
	}
	vectors, errs, err := g.EmbedBatch(context.Background(), resources)
	require.NoError(t, err)

	assert.NotNil(t, vectors[0])
	assert.Nil(t, vectors[1])
	assert.NotNil(t, vectors[2])

	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
	assert.NoError(t, errs[2])
}

func TestEmbedBatchAllMismatchedIsConfigError(t *testing.T) {
	model := &mockModel{vectors: [][]float32{vec(3, 1), vec(3, 1)}}
	g := NewGenerator(model, 8)

	_, _, err := g.EmbedBatch(context.Background(), []types.Resource{{ExternalID: "a"}, {ExternalID: "b"}})
	assert.True(t, errors.Is(err, ErrBatchDimension))
}

func TestEmbedBatchModelFailure(t *testing.T) {
	g := NewGenerator(&mockModel{err: errors.New("model down")}, 8)

	_, _, err := g.EmbedBatch(context.Background(), []types.Resource{{ExternalID: "a"}})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrBatchDimension))
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	g := NewGenerator(&mockModel{vectors: [][]float32{vec(8, 1)}}, 8)

	_, _, err := g.EmbedBatch(context.Background(), []types.Resource{{ExternalID: "a"}, {ExternalID: "b"}})
	assert.Error(t, err)
}

func TestEmbedBatchEmpty(t *testing.T) {
	g := NewGenerator(&mockModel{}, 8)
	vectors, errs, err := g.EmbedBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Nil(t, errs)
}

func TestHTTPModelClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "all-minilm", req.Model)

		// return vectors out of order to exercise index sorting
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0.2, 0.2}},
				{"index": 0, "embedding": []float32{0.1, 0.1}},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPModelClient(server.URL, "all-minilm", "test-key")
	vectors, err := client.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.1}, vectors[0])
	assert.Equal(t, []float32{0.2, 0.2}, vectors[1])
}

func TestHTTPModelClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPModelClient(server.URL, "all-minilm", "")
	_, err := client.Embed(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
