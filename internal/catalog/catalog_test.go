package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GeminiChat/internal/backend"
)

type fakeLister struct {
	models []backend.Model
	err    error
	calls  int
}

func (f *fakeLister) ListModels(ctx context.Context) ([]backend.Model, error) {
	f.calls++
	return f.models, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func model(name string, methods ...string) backend.Model {
	return backend.Model{Name: name, SupportedGenerationMethods: methods}
}

func TestModelsFiltersAndKeepsOrder(t *testing.T) {
	lister := &fakeLister{models: []backend.Model{
		model("models/gemini-ultra", "generateContent"),
		model("models/embedding-001", "embedContent"),
		model("models/aqa", "generateAnswer"),
		model("models/gemini-pro", "countTokens", "generateContent"),
	}}
	c := New(lister, discard())

	names, err := c.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"models/gemini-ultra", "models/gemini-pro"}, names)
}

func TestModelsQueriedOnce(t *testing.T) {
	lister := &fakeLister{models: []backend.Model{model("models/gemini-pro", "generateContent")}}
	c := New(lister, discard())
	assert.Zero(t, lister.calls, "construction must not query the remote service")

	for i := 0; i < 5; i++ {
		_, err := c.Models(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, lister.calls)
}

func TestModelsEmpty(t *testing.T) {
	lister := &fakeLister{models: []backend.Model{model("models/embedding-001", "embedContent")}}
	c := New(lister, discard())

	_, err := c.Models(context.Background())
	assert.ErrorIs(t, err, ErrNoModels)

	_, err = c.Names(context.Background())
	assert.ErrorIs(t, err, ErrNoModels)
	assert.Equal(t, 1, lister.calls, "no retry after failure")
}

func TestModelsQueryFailure(t *testing.T) {
	boom := errors.New("connection refused")
	c := New(&fakeLister{err: boom}, discard())

	_, err := c.Models(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestLookup(t *testing.T) {
	c := New(&fakeLister{models: []backend.Model{
		{Name: "models/gemini-pro", DisplayName: "Gemini Pro", SupportedGenerationMethods: []string{"generateContent"}},
	}}, discard())

	m, err := c.Lookup(context.Background(), "models/gemini-pro")
	require.NoError(t, err)
	assert.Equal(t, "Gemini Pro", m.DisplayName)
	assert.True(t, c.Contains(context.Background(), "models/gemini-pro"))

	_, err = c.Lookup(context.Background(), "models/nope")
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.False(t, c.Contains(context.Background(), "models/nope"))
}

func TestModelsReturnsCopy(t *testing.T) {
	c := New(&fakeLister{models: []backend.Model{model("models/gemini-pro", "generateContent")}}, discard())

	first, err := c.Models(context.Background())
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := c.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "models/gemini-pro", second[0].Name)
}
