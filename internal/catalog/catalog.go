// Package catalog lists the remote models usable for chat.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"GeminiChat/internal/backend"
	"GeminiChat/internal/cache"
)

var (
	// ErrNoModels means the account has no model supporting generateContent.
	ErrNoModels = errors.New("no model available for generateContent")
	// ErrUnknownModel means a selection is not in the catalog.
	ErrUnknownModel = errors.New("unknown model")
)

// Lister is the remote model listing.
type Lister interface {
	ListModels(ctx context.Context) ([]backend.Model, error)
}

// Catalog is the filtered, memoized model list.
type Catalog struct {
	memo *cache.Memo[[]backend.Model]
}

// New creates a catalog backed by lister. Nothing is fetched until Models
// is first called.
func New(lister Lister, logger *slog.Logger) *Catalog {
	return &Catalog{
		memo: cache.NewMemo(func(ctx context.Context) ([]backend.Model, error) {
			all, err := lister.ListModels(ctx)
			if err != nil {
				return nil, err
			}
			models := Filter(all)
			if len(models) == 0 {
				return nil, fmt.Errorf("%w (%d models listed)", ErrNoModels, len(all))
			}
			logger.Info("loaded model catalog", "listed", len(all), "chat_capable", len(models))
			return models, nil
		}),
	}
}

// Filter keeps the models that support generateContent, preserving order.
func Filter(models []backend.Model) []backend.Model {
	out := make([]backend.Model, 0, len(models))
	for _, m := range models {
		if m.Supports(backend.MethodGenerateContent) {
			out = append(out, m)
		}
	}
	return out
}

// Models returns the chat-capable models in remote order. The first
// result, success or failure, is kept for the life of the process.
func (c *Catalog) Models(ctx context.Context) ([]backend.Model, error) {
	models, err := c.memo.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]backend.Model, len(models))
	copy(out, models)
	return out, nil
}

// Names returns the model identifiers in catalog order.
func (c *Catalog) Names(ctx context.Context) ([]string, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names, nil
}

// Lookup returns the descriptor for name.
func (c *Catalog) Lookup(ctx context.Context, name string) (backend.Model, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return backend.Model{}, err
	}
	for _, m := range models {
		if m.Name == name {
			return m, nil
		}
	}
	return backend.Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
}

// Contains reports whether name is a chat-capable model.
func (c *Catalog) Contains(ctx context.Context, name string) bool {
	_, err := c.Lookup(ctx, name)
	return err == nil
}
