package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collective/internal/config"
	"collective/internal/gemini"
	"collective/internal/kernel"
	"collective/internal/metrics"
	"collective/internal/store"

	"go.uber.org/zap"
)

// instance bundles a kernel with the store it persists to.
type instance struct {
	kernel *kernel.Kernel
	store  store.BlobStore
}

// openColony builds a kernel from cfg and restores any saved state.
func openColony(ctx context.Context, c *config.Config) (*instance, error) {
	blobs, err := store.Open(c.Storage.Driver, c.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	opts := []kernel.Option{
		kernel.WithStore(blobs),
		kernel.WithRandom(kernel.NewRandom(c.Kernel.Seed)),
		kernel.WithMetrics(metrics.Default()),
	}

	if c.HasLLM() {
		client, err := gemini.New(ctx, gemini.FromConfig(c))
		if err != nil {
			_ = blobs.Close()
			return nil, err
		}
		opts = append(opts,
			kernel.WithLanguageModel(client),
			kernel.WithImageGenerator(client),
			kernel.WithVideoGenerator(client),
		)
	} else {
		logger.Warn("No API key configured; chat, avatars and foresight are disabled")
	}

	k := kernel.New(kernel.FromConfig(c), opts...)
	col := &instance{kernel: k, store: blobs}

	if err := k.Load(ctx); err != nil && !errors.Is(err, kernel.ErrNoSavedState) {
		if !errors.Is(err, kernel.ErrCorruptState) {
			_ = col.close(ctx, false)
			return nil, err
		}
		logger.Warn("Discarded corrupt saved state", zap.Error(err))
	}
	return col, nil
}

// close stops the kernel, optionally saves, waits for background work and
// releases the store.
func (c *instance) close(ctx context.Context, save bool) error {
	c.kernel.Stop()

	var saveErr error
	if save {
		saveErr = c.kernel.Save(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.kernel.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Kernel shutdown timed out", zap.Error(err))
	}
	if err := c.store.Close(); err != nil {
		logger.Warn("Failed to close store", zap.Error(err))
	}
	return saveErr
}
