package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Model is a loaded speech-to-text model. Implementations must be safe for
// concurrent use; the pipeline adds no locking around Transcribe.
type Model interface {
	// Transcribe runs inference on a normalized WAV file. An empty language
	// lets the engine detect the language.
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

type Loader func(ctx context.Context) (Model, error)

type ModelState int

const (
	ModelUninitialized ModelState = iota
	ModelLoading
	ModelReady
	ModelFailed
)

func (s ModelState) String() string {
	switch s {
	case ModelUninitialized:
		return "uninitialized"
	case ModelLoading:
		return "loading"
	case ModelReady:
		return "ready"
	case ModelFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ModelStates lists every state in lifecycle order.
func ModelStates() []ModelState {
	return []ModelState{ModelUninitialized, ModelLoading, ModelReady, ModelFailed}
}

// ModelCache loads the model on first use and hands the same instance to every
// later caller. A failed load is kept: later calls get the same error and the
// loader is not run again.
type ModelCache struct {
	load   Loader
	logger *zap.Logger

	once  sync.Once
	mu    sync.RWMutex
	state ModelState
	model Model
	err   error
}

func NewModelCache(load Loader, logger *zap.Logger) *ModelCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelCache{load: load, logger: logger}
}

// Get returns the shared model, loading it if this is the first call.
// Concurrent first calls block until the single load finishes. The load is
// detached from ctx cancellation so one abandoned request cannot poison the
// cache for the rest of the process.
func (c *ModelCache) Get(ctx context.Context) (Model, error) {
	c.once.Do(func() {
		c.setState(ModelLoading)
		c.logger.Info("loading inference model")

		model, err := c.runLoader(context.WithoutCancel(ctx))

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.state, c.err = ModelFailed, err
			c.logger.Error("inference model failed to load", zap.Error(err))
			return
		}
		c.state, c.model = ModelReady, model
		c.logger.Info("inference model ready")
	})

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model, c.err
}

func (c *ModelCache) State() ModelState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// runLoader turns a loader panic into an error so the cache still settles in
// ModelFailed.
func (c *ModelCache) runLoader(ctx context.Context) (model Model, err error) {
	if c.load == nil {
		return nil, errNoLoader
	}
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, fmt.Errorf("model loader panicked: %v", r)
		}
	}()
	model, err = c.load(ctx)
	if err == nil && model == nil {
		err = errNilModel
	}
	return model, err
}

func (c *ModelCache) setState(state ModelState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}
