package service

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrNoModel is returned when a handle has not been given a model yet
var ErrNoModel = errors.New("no model loaded")

// ModelHandle shares one Model between query surfaces and swaps in a newly
// loaded model without blocking readers.
type ModelHandle struct {
	current atomic.Pointer[Model]
	store   *ModelStore
	name    string
	logger  *zap.Logger
}

// NewModelHandle creates a handle serving model. store may be nil, in
// which case Reload fails.
func NewModelHandle(model *Model, store *ModelStore, name string, logger *zap.Logger) *ModelHandle {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ModelHandle{
		store:  store,
		name:   name,
		logger: logger,
	}
	if model != nil {
		h.current.Store(model)
	}
	return h
}

// Model returns the current model
func (h *ModelHandle) Model() (*Model, error) {
	model := h.current.Load()
	if model == nil {
		return nil, ErrNoModel
	}
	return model, nil
}

// Name returns the store name the handle reloads from
func (h *ModelHandle) Name() string {
	return h.name
}

// Set replaces the current model
func (h *ModelHandle) Set(model *Model) {
	h.current.Store(model)
}

// Reload loads the named model from the store and makes it current. The
// previous model stays in place if loading fails.
func (h *ModelHandle) Reload() (*Model, error) {
	if h.store == nil {
		return nil, fmt.Errorf("failed to reload model %s: no model store", h.name)
	}
	model, err := h.store.Load(h.name)
	if err != nil {
		h.logger.Error("Failed to reload model", zap.String("name", h.name), zap.Error(err))
		return nil, err
	}
	h.current.Store(model)
	h.logger.Info("Reloaded model", zap.String("name", h.name))
	return model, nil
}
