// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package flows

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/shraga-tui/internal/logging"
	"github.com/jeranaias/shraga-tui/internal/model"
)

// Backend is the subset of the API client the catalog uses.
type Backend interface {
	ListFlows(ctx context.Context) ([]model.Flow, error)
	UIConfig(ctx context.Context) (*model.UIConfig, error)
}

const (
	flowsKey   = "flows"
	configsKey = "configs"
)

// Catalog caches flows and the UI configuration.
type Catalog struct {
	backend Backend
	logger  *slog.Logger
	group   singleflight.Group

	mu      sync.RWMutex
	flows   []model.Flow
	byID    map[string]model.Flow
	loaded  bool
	configs *model.UIConfig
}

// NewCatalog creates an empty catalog.
func NewCatalog(backend Backend, logger *slog.Logger) *Catalog {
	return &Catalog{
		backend: backend,
		logger:  logging.OrDefault(logger),
	}
}

// Fetch returns the catalog, loading it on first use.
func (c *Catalog) Fetch(ctx context.Context) ([]model.Flow, error) {
	c.mu.RLock()
	if c.loaded {
		out := append([]model.Flow(nil), c.flows...)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()
	return c.Refresh(ctx)
}

// Refresh replaces the catalog with a fresh listing.
func (c *Catalog) Refresh(ctx context.Context) ([]model.Flow, error) {
	v, err, _ := c.group.Do(flowsKey, func() (any, error) {
		list, err := c.backend.ListFlows(ctx)
		if err != nil {
			c.logger.Warn("flow catalog fetch failed", "error", err)
			return nil, err
		}

		byID := make(map[string]model.Flow, len(list))
		for _, f := range list {
			byID[f.ID] = f
		}

		c.mu.Lock()
		c.flows = list
		c.byID = byID
		c.loaded = true
		c.mu.Unlock()

		c.logger.Debug("flow catalog loaded", "flows", len(list))
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]model.Flow(nil), v.([]model.Flow)...), nil
}

// Lookup finds a flow by id in the loaded catalog.
func (c *Catalog) Lookup(id string) (model.Flow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.byID[id]
	return f, ok
}

// Loaded reports whether the catalog has been fetched.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Configs returns the UI configuration, loading it on first use.
func (c *Catalog) Configs(ctx context.Context) (*model.UIConfig, error) {
	c.mu.RLock()
	if c.configs != nil {
		cfg := *c.configs
		c.mu.RUnlock()
		return &cfg, nil
	}
	c.mu.RUnlock()
	return c.RefreshConfigs(ctx)
}

// RefreshConfigs reloads the UI configuration.
func (c *Catalog) RefreshConfigs(ctx context.Context) (*model.UIConfig, error) {
	v, err, _ := c.group.Do(configsKey, func() (any, error) {
		cfg, err := c.backend.UIConfig(ctx)
		if err != nil {
			c.logger.Warn("ui config fetch failed", "error", err)
			return nil, err
		}
		c.mu.Lock()
		c.configs = cfg
		c.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	cfg := *v.(*model.UIConfig)
	return &cfg, nil
}
