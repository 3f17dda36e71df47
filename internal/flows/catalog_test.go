// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package flows

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/api/apitest"
	"github.com/jeranaias/shraga-tui/internal/model"
)

func TestCatalog_FetchLookupRefresh(t *testing.T) {
	srv := apitest.New(t)
	srv.SetFlows(
		model.Flow{ID: "search", Description: "Search docs", Preferences: map[string]model.PreferenceSpec{
			"history_window": {Default: float64(2), Type: model.PrefTypeInteger, Metadata: true},
		}},
		model.Flow{ID: "summarize"},
	)
	catalog := NewCatalog(api.NewClient(srv.URL, nil), nil)
	ctx := context.Background()

	_, ok := catalog.Lookup("search")
	assert.False(t, ok, "nothing before the first fetch")

	list, err := catalog.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.True(t, catalog.Loaded())

	flow, ok := catalog.Lookup("search")
	require.True(t, ok)
	assert.Equal(t, float64(2), model.ResolvePreferences(flow.Preferences)["history_window"])

	_, err = catalog.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Calls(api.PathFlows))

	srv.SetFlows(model.Flow{ID: "only"})
	_, err = catalog.Refresh(ctx)
	require.NoError(t, err)
	_, ok = catalog.Lookup("search")
	assert.False(t, ok, "refresh replaces the catalog wholesale")
}

func TestCatalog_FailedFetchKeepsPrevious(t *testing.T) {
	srv := apitest.New(t)
	srv.SetFlows(model.Flow{ID: "search"})
	catalog := NewCatalog(api.NewClient(srv.URL, nil), nil)

	_, err := catalog.Fetch(context.Background())
	require.NoError(t, err)

	srv.Fail(api.PathFlows, http.StatusServiceUnavailable, `{"detail":"down"}`)
	_, err = catalog.Refresh(context.Background())
	assert.Error(t, err)

	_, ok := catalog.Lookup("search")
	assert.True(t, ok)
}

func TestCatalog_Configs(t *testing.T) {
	srv := apitest.New(t)
	srv.SetConfigs(model.UIConfig{DefaultFlow: model.FlowList{"a", "b"}})
	catalog := NewCatalog(api.NewClient(srv.URL, nil), nil)

	cfg, err := catalog.Configs(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.MultipleDefaultFlows())

	_, err = catalog.Configs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Calls(api.PathUIConfigs))
}
