// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/api/apitest"
	"github.com/jeranaias/shraga-tui/internal/credential"
	"github.com/jeranaias/shraga-tui/internal/model"
)

func newFixture(t *testing.T) (*apitest.Server, *credential.MemoryStore, *Cache) {
	t.Helper()
	srv := apitest.New(t)
	store := credential.NewMemoryStore(time.Hour)
	cache := NewCache(api.NewClient(srv.URL, store), store, nil)
	return srv, store, cache
}

func TestCache_NoCredentialMakesNoRequest(t *testing.T) {
	srv, _, cache := newFixture(t)

	_, err := cache.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = cache.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, cache.Remove(context.Background(), "x"), ErrUnauthenticated)

	assert.Zero(t, srv.Calls(api.PathHistory))
}

func TestCache_FetchCachesPerCredential(t *testing.T) {
	srv, store, cache := newFixture(t)
	srv.SetHistory(model.SessionRecord{ID: "a", Messages: []model.Message{{Text: "q", Type: model.MsgUser, FlowID: "f"}}})
	require.NoError(t, store.SetCredential("Bearer one"))
	ctx := context.Background()

	sessions, err := cache.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "f", sessions[0].Flow.ID)

	_, err = cache.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Calls(api.PathHistory), "second fetch served from cache")

	_, err = cache.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(api.PathHistory))

	require.NoError(t, store.SetCredential("Bearer two"))
	_, err = cache.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, srv.Calls(api.PathHistory), "new credential is a new cache key")
}

func TestCache_FetchReturnsCopies(t *testing.T) {
	srv, store, cache := newFixture(t)
	srv.SetHistory(model.SessionRecord{ID: "a", Messages: []model.Message{{Text: "q", Type: model.MsgUser}}})
	require.NoError(t, store.SetCredential("Bearer one"))

	first, err := cache.Fetch(context.Background())
	require.NoError(t, err)
	first[0].Messages[0].Text = "mutated"

	second, err := cache.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "q", second[0].Messages[0].Text)
}

func TestCache_SubscribeAndUnsubscribe(t *testing.T) {
	srv, store, cache := newFixture(t)
	srv.SetHistory(model.SessionRecord{ID: "a"})
	require.NoError(t, store.SetCredential("Bearer one"))

	var got [][]model.Session
	unsubscribe := cache.Subscribe(func(s []model.Session) { got = append(got, s) })

	_, err := cache.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0][0].ID)

	unsubscribe()
	_, err = cache.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCache_RemoveDeletesAndRefreshes(t *testing.T) {
	srv, store, cache := newFixture(t)
	srv.SetHistory(model.SessionRecord{ID: "a"}, model.SessionRecord{ID: "b"})
	require.NoError(t, store.SetCredential("Bearer one"))

	require.NoError(t, cache.Remove(context.Background(), "a"))
	assert.Equal(t, []string{"a"}, srv.Deleted())

	data, loaded := cache.Data()
	assert.True(t, loaded)
	require.Len(t, data, 1)
	assert.Equal(t, "b", data[0].ID)
}

func TestCache_ErrorKeepsPreviousListing(t *testing.T) {
	srv, store, cache := newFixture(t)
	srv.SetHistory(model.SessionRecord{ID: "a"})
	require.NoError(t, store.SetCredential("Bearer one"))

	_, err := cache.Fetch(context.Background())
	require.NoError(t, err)

	srv.Fail(api.PathHistory, http.StatusInternalServerError, `{"detail":"db down"}`)
	_, err = cache.Refresh(context.Background())
	require.Error(t, err)
	assert.Error(t, cache.Err())

	data, loaded := cache.Data()
	assert.True(t, loaded)
	assert.Len(t, data, 1)
}

// blockingBackend holds every ListHistory call until release is closed.
type blockingBackend struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *blockingBackend) ListHistory(ctx context.Context) ([]model.SessionRecord, error) {
	b.calls.Add(1)
	<-b.release
	return []model.SessionRecord{{ID: "a"}}, nil
}

func (b *blockingBackend) DeleteHistory(ctx context.Context, chatID string) error {
	return errors.New("not supported")
}

func TestCache_ConcurrentFetchesCoalesce(t *testing.T) {
	backend := &blockingBackend{release: make(chan struct{})}
	cache := NewCache(backend, credential.Static("Bearer x"), nil)

	var notified atomic.Int32
	cache.Subscribe(func([]model.Session) { notified.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sessions, err := cache.Fetch(context.Background())
			assert.NoError(t, err)
			assert.Len(t, sessions, 1)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	assert.Equal(t, int32(1), backend.calls.Load())
	assert.Equal(t, int32(1), notified.Load())
}
