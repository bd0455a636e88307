package settings_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lapak-id/backend-lapak/internal/pricing"
	"github.com/lapak-id/backend-lapak/internal/settings"
)

type memStore struct {
	snap settings.Snapshot
	gets int
}

func (m *memStore) Get(_ context.Context) (settings.Snapshot, error) {
	m.gets++
	return m.snap, nil
}

func (m *memStore) Update(_ context.Context, snap settings.Snapshot) error {
	m.snap = snap
	return nil
}

func newTestService(t *testing.T) (*settings.Service, *memStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &memStore{snap: settings.Snapshot{
		MOQ:                   pricing.GlobalMOQ{Active: true, MinQty: 3},
		FreeShippingThreshold: decimal.NewFromInt(500),
		FlatShippingFee:       decimal.NewFromInt(25),
	}}
	return &settings.Service{Store: store, Redis: client, TTL: time.Minute}, store
}

func TestSnapshotServedFromCache(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, first.MOQ.MinQty)
	require.Equal(t, 1, store.gets)

	second, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, first.FlatShippingFee.Equal(second.FlatShippingFee))
	require.Equal(t, 1, store.gets, "second read should hit the cache")
}

func TestUpdateInvalidatesCache(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	next := store.snap
	next.MOQ.MinQty = 10
	require.NoError(t, svc.Update(ctx, next))

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, snap.MOQ.MinQty)
	require.Equal(t, 2, store.gets, "update should drop the cached snapshot")
}

func TestShippingRuleFromSnapshot(t *testing.T) {
	snap := settings.Snapshot{
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShippingFee:       decimal.NewFromInt(9),
	}
	rule := snap.ShippingRule()

	require.True(t, rule(decimal.NewFromInt(100)).IsZero())
	require.True(t, rule(decimal.NewFromInt(99)).Equal(decimal.NewFromInt(9)))
}
