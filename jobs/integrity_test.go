package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/amanat-app/ledger/internal/customers"
	"github.com/amanat-app/ledger/internal/ledger"
	"github.com/amanat-app/ledger/internal/reports"
)

type memoryIntegrityStore struct {
	entries map[int64][]ledger.Entry
}

func (s *memoryIntegrityStore) CustomerIDsWithEntries(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memoryIntegrityStore) ListForCustomer(ctx context.Context, customerID int64) ([]ledger.Entry, error) {
	return s.entries[customerID], nil
}

type recordingRepairer struct {
	repaired []int64
}

func (r *recordingRepairer) RecalculateCustomer(ctx context.Context, customerID int64) error {
	r.repaired = append(r.repaired, customerID)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIntegrityScanRepairsBrokenLedger(t *testing.T) {
	ctx := context.Background()
	store := &memoryIntegrityStore{entries: map[int64][]ledger.Entry{
		1: {
			{ID: 1, CustomerID: 1, AmountDue: 100, RemainingAmount: 100},
			{ID: 2, CustomerID: 1, AmountPaid: 40, RemainingAmount: 60},
		},
		2: {
			{ID: 3, CustomerID: 2, AmountDue: 50, RemainingAmount: 50},
			{ID: 4, CustomerID: 2, AmountDue: 25, RemainingAmount: 999},
		},
	}}
	repairer := &recordingRepairer{}
	job := NewIntegrityScanJob(store, repairer, discardLogger())

	require.NoError(t, job.Handle(ctx, NewIntegrityScanTask()))
	require.Equal(t, []int64{2}, repairer.repaired)
}

func TestIntegrityScanCleanLedgerLeavesEverythingAlone(t *testing.T) {
	ctx := context.Background()
	store := &memoryIntegrityStore{entries: map[int64][]ledger.Entry{
		1: {
			{ID: 1, CustomerID: 1, AmountDue: 100, CommissionAmount: 10, RemainingAmount: 110},
			{ID: 2, CustomerID: 1, AmountPaid: 120, RemainingAmount: -10},
		},
	}}
	repairer := &recordingRepairer{}
	job := NewIntegrityScanJob(store, repairer, discardLogger())

	require.NoError(t, job.Handle(ctx, NewIntegrityScanTask()))
	require.Empty(t, repairer.repaired)
}

func TestLedgerChangedJobDropsCaches(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	balances := customers.NewBalanceCache(client, time.Minute)
	reportsCache := reports.NewCache(client, time.Minute)
	require.NoError(t, balances.Set(ctx, 7, 350))

	job := NewLedgerChangedJob(balances, reportsCache, discardLogger())
	task, err := NewLedgerChangedTask(ledger.ChangedEvent{
		EventID:    "evt-1",
		CustomerID: 7,
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)

	require.NoError(t, job.Handle(ctx, task))
	_, ok := balances.Get(ctx, 7)
	require.False(t, ok)
}
