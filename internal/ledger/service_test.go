package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memoryLedgerRepo implements RepositoryPort and TxRepository in memory.
// WithTx snapshots the entries before the callback and restores them on
// error, mirroring transactional rollback, and UpdateRemaining can be told
// to fail after a number of writes to simulate a mid-cascade fault.
type memoryLedgerRepo struct {
	customers map[int64]bool
	entries   map[int64]*Entry
	nextID    int64

	remainingWrites int
	failAfterWrite  int // fail once this many remaining-writes happened; <0 disables

	onLock func() // runs once when the customer lock is granted
}

func newMemoryLedgerRepo(customerIDs ...int64) *memoryLedgerRepo {
	repo := &memoryLedgerRepo{
		customers:      make(map[int64]bool),
		entries:        make(map[int64]*Entry),
		failAfterWrite: -1,
	}
	for _, id := range customerIDs {
		repo.customers[id] = true
	}
	return repo
}

func (r *memoryLedgerRepo) seed(entries ...Entry) {
	for _, entry := range entries {
		e := entry
		r.entries[e.ID] = &e
		if e.ID > r.nextID {
			r.nextID = e.ID
		}
	}
}

func (r *memoryLedgerRepo) snapshot() map[int64]*Entry {
	copied := make(map[int64]*Entry, len(r.entries))
	for id, entry := range r.entries {
		e := *entry
		copied[id] = &e
	}
	return copied
}

func (r *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	before := r.snapshot()
	nextBefore := r.nextID
	if err := fn(ctx, r); err != nil {
		r.entries = before
		r.nextID = nextBefore
		return err
	}
	return nil
}

func (r *memoryLedgerRepo) LockCustomer(ctx context.Context, customerID int64) error {
	if !r.customers[customerID] {
		return ErrCustomerNotFound
	}
	if r.onLock != nil {
		hook := r.onLock
		r.onLock = nil
		hook()
	}
	return nil
}

func (r *memoryLedgerRepo) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	e := *entry
	return &e, nil
}

func (r *memoryLedgerRepo) LatestEntry(ctx context.Context, customerID int64) (*Entry, error) {
	return r.latestBelow(customerID, int64(1)<<62), nil
}

func (r *memoryLedgerRepo) LatestEntryBefore(ctx context.Context, customerID, beforeID int64) (*Entry, error) {
	return r.latestBelow(customerID, beforeID), nil
}

func (r *memoryLedgerRepo) latestBelow(customerID, beforeID int64) *Entry {
	var latest *Entry
	for _, entry := range r.entries {
		if entry.CustomerID != customerID || entry.ID >= beforeID {
			continue
		}
		if latest == nil || entry.ID > latest.ID {
			latest = entry
		}
	}
	if latest == nil {
		return nil
	}
	e := *latest
	return &e
}

func (r *memoryLedgerRepo) ListEntriesAfter(ctx context.Context, customerID, afterID int64) ([]Entry, error) {
	var out []Entry
	for _, entry := range r.entries {
		if entry.CustomerID == customerID && entry.ID > afterID {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryLedgerRepo) ListForCustomer(ctx context.Context, customerID int64) ([]Entry, error) {
	return r.ListEntriesAfter(ctx, customerID, 0)
}

func (r *memoryLedgerRepo) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	if !r.customers[entry.CustomerID] {
		return Entry{}, ErrCustomerNotFound
	}
	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	e := entry
	r.entries[entry.ID] = &e
	return entry, nil
}

func (r *memoryLedgerRepo) UpdateEntry(ctx context.Context, entry Entry) error {
	if _, ok := r.entries[entry.ID]; !ok {
		return ErrEntryNotFound
	}
	e := entry
	r.entries[entry.ID] = &e
	return nil
}

func (r *memoryLedgerRepo) UpdateRemaining(ctx context.Context, entryID, remaining int64) error {
	if r.failAfterWrite >= 0 && r.remainingWrites >= r.failAfterWrite {
		return errors.New("storage gone away")
	}
	entry, ok := r.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	entry.RemainingAmount = remaining
	r.remainingWrites++
	return nil
}

func (r *memoryLedgerRepo) DeleteEntry(ctx context.Context, id int64) error {
	if _, ok := r.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(r.entries, id)
	return nil
}

type recordingNotifier struct {
	events []ChangedEvent
	err    error
}

func (n *recordingNotifier) LedgerChanged(ctx context.Context, event ChangedEvent) error {
	n.events = append(n.events, event)
	return n.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo *memoryLedgerRepo, notifier Notifier) *Service {
	return NewService(repo, notifier, testLogger())
}

func remaining(t *testing.T, repo *memoryLedgerRepo, id int64) int64 {
	t.Helper()
	entry, ok := repo.entries[id]
	require.True(t, ok, "entry %d missing", id)
	return entry.RemainingAmount
}

func TestCreateEntryComputesRunningBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	charge, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 100})
	require.NoError(t, err)
	require.Equal(t, int64(100), charge.RemainingAmount)

	payment, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountPaid: 30})
	require.NoError(t, err)
	require.Equal(t, int64(70), payment.RemainingAmount)
}

func TestCreateEntryCommissionOnly(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	entry, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, CommissionAmount: 15})
	require.NoError(t, err)
	require.Equal(t, int64(15), entry.RemainingAmount)
}

func TestCreateEntryCommissionAddsAlongsideDue(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	entry, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 100, CommissionAmount: 15})
	require.NoError(t, err)
	require.Equal(t, int64(115), entry.RemainingAmount)
}

func TestCreateEntryOverpaymentGoesNegative(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	entry, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountPaid: 50})
	require.NoError(t, err)
	require.Equal(t, int64(-50), entry.RemainingAmount)
}

func TestCreateEntryValidation(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	_, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: -5})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateEntry(ctx, CreateEntryInput{
		CustomerID: 7,
		AmountDue:  10,
		DueDate:    time.Now().Add(48 * time.Hour),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateEntryUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	_, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 99, AmountDue: 10})
	require.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestUpdateEntryCascades(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	a, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 100})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountPaid: 40})
	require.NoError(t, err)

	due := int64(150)
	updated, err := svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: a.ID, AmountDue: &due})
	require.NoError(t, err)
	require.Equal(t, int64(150), updated.RemainingAmount)
	require.Equal(t, int64(110), remaining(t, repo, a.ID+1))
}

func TestUpdateEntryCommissionPolicy(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	entry, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 100, CommissionAmount: 10})
	require.NoError(t, err)
	require.Equal(t, int64(110), entry.RemainingAmount)

	// Omitted commission is reused.
	due := int64(200)
	updated, err := svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: entry.ID, AmountDue: &due})
	require.NoError(t, err)
	require.Equal(t, int64(10), updated.CommissionAmount)
	require.Equal(t, int64(210), updated.RemainingAmount)

	// Provided commission replaces the stored value.
	commission := int64(0)
	updated, err = svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: entry.ID, CommissionAmount: &commission})
	require.NoError(t, err)
	require.Equal(t, int64(0), updated.CommissionAmount)
	require.Equal(t, int64(200), updated.RemainingAmount)
}

func TestUpdateEntryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	due := int64(10)
	_, err := svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: 42, AmountDue: &due})
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestDeleteEntryCascades(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	a, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 100})
	require.NoError(t, err)
	b, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountPaid: 40})
	require.NoError(t, err)
	c, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 10})
	require.NoError(t, err)
	require.Equal(t, int64(70), c.RemainingAmount)

	require.NoError(t, svc.DeleteEntry(ctx, b.ID))
	require.Equal(t, int64(100), remaining(t, repo, a.ID))
	require.Equal(t, int64(110), remaining(t, repo, c.ID))
	_, ok := repo.entries[b.ID]
	require.False(t, ok)
}

func TestDeleteFirstEntryRebasesFromZero(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	a, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 100})
	require.NoError(t, err)
	b, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountPaid: 40})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEntry(ctx, a.ID))
	require.Equal(t, int64(-40), remaining(t, repo, b.ID))
}

func TestRecalculateCustomerIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	_, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 100})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountPaid: 30})
	require.NoError(t, err)

	require.NoError(t, svc.RecalculateCustomer(ctx, 7))
	require.Equal(t, 0, repo.remainingWrites, "consistent ledger must not be rewritten")

	require.NoError(t, svc.RecalculateCustomer(ctx, 7))
	require.Equal(t, 0, repo.remainingWrites)
}

func TestMidCascadeFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	a, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 100})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountPaid: 40})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 10})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountPaid: 5})
	require.NoError(t, err)

	before := repo.snapshot()
	repo.failAfterWrite = 1 // second cascade write fails

	due := int64(500)
	_, err = svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: a.ID, AmountDue: &due})
	require.Error(t, err)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)

	for id, want := range before {
		require.Equal(t, want.RemainingAmount, remaining(t, repo, id), "entry %d changed despite rollback", id)
		require.Equal(t, want.AmountDue, repo.entries[id].AmountDue)
	}
}

func TestMutationsEmitChangedEvents(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	a, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 100})
	require.NoError(t, err)
	require.Len(t, notifier.events, 1)
	require.Equal(t, int64(7), notifier.events[0].CustomerID)
	require.NotNil(t, notifier.events[0].AnchorEntryID)
	require.Equal(t, a.ID, *notifier.events[0].AnchorEntryID)
	require.NotEmpty(t, notifier.events[0].EventID)

	require.NoError(t, svc.DeleteEntry(ctx, a.ID))
	require.Len(t, notifier.events, 2)
	require.Nil(t, notifier.events[1].AnchorEntryID, "no predecessor means nil anchor")
}

func TestNotifierFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	notifier := &recordingNotifier{err: errors.New("queue unavailable")}
	svc := newTestService(repo, notifier)

	_, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 100})
	require.NoError(t, err)
	require.Len(t, notifier.events, 1)
}

func TestLedgerInvariantAfterMixedMutations(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	a, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 200})
	require.NoError(t, err)
	b, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountPaid: 80})
	require.NoError(t, err)
	_, err = svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 30, CommissionAmount: 5})
	require.NoError(t, err)

	paid := int64(100)
	_, err = svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: b.ID, AmountPaid: &paid})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteEntry(ctx, a.ID))

	entries, err := svc.ListEntries(ctx, 7)
	require.NoError(t, err)
	var base int64
	for _, entry := range entries {
		require.Equal(t, entry.balanceAfter(base), entry.RemainingAmount, "entry %d breaks the recurrence", entry.ID)
		base = entry.RemainingAmount
	}
}

func TestCreateEntryChainsFromWritesCommittedWhileWaitingForLock(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	svc := newTestService(repo, nil)

	// Another writer finished its entry while this create waited on the
	// customer lock. The anchor lookup runs after the lock is granted and
	// must see that entry, not a pre-lock snapshot.
	repo.onLock = func() {
		repo.seed(Entry{ID: 5, CustomerID: 7, AmountDue: 70, RemainingAmount: 70, DueDate: day(0)})
	}

	created, err := svc.CreateEntry(ctx, CreateEntryInput{CustomerID: 7, AmountDue: 30})
	require.NoError(t, err)
	require.Equal(t, int64(100), created.RemainingAmount)
}

func TestUpdateEntryRereadsEntryAfterLock(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryLedgerRepo(7)
	repo.seed(
		Entry{ID: 1, CustomerID: 7, AmountDue: 100, RemainingAmount: 100, DueDate: day(0)},
		Entry{ID: 2, CustomerID: 7, AmountPaid: 50, RemainingAmount: 50, DueDate: day(1)},
	)
	svc := newTestService(repo, nil)

	// A concurrent update of the same entry committed while this one
	// waited on the lock. Fields not provided here must come from that
	// committed state, not from the pre-lock read.
	repo.onLock = func() {
		repo.entries[1].AmountDue = 200
		repo.entries[1].RemainingAmount = 200
		repo.entries[2].RemainingAmount = 150
	}

	notes := "checked"
	updated, err := svc.UpdateEntry(ctx, UpdateEntryInput{EntryID: 1, Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, int64(200), updated.AmountDue)
	require.Equal(t, int64(200), updated.RemainingAmount)
	require.Equal(t, int64(150), remaining(t, repo, 2))
}
