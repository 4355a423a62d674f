package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/uidcheckbot/models"
)

type memStore struct {
	recs map[string]models.UIDRecord
	fail bool
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]models.UIDRecord)}
}

func (s *memStore) FindUID(ctx context.Context, uid string) (*models.UIDRecord, error) {
	if s.fail {
		return nil, errors.New("connection refused")
	}
	rec, ok := s.recs[uid]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memStore) UpsertUID(ctx context.Context, rec *models.UIDRecord) error {
	if s.fail {
		return errors.New("connection refused")
	}
	s.recs[rec.UID] = *rec
	return nil
}

func (s *memStore) DeleteUIDs(ctx context.Context, uids []string) (int64, error) {
	if s.fail {
		return 0, errors.New("connection refused")
	}
	var n int64
	for _, uid := range uids {
		if _, ok := s.recs[uid]; ok {
			delete(s.recs, uid)
			n++
		}
	}
	return n, nil
}

type stubOracle struct {
	text string
	err  error
}

func (o *stubOracle) ExtractText(ctx context.Context, image []byte) (string, error) {
	return o.text, o.err
}

func newTestEngine(store Store, oracle TextExtractor, restrict bool) *Engine {
	return NewEngine(store, oracle, Options{MinBalance: 100.0, RestrictMode: restrict})
}

func TestSubmitUIDUnknownGoesPending(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store, &stubOracle{}, true)

	outcome, err := e.SubmitUID(context.Background(), "123456789", 42, "alice")
	require.NoError(t, err)
	assert.Equal(t, SubmittedForApproval, outcome)

	rec := store.recs["123456789"]
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Equal(t, int64(42), rec.ClaimedBy)
	assert.Equal(t, models.AddedByUser, rec.AddedBy)

	_, ok := e.PendingUID(42)
	assert.False(t, ok, "no wallet confirmation should be armed yet")
}

func TestSubmitUIDSameOwnerReclaim(t *testing.T) {
	store := newMemStore()
	store.recs["123456789"] = models.UIDRecord{
		UID: "123456789", ClaimedBy: 42, Status: models.StatusClaimed,
	}
	e := newTestEngine(store, &stubOracle{}, true)

	outcome, err := e.SubmitUID(context.Background(), "123456789", 42, "alice")
	require.NoError(t, err)
	assert.Equal(t, ReadyForWallet, outcome)

	uid, ok := e.PendingUID(42)
	require.True(t, ok)
	assert.Equal(t, "123456789", uid)
}

func TestSubmitUIDReclaimPreservesBalance(t *testing.T) {
	store := newMemStore()
	store.recs["123456789"] = models.UIDRecord{
		UID: "123456789", ClaimedBy: 42, Status: models.StatusFullyVerified,
		WalletBalance: 500, HasBalance: true,
	}
	e := newTestEngine(store, &stubOracle{}, true)

	for i := 0; i < 2; i++ {
		outcome, err := e.SubmitUID(context.Background(), "123456789", 42, "alice")
		require.NoError(t, err)
		assert.Equal(t, ReadyForWallet, outcome)
	}

	rec := store.recs["123456789"]
	assert.Equal(t, models.StatusFullyVerified, rec.Status)
	assert.Equal(t, 500.0, rec.WalletBalance)
}

func TestSubmitUIDSameOwnerStillPending(t *testing.T) {
	store := newMemStore()
	store.recs["123456789"] = models.UIDRecord{
		UID: "123456789", ClaimedBy: 42, Status: models.StatusPending,
	}
	e := newTestEngine(store, &stubOracle{}, true)

	outcome, err := e.SubmitUID(context.Background(), "123456789", 42, "alice")
	require.NoError(t, err)
	assert.Equal(t, StillPending, outcome)

	_, ok := e.PendingUID(42)
	assert.False(t, ok)
}

func TestSubmitUIDClaimedByOther(t *testing.T) {
	store := newMemStore()
	store.recs["123456789"] = models.UIDRecord{
		UID: "123456789", ClaimedBy: 7, Status: models.StatusFullyVerified,
	}
	e := newTestEngine(store, &stubOracle{}, true)

	outcome, err := e.SubmitUID(context.Background(), "123456789", 42, "alice")
	require.NoError(t, err)
	assert.Equal(t, ClaimedByOther, outcome)

	// First claim wins: the record is untouched.
	assert.Equal(t, int64(7), store.recs["123456789"].ClaimedBy)
}

func TestSubmitUIDUnclaimedRecordTakenOver(t *testing.T) {
	store := newMemStore()
	store.recs["123456789"] = models.UIDRecord{
		UID: "123456789", Status: models.StatusUnclaimed, AddedBy: models.AddedByAdmin,
	}
	e := newTestEngine(store, &stubOracle{}, true)

	outcome, err := e.SubmitUID(context.Background(), "123456789", 42, "alice")
	require.NoError(t, err)
	assert.Equal(t, ReadyForWallet, outcome)

	rec := store.recs["123456789"]
	assert.Equal(t, int64(42), rec.ClaimedBy)
	assert.Equal(t, models.StatusClaimed, rec.Status)
}

func TestSubmitUIDRestrictOffOverwritesOwner(t *testing.T) {
	store := newMemStore()
	store.recs["123456789"] = models.UIDRecord{
		UID: "123456789", ClaimedBy: 7, Username: "bob", Status: models.StatusClaimed,
	}
	e := newTestEngine(store, &stubOracle{}, false)

	outcome, err := e.SubmitUID(context.Background(), "123456789", 42, "alice")
	require.NoError(t, err)
	assert.Equal(t, ReadyForWallet, outcome)

	rec := store.recs["123456789"]
	assert.Equal(t, int64(42), rec.ClaimedBy)
	assert.Equal(t, "alice", rec.Username)
}

func TestSetRestrictModeTakesEffect(t *testing.T) {
	store := newMemStore()
	store.recs["123456789"] = models.UIDRecord{
		UID: "123456789", ClaimedBy: 7, Status: models.StatusClaimed,
	}
	e := newTestEngine(store, &stubOracle{}, true)

	outcome, err := e.SubmitUID(context.Background(), "123456789", 42, "alice")
	require.NoError(t, err)
	assert.Equal(t, ClaimedByOther, outcome)

	e.SetRestrictMode(false)

	outcome, err = e.SubmitUID(context.Background(), "123456789", 42, "alice")
	require.NoError(t, err)
	assert.Equal(t, ReadyForWallet, outcome)
}

func TestSubmitUIDStoreUnavailable(t *testing.T) {
	store := newMemStore()
	store.fail = true
	e := newTestEngine(store, &stubOracle{}, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // skip the retry backoff

	_, err := e.SubmitUID(ctx, "123456789", 42, "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestSubmitWalletImageNoPending(t *testing.T) {
	e := newTestEngine(newMemStore(), &stubOracle{}, true)

	res, err := e.SubmitWalletImage(context.Background(), 42, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, WalletNoPending, res.Outcome)
}

func TestSubmitWalletImagePass(t *testing.T) {
	store := newMemStore()
	store.recs["123456789"] = models.UIDRecord{
		UID: "123456789", ClaimedBy: 42, Status: models.StatusClaimed,
	}
	oracle := &stubOracle{text: "UID: 123456789\nBalance: ₹250.00"}
	e := newTestEngine(store, oracle, true)
	e.SetPending(42, "123456789")

	res, err := e.SubmitWalletImage(context.Background(), 42, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, WalletPass, res.Outcome)
	assert.Equal(t, 250.0, res.Balance)

	rec := store.recs["123456789"]
	assert.Equal(t, models.StatusFullyVerified, rec.Status)
	assert.Equal(t, 250.0, rec.WalletBalance)
	assert.True(t, rec.HasBalance)

	_, ok := e.PendingUID(42)
	assert.False(t, ok, "pending claim must be cleared after a pass")
}

func TestSubmitWalletImageFailClearsPending(t *testing.T) {
	store := newMemStore()
	store.recs["123456789"] = models.UIDRecord{
		UID: "123456789", ClaimedBy: 42, Status: models.StatusClaimed,
	}
	oracle := &stubOracle{text: "UID: 999999999\nBalance: ₹250.00"}
	e := newTestEngine(store, oracle, true)
	e.SetPending(42, "123456789")

	res, err := e.SubmitWalletImage(context.Background(), 42, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, WalletFail, res.Outcome)
	assert.Equal(t, ReasonUIDMismatch, res.Reason)

	// Record untouched, pending cleared.
	assert.Equal(t, models.StatusClaimed, store.recs["123456789"].Status)
	_, ok := e.PendingUID(42)
	assert.False(t, ok)
}

func TestSubmitWalletImageExtractionFailurePreservesPending(t *testing.T) {
	store := newMemStore()
	oracle := &stubOracle{err: errors.New("timeout")}
	e := newTestEngine(store, oracle, true)
	e.SetPending(42, "123456789")

	res, err := e.SubmitWalletImage(context.Background(), 42, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, WalletExtractionFailed, res.Outcome)

	uid, ok := e.PendingUID(42)
	require.True(t, ok, "pending claim must survive an extraction failure")
	assert.Equal(t, "123456789", uid)
}

func TestSubmitWalletImageEmptyTextPreservesPending(t *testing.T) {
	e := newTestEngine(newMemStore(), &stubOracle{text: ""}, true)
	e.SetPending(42, "123456789")

	res, err := e.SubmitWalletImage(context.Background(), 42, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, WalletExtractionFailed, res.Outcome)

	_, ok := e.PendingUID(42)
	assert.True(t, ok)
}

func TestSubmitWalletImageRecordPurgedWhilePending(t *testing.T) {
	store := newMemStore()
	oracle := &stubOracle{text: "UID: 123456789\nBalance: ₹250.00"}
	e := newTestEngine(store, oracle, true)
	e.SetPending(42, "123456789")

	res, err := e.SubmitWalletImage(context.Background(), 42, []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, WalletFail, res.Outcome)
	assert.Equal(t, ReasonUIDMismatch, res.Reason)

	_, ok := e.PendingUID(42)
	assert.False(t, ok)
}

func TestBulkClaimResetsFullyVerified(t *testing.T) {
	store := newMemStore()
	store.recs["123456789"] = models.UIDRecord{
		UID: "123456789", ClaimedBy: 42, Username: "alice",
		Status: models.StatusFullyVerified, WalletBalance: 500, HasBalance: true,
	}
	e := newTestEngine(store, &stubOracle{}, true)

	tally := e.BulkClaim(context.Background(), []string{"123456789", "987654321", "bad"})
	assert.Equal(t, 2, tally.Added)
	assert.Equal(t, 1, tally.Failed)

	rec := store.recs["123456789"]
	assert.Equal(t, models.StatusClaimed, rec.Status)
	assert.Equal(t, int64(42), rec.ClaimedBy, "existing owner is preserved")
	assert.False(t, rec.HasBalance, "balance is cleared on reset")
	assert.Equal(t, models.AddedByAdmin, rec.AddedBy)

	fresh := store.recs["987654321"]
	assert.Equal(t, models.StatusClaimed, fresh.Status)
	assert.Zero(t, fresh.ClaimedBy)
}

func TestRejectAndPurge(t *testing.T) {
	store := newMemStore()
	store.recs["123456789"] = models.UIDRecord{UID: "123456789"}
	store.recs["987654321"] = models.UIDRecord{UID: "987654321"}
	e := newTestEngine(store, &stubOracle{}, true)

	n, err := e.RejectAndPurge(context.Background(), []string{"123456789", "555555555"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, store.recs, 1)
}
