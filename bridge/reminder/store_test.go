package reminder_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/reminder"
	"github.com/zeebo/assert"
)

var base = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func record(hash string, claimable time.Time) models.ReminderRecord {
	return models.ReminderRecord{
		ChainID:     "echelon-1",
		TxHash:      hash,
		Recipient:   "init1owner",
		ClaimableAt: claimable,
		Amount:      "1000",
		Denom:       "uinit",
	}
}

func TestActionableOrderAndFilter(t *testing.T) {
	store, err := reminder.NewStore("")
	assert.NoError(t, err)

	assert.NoError(t, store.Observe(record("B", base.Add(-time.Hour))))
	assert.NoError(t, store.Observe(record("A", base.Add(-2*time.Hour))))
	assert.NoError(t, store.Observe(record("future", base.Add(time.Hour))))
	other := record("other", base.Add(-time.Hour))
	other.Recipient = "init1someoneelse"
	assert.NoError(t, store.Observe(other))

	got := store.Actionable("init1owner", base)
	assert.Equal(t, len(got), 2)
	assert.Equal(t, got[0].TxHash, "A")
	assert.Equal(t, got[1].TxHash, "B")
}

func TestDismissIsPermanent(t *testing.T) {
	store, err := reminder.NewStore("")
	assert.NoError(t, err)

	rec := record("A", base.Add(-time.Hour))
	assert.NoError(t, store.Observe(rec))
	assert.NoError(t, store.Dismiss(rec.Key()))
	assert.Equal(t, len(store.Actionable("init1owner", base)), 0)

	// seen again later, e.g. from another session
	assert.NoError(t, store.Observe(rec))
	got, err := store.Get(rec.Key())
	assert.NoError(t, err)
	assert.True(t, got.Dismissed)
	assert.Equal(t, len(store.Actionable("init1owner", base)), 0)
}

func TestMarkClaimedRemoves(t *testing.T) {
	store, err := reminder.NewStore("")
	assert.NoError(t, err)

	rec := record("A", base)
	assert.NoError(t, store.Observe(rec))
	assert.NoError(t, store.MarkClaimed(rec.Key(), base))

	_, err = store.Get(rec.Key())
	assert.True(t, errors.Is(err, reminder.ErrNotFound))
	assert.True(t, errors.Is(store.MarkClaimed(rec.Key(), base), reminder.ErrNotFound))
	assert.True(t, errors.Is(store.Dismiss(rec.Key()), reminder.ErrNotFound))
}

func TestClaimedWithdrawalIsNotObservedAgain(t *testing.T) {
	store, err := reminder.NewStore("")
	assert.NoError(t, err)

	rec := record("A", base.Add(-time.Hour))
	assert.NoError(t, store.Observe(rec))
	assert.NoError(t, store.MarkClaimed(rec.Key(), base))
	assert.True(t, store.IsClaimed(rec.Key()))

	// the withdrawal shows up again, e.g. from a stale tab
	assert.NoError(t, store.Observe(rec))
	assert.Equal(t, len(store.Actionable("init1owner", base)), 0)
	_, err = store.Get(rec.Key())
	assert.True(t, errors.Is(err, reminder.ErrNotFound))
}

func TestClaimedSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.json")

	store, err := reminder.NewStore(path)
	assert.NoError(t, err)
	rec := record("A", base.Add(-time.Hour))
	assert.NoError(t, store.Observe(rec))
	assert.NoError(t, store.MarkClaimed(rec.Key(), base))

	reopened, err := reminder.NewStore(path)
	assert.NoError(t, err)
	assert.True(t, reopened.IsClaimed(rec.Key()))
	assert.NoError(t, reopened.Observe(rec))
	assert.Equal(t, len(reopened.Actionable("init1owner", base)), 0)
}

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reminders.json")

	store, err := reminder.NewStore(path)
	assert.NoError(t, err)
	assert.NoError(t, store.Observe(record("A", base)))
	assert.NoError(t, store.Observe(record("B", base)))
	assert.NoError(t, store.Dismiss(record("B", base).Key()))

	reopened, err := reminder.NewStore(path)
	assert.NoError(t, err)
	got := reopened.Actionable("init1owner", base)
	assert.Equal(t, len(got), 1)
	assert.Equal(t, got[0].TxHash, "A")
	assert.True(t, got[0].ClaimableAt.Equal(base))
}

func TestFromWithdrawal(t *testing.T) {
	route := &models.Route{
		SourceAssetChainID:            "echelon-1",
		DestAssetDenom:                "uinit",
		AmountOut:                     "1000",
		EstimatedRouteDurationSeconds: 3600,
		Operations: []models.Operation{
			models.NewOperation(models.OPInitTransferOperation{FromChainID: "echelon-1", ToChainID: "interwoven-1", OPInitBridgeID: 9}, 0, "1000", "1000"),
		},
	}

	rec, ok := reminder.FromWithdrawal(route, "0xabc", "init1owner", base)
	assert.True(t, ok)
	assert.True(t, rec.ClaimableAt.Equal(base.Add(time.Hour)))
	assert.Equal(t, rec.Key(), "echelon-1:0xabc")

	route.Operations = []models.Operation{
		models.NewOperation(models.TransferOperation{FromChainID: "echelon-1", ToChainID: "interwoven-1"}, 0, "1000", "1000"),
	}
	_, ok = reminder.FromWithdrawal(route, "0xabc", "init1owner", base)
	assert.False(t, ok)
}
