package accredit

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mspdash/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testSnapshot(inn string, checkedAt time.Time) *model.Accreditation {
	decision := time.Date(2023, 9, 15, 0, 0, 0, 0, time.UTC)
	return &model.Accreditation{
		INN:            inn,
		Name:           "ООО Ромашка",
		Status:         model.AccreditationActive,
		DecisionNumber: "АО-1",
		DecisionDate:   &decision,
		RawPayload:     json.RawMessage(`{"attributeValues":{"Status":"Действует"}}`),
		CheckedAt:      checkedAt,
	}
}

func TestSQLiteStore_UpsertAndGet(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	checkedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, testSnapshot("7701234567", checkedAt)))

	got, err := store.GetByINN(ctx, "7701234567")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ООО Ромашка", got.Name)
	assert.Equal(t, model.AccreditationActive, got.Status)
	require.NotNil(t, got.DecisionDate)
	assert.Equal(t, 2023, got.DecisionDate.Year())
	assert.Nil(t, got.RegistryRecordDate)
	assert.JSONEq(t, `{"attributeValues":{"Status":"Действует"}}`, string(got.RawPayload))
	assert.True(t, got.CheckedAt.Equal(checkedAt))
}

func TestSQLiteStore_GetByINN_Missing(t *testing.T) {
	store := newTestSQLite(t)

	got, err := store.GetByINN(context.Background(), "0000000000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_UpsertReplaces(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	first := testSnapshot("7701234567", time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, store.Upsert(ctx, first))

	second := testSnapshot("7701234567", time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC))
	second.Status = "Приостановлено действие"
	second.DecisionDate = nil
	require.NoError(t, store.Upsert(ctx, second))

	snapshots, err := store.GetForINNs(ctx, []string{"7701234567"})
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	got := snapshots["7701234567"]
	assert.Equal(t, "Приостановлено действие", got.Status)
	assert.Nil(t, got.DecisionDate)
	assert.True(t, got.CheckedAt.After(first.CheckedAt))
}

func TestSQLiteStore_GetForINNs(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Upsert(ctx, testSnapshot("1", now)))
	require.NoError(t, store.Upsert(ctx, testSnapshot("2", now)))

	t.Run("subset", func(t *testing.T) {
		snapshots, err := store.GetForINNs(ctx, []string{"1", "3"})
		require.NoError(t, err)
		require.Len(t, snapshots, 1)
		assert.NotNil(t, snapshots["1"])
	})

	t.Run("empty input", func(t *testing.T) {
		snapshots, err := store.GetForINNs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, snapshots)
	})
}

func TestSQLiteStore_SyncLog(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	t.Run("empty log", func(t *testing.T) {
		last, err := store.LastSync(ctx)
		require.NoError(t, err)
		assert.Nil(t, last)
	})

	t.Run("latest batch wins", func(t *testing.T) {
		base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		for i := 0; i < 2; i++ {
			batch := model.SyncBatch{
				ID:         uuid.New().String(),
				Requested:  5,
				Succeeded:  4 + i,
				Failed:     1 - i,
				StartedAt:  base.Add(time.Duration(i) * time.Hour),
				FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
			}
			require.NoError(t, store.LogSync(ctx, batch))
		}

		last, err := store.LastSync(ctx)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, 5, last.Succeeded)
		assert.Equal(t, 0, last.Failed)
	})
}
