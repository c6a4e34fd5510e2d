package preference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/internal/consent/models"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	row := func(activity string, status models.PreferenceStatus, consentID string, at time.Time) models.PreferenceRow {
		return models.PreferenceRow{
			VisitorID: "v1", WidgetID: "w1", ActivityID: activity,
			Status: status, ConsentID: consentID, UpdatedAt: at,
		}
	}

	t.Run("upsert replaces rows and ignores stale writes", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.Upsert(ctx, []models.PreferenceRow{
			row("a", models.PreferenceAccepted, "c1", t0),
			row("b", models.PreferenceRejected, "c1", t0),
		}))
		require.NoError(t, store.Upsert(ctx, []models.PreferenceRow{
			row("a", models.PreferenceRejected, "c2", t0.Add(time.Minute)),
		}))
		require.NoError(t, store.Upsert(ctx, []models.PreferenceRow{
			row("b", models.PreferenceAccepted, "c0", t0.Add(-time.Minute)),
		}))

		rows, err := store.ListByVisitor(ctx, "v1", "w1")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, models.PreferenceRejected, rows[0].Status)
		assert.Equal(t, "c2", rows[0].ConsentID)
		assert.Equal(t, models.PreferenceRejected, rows[1].Status, "stale write is ignored")
	})

	t.Run("withdraw all marks every row for the visitor and widget", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.Upsert(ctx, []models.PreferenceRow{
			row("a", models.PreferenceAccepted, "c1", t0),
			row("b", models.PreferenceRejected, "c1", t0),
			{VisitorID: "v2", WidgetID: "w1", ActivityID: "a", Status: models.PreferenceAccepted, ConsentID: "c9", UpdatedAt: t0},
		}))

		n, err := store.WithdrawAll(ctx, "v1", "w1", "c3", t0.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		rows, err := store.ListByVisitor(ctx, "v1", "w1")
		require.NoError(t, err)
		for _, r := range rows {
			assert.Equal(t, models.PreferenceWithdrawn, r.Status)
			assert.Equal(t, "c3", r.ConsentID)
		}

		others, err := store.ListByVisitor(ctx, "v2", "w1")
		require.NoError(t, err)
		assert.Equal(t, models.PreferenceAccepted, others[0].Status)

		n, err = store.WithdrawAll(ctx, "v1", "w1", "c4", t0.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n, "already withdrawn rows are not counted again")
	})
}
