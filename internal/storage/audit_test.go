package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *AuditRepository {
	t.Helper()
	repo, err := NewAuditRepository(filepath.Join(t.TempDir(), "data", "ivr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestAuditRepository_SaveAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	records := []CallRecord{
		{ID: "a", Action: "consultamovtdc", Code: "200", Count: 4, Retried: true, Period: "02/2025", DurationMs: 120, OccurredAt: base},
		{ID: "b", Action: "recibir-tarjetas", Code: "200", Count: 2, DurationMs: 80, OccurredAt: base.Add(time.Minute)},
		{ID: "c", Action: "consultamovtdc", Code: "500", Message: "timeout", DurationMs: 15000, OccurredAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range records {
		require.NoError(t, repo.SaveCall(ctx, rec))
	}

	all, err := repo.ListCalls(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID, "most recent first")
	assert.Equal(t, "a", all[2].ID)
	assert.True(t, all[2].Retried)
	assert.Equal(t, "02/2025", all[2].Period)
	assert.True(t, all[2].OccurredAt.Equal(base))

	consults, err := repo.ListCalls(ctx, AuditFilter{Action: "consultamovtdc", Limit: 1})
	require.NoError(t, err)
	require.Len(t, consults, 1)
	assert.Equal(t, "c", consults[0].ID)

	recent, err := repo.ListCalls(ctx, AuditFilter{Since: base.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestAuditRepository_DuplicateIgnored(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	rec := CallRecord{ID: "dup", Action: "env", OccurredAt: time.Now()}

	require.NoError(t, repo.SaveCall(ctx, rec))
	rec.Code = "changed"
	require.NoError(t, repo.SaveCall(ctx, rec))

	all, err := repo.ListCalls(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "", all[0].Code)
}

func TestAuditRepository_SummaryAndPrune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveCall(ctx, CallRecord{ID: "1", Action: "consultamovtdc", Retried: true, DurationMs: 100, OccurredAt: base}))
	require.NoError(t, repo.SaveCall(ctx, CallRecord{ID: "2", Action: "consultamovtdc", DurationMs: 300, OccurredAt: base.Add(time.Hour)}))
	require.NoError(t, repo.SaveCall(ctx, CallRecord{ID: "3", Action: "env", DurationMs: 1, OccurredAt: base.Add(2 * time.Hour)}))

	summary, err := repo.Summary(ctx, base)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, ActionSummary{Action: "consultamovtdc", Calls: 2, Retried: 1, AvgDuration: 200}, summary[0])
	assert.Equal(t, "env", summary[1].Action)

	n, err := repo.PruneBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := repo.ListCalls(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "3", left[0].ID)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))
}
