package participant_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/standup/backend/internal/model/participant"
)

func seed() []participant.Record {
	return []participant.Record{
		{
			Name:    "Priya",
			Project: "Atlas",
			Role:    "Backend Engineer",
			Logs: []participant.SessionLog{{
				Timestamp: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
				TodayPlan: "finish auth",
				Blockers:  []string{"API down"},
			}},
		},
	}
}

func TestMemoryStoreGetCaseInsensitive(t *testing.T) {
	store := participant.NewMemoryStore(seed())
	ctx := context.Background()

	for _, name := range []string{"Priya", "priya", "PRIYA"} {
		rec, err := store.Get(ctx, name)
		require.NoError(t, err, name)
		assert.Equal(t, "Priya", rec.Name)
		assert.Equal(t, "Atlas", rec.Project)
	}
}

func TestMemoryStoreGetPrefersExactMatch(t *testing.T) {
	store := participant.NewMemoryStore([]participant.Record{
		{Name: "ALEX", Project: "first"},
		{Name: "alex", Project: "second"},
	})

	rec, err := store.Get(context.Background(), "alex")
	require.NoError(t, err)
	assert.Equal(t, "second", rec.Project)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := participant.NewMemoryStore(seed())

	_, err := store.Get(context.Background(), "Nobody")
	assert.ErrorIs(t, err, participant.ErrNotFound)
}

func TestMemoryStoreUpdateAppendsOneLogPerCall(t *testing.T) {
	store := participant.NewMemoryStore(seed())
	ctx := context.Background()

	draft := participant.Draft{Project: "Atlas", Role: "Backend Engineer", TodayPlan: "ship it"}
	require.NoError(t, store.Update(ctx, "priya", draft))
	require.NoError(t, store.Update(ctx, "PRIYA", draft))

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	rec, err := store.Get(ctx, "Priya")
	require.NoError(t, err)
	assert.Len(t, rec.Logs, 3)
	assert.Equal(t, "ship it", rec.Logs[2].TodayPlan)
	assert.False(t, rec.LastSession.IsZero())
}

func TestMemoryStoreUpdateCreatesRecord(t *testing.T) {
	store := participant.NewMemoryStore(nil)
	ctx := context.Background()

	draft := participant.Draft{YesterdayWork: "reviews", Blockers: []string{"flaky CI"}}
	require.NoError(t, store.Update(ctx, "Marco", draft))

	rec, err := store.Get(ctx, "marco")
	require.NoError(t, err)
	require.Len(t, rec.Logs, 1)
	assert.Equal(t, []string{"flaky CI"}, rec.Logs[0].Blockers)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := participant.NewMemoryStore(seed())
	ctx := context.Background()

	rec, err := store.Get(ctx, "Priya")
	require.NoError(t, err)
	rec.Logs[0].Blockers[0] = "mutated"

	again, err := store.Get(ctx, "Priya")
	require.NoError(t, err)
	assert.Equal(t, "API down", again.Logs[0].Blockers[0])
}

func TestDisabledStore(t *testing.T) {
	var store participant.Store = participant.DisabledStore{}
	ctx := context.Background()

	assert.False(t, store.Connected())
	_, err := store.Get(ctx, "Priya")
	assert.ErrorIs(t, err, participant.ErrUnavailable)
	assert.ErrorIs(t, store.Update(ctx, "Priya", participant.Draft{}), participant.ErrUnavailable)
}

func TestDraftApply(t *testing.T) {
	var d participant.Draft

	assert.True(t, d.Apply(participant.FieldTodayPlan, "a"))
	assert.True(t, d.Apply(participant.FieldTodayPlan, "b"))
	assert.True(t, d.Apply(participant.FieldBlockers, "x"))
	assert.True(t, d.Apply(participant.FieldBlockers, "y"))
	assert.False(t, d.Apply("mood", "great"))

	assert.Equal(t, "b", d.TodayPlan)
	assert.Equal(t, []string{"x", "y"}, d.Blockers)
}
