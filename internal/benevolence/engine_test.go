package benevolence

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/SlpAus/standing-backend/internal/identity"
	"github.com/SlpAus/standing-backend/internal/platform/apperr"
	"github.com/SlpAus/standing-backend/internal/platform/config"
	"github.com/SlpAus/standing-backend/internal/platform/database"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mapResolver map[string]string

func (m mapResolver) ResolveUsername(_ context.Context, username string) (string, error) {
	for id, name := range m {
		if name == username {
			return id, nil
		}
	}
	return "", identity.ErrUnknownUser
}

func (m mapResolver) Usernames(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := m[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// newTestEngine 创建引擎并为每个用户名建立记录，用户ID为 "u-<name>"
func newTestEngine(t *testing.T, names ...string) (*Engine, mapResolver) {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "benevolence.db") + "?_busy_timeout=5000",
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	users := mapResolver{}
	engine := NewEngine(db, users, zap.NewNop())
	for _, name := range names {
		users["u-"+name] = name
		_, err := engine.CreateForUser(t.Context(), "u-"+name)
		require.NoError(t, err)
	}
	return engine, users
}

func mustGet(t *testing.T, e *Engine, userID string) *Record {
	t.Helper()
	rec, err := e.GetByID(t.Context(), userID)
	require.NoError(t, err)
	return rec
}

func TestCreateForUser(t *testing.T) {
	engine, _ := newTestEngine(t, "alice")

	rec := mustGet(t, engine, "u-alice")
	assert.Zero(t, rec.NominationsReceived)
	assert.Zero(t, rec.ReportsReceived)
	assert.False(t, rec.Granted)
	assert.Empty(t, rec.MyVotes)
	assert.Empty(t, rec.MyReports)
	assert.Equal(t, MaxVotes, rec.VotesLeft())

	_, err := engine.CreateForUser(t.Context(), "u-alice")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestDeleteForUserIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t, "alice")
	ctx := t.Context()

	require.NoError(t, engine.DeleteForUser(ctx, "u-alice"))
	require.NoError(t, engine.DeleteForUser(ctx, "u-alice"))
	require.NoError(t, engine.DeleteForUser(ctx, "u-never-existed"))

	_, err := engine.GetByID(ctx, "u-alice")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNominate(t *testing.T) {
	engine, _ := newTestEngine(t, "alice", "bob")

	rec, outcome, err := engine.Nominate(t.Context(), "u-alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, []string{"u-bob"}, []string(rec.MyVotes))
	assert.Equal(t, MaxVotes-1, rec.VotesLeft())

	bob := mustGet(t, engine, "u-bob")
	assert.EqualValues(t, 1, bob.NominationsReceived)
	assert.True(t, bob.Granted)
	assert.Empty(t, bob.MyVotes)
}

func TestNominateTwiceCountsOnce(t *testing.T) {
	engine, _ := newTestEngine(t, "alice", "bob")
	ctx := t.Context()

	_, _, err := engine.Nominate(ctx, "u-alice", "bob")
	require.NoError(t, err)
	rec, outcome, err := engine.Nominate(ctx, "u-alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyMember, outcome)
	assert.Len(t, rec.MyVotes, 1)

	assert.EqualValues(t, 1, mustGet(t, engine, "u-bob").NominationsReceived)
}

func TestNominateQuota(t *testing.T) {
	engine, _ := newTestEngine(t, "alice", "b1", "b2", "b3", "b4")
	ctx := t.Context()

	for _, name := range []string{"b1", "b2", "b3"} {
		_, outcome, err := engine.Nominate(ctx, "u-alice", name)
		require.NoError(t, err)
		require.Equal(t, OutcomeApplied, outcome)
	}

	rec, outcome, err := engine.Nominate(ctx, "u-alice", "b4")
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuotaReached, outcome)
	assert.Equal(t, []string{"u-b1", "u-b2", "u-b3"}, []string(rec.MyVotes))
	assert.Zero(t, rec.VotesLeft())
	assert.Zero(t, mustGet(t, engine, "u-b4").NominationsReceived)

	// 已经提名过的用户仍然报告重复，而不是次数用完
	_, outcome, err = engine.Nominate(ctx, "u-alice", "b2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyMember, outcome)
}

func TestNominateSelf(t *testing.T) {
	engine, _ := newTestEngine(t, "alice")

	_, _, err := engine.Nominate(t.Context(), "u-alice", "alice")
	assert.ErrorIs(t, err, apperr.ErrSelfNomination)
	assert.Zero(t, mustGet(t, engine, "u-alice").NominationsReceived)
}

func TestNominateUnknownTarget(t *testing.T) {
	engine, users := newTestEngine(t, "alice")
	ctx := t.Context()

	_, _, err := engine.Nominate(ctx, "u-alice", "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// 用户存在但没有benevolence记录时，整个事务回滚
	users["u-ghost"] = "ghost"
	_, _, err = engine.Nominate(ctx, "u-alice", "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, mustGet(t, engine, "u-alice").MyVotes)
}

func TestReport(t *testing.T) {
	engine, _ := newTestEngine(t, "alice", "bob")
	ctx := t.Context()

	rec, outcome, err := engine.Report(ctx, "u-alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, []string{"u-bob"}, []string(rec.MyReports))

	_, outcome, err = engine.Report(ctx, "u-alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyMember, outcome)

	bob := mustGet(t, engine, "u-bob")
	assert.EqualValues(t, 1, bob.ReportsReceived)
	assert.False(t, bob.Granted)
}

func TestReportSelf(t *testing.T) {
	engine, _ := newTestEngine(t, "alice")

	rec, outcome, err := engine.Report(t.Context(), "u-alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.EqualValues(t, 1, rec.ReportsReceived)
	assert.Equal(t, []string{"u-alice"}, []string(rec.MyReports))
}

func TestReportsAreUnbounded(t *testing.T) {
	names := []string{"alice"}
	for i := range MaxVotes + 3 {
		names = append(names, fmt.Sprintf("t%d", i))
	}
	engine, _ := newTestEngine(t, names...)

	for _, name := range names[1:] {
		_, outcome, err := engine.Report(t.Context(), "u-alice", name)
		require.NoError(t, err)
		require.Equal(t, OutcomeApplied, outcome)
	}
	assert.Len(t, mustGet(t, engine, "u-alice").MyReports, MaxVotes+3)
}

// Granted 每次只按当前事件的方向更新：提名只可能把它置为true，举报只可能把它置为false。
// 这里逐个事件回放，断言每一步之后的状态。
func TestGrantedReplay(t *testing.T) {
	engine, _ := newTestEngine(t, "target", "n1", "n2", "n3", "r1", "r2", "r3", "r4", "r5")
	ctx := t.Context()

	steps := []struct {
		actor       string
		nominate    bool
		nominations int64
		reports     int64
		granted     bool
	}{
		// 1 >= 0，举报把Granted保持为false
		{"r1", false, 0, 1, false},
		// 2 > 1
		{"n1", true, 1, 1, true},
		// 2 >= 2
		{"r2", false, 1, 2, false},
		// 4 > 2
		{"n2", true, 2, 2, true},
		// 3 < 4，举报不会改变Granted
		{"r3", false, 2, 3, true},
		// 4 >= 4
		{"r4", false, 2, 4, false},
		// 5 >= 4
		{"r5", false, 2, 5, false},
		// 6 > 5
		{"n3", true, 3, 5, true},
	}
	for i, step := range steps {
		var err error
		if step.nominate {
			_, _, err = engine.Nominate(ctx, "u-"+step.actor, "target")
		} else {
			_, _, err = engine.Report(ctx, "u-"+step.actor, "target")
		}
		require.NoError(t, err, "step %d", i)

		rec := mustGet(t, engine, "u-target")
		assert.Equal(t, step.nominations, rec.NominationsReceived, "step %d", i)
		assert.Equal(t, step.reports, rec.ReportsReceived, "step %d", i)
		assert.Equal(t, step.granted, rec.Granted, "step %d", i)
	}
}

func TestConcurrentNominationsRespectQuota(t *testing.T) {
	targets := []string{"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7"}
	engine, _ := newTestEngine(t, append([]string{"alice"}, targets...)...)
	ctx := t.Context()

	var applied, quota atomic.Int32
	var wg conc.WaitGroup
	for _, name := range targets {
		wg.Go(func() {
			_, outcome, err := engine.Nominate(ctx, "u-alice", name)
			if !assert.NoError(t, err) {
				return
			}
			switch outcome {
			case OutcomeApplied:
				applied.Add(1)
			case OutcomeQuotaReached:
				quota.Add(1)
			}
		})
	}
	wg.Wait()

	assert.EqualValues(t, MaxVotes, applied.Load())
	assert.EqualValues(t, len(targets)-MaxVotes, quota.Load())

	alice := mustGet(t, engine, "u-alice")
	assert.Len(t, alice.MyVotes, MaxVotes)

	var received int64
	for _, name := range targets {
		rec := mustGet(t, engine, "u-"+name)
		received += rec.NominationsReceived
		assert.Equal(t, alice.HasVoted("u-"+name), rec.NominationsReceived == 1)
	}
	assert.EqualValues(t, MaxVotes, received)
}

func TestConcurrentDuplicateReportsCountOnce(t *testing.T) {
	engine, _ := newTestEngine(t, "alice", "bob")
	ctx := t.Context()

	var wg conc.WaitGroup
	for range 6 {
		wg.Go(func() {
			_, _, err := engine.Report(ctx, "u-alice", "bob")
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.EqualValues(t, 1, mustGet(t, engine, "u-bob").ReportsReceived)
	assert.Len(t, mustGet(t, engine, "u-alice").MyReports, 1)
}

func TestConcurrentNominationsFromManyActors(t *testing.T) {
	actors := []string{"a0", "a1", "a2", "a3", "a4", "a5"}
	engine, _ := newTestEngine(t, append([]string{"star"}, actors...)...)
	ctx := t.Context()

	var wg conc.WaitGroup
	for _, actor := range actors {
		wg.Go(func() {
			_, outcome, err := engine.Nominate(ctx, "u-"+actor, "star")
			assert.NoError(t, err)
			assert.Equal(t, OutcomeApplied, outcome)
		})
	}
	wg.Wait()

	star := mustGet(t, engine, "u-star")
	assert.EqualValues(t, len(actors), star.NominationsReceived)
	assert.True(t, star.Granted)
	assert.EqualValues(t, len(actors), star.Version)
}

func TestViews(t *testing.T) {
	engine, users := newTestEngine(t, "alice", "bob", "carol")
	ctx := t.Context()

	_, _, err := engine.Nominate(ctx, "u-alice", "bob")
	require.NoError(t, err)
	_, _, err = engine.Nominate(ctx, "u-alice", "carol")
	require.NoError(t, err)
	rec, _, err := engine.Report(ctx, "u-alice", "carol")
	require.NoError(t, err)

	// 被删除的用户仍然占用提名次数，但不再显示
	delete(users, "u-carol")

	owner, err := engine.OwnerView(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner.Author)
	assert.Equal(t, []string{"bob"}, owner.MyVotes)
	assert.Empty(t, owner.MyReports)
	assert.Equal(t, 1, owner.VotesLeft)

	public, err := engine.PublicView(ctx, mustGet(t, engine, "u-bob"))
	require.NoError(t, err)
	assert.Equal(t, PublicView{ID: public.ID, Author: "bob", Granted: true}, *public)
}
