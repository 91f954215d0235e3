package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakura-lang/sakura/pkg/ast"
	"github.com/sakura-lang/sakura/pkg/blossom"
	"github.com/sakura-lang/sakura/pkg/sakura"
	"github.com/sakura-lang/sakura/pkg/value"
)

func countingTreeSakura(t *testing.T, count *int64) (*sakura.Sakura, string) {
	t.Helper()

	sk := sakura.New(sakura.Config{WorkerCount: 2, QueueCapacity: 8})
	require.True(t, sk.AddBlossom("std", "tick", blossom.Handler{
		Run: func(ctx context.Context, in map[string]value.Value) (map[string]value.Value, error) {
			atomic.AddInt64(count, 1)
			return nil, nil
		},
	}))

	tree := &ast.Tree{
		ID:             "ticker",
		DeclaredInputs: value.NewItemMap(),
		Body:           &ast.Leaf{Group: "std", Name: "tick", Inputs: value.NewItemMap()},
	}
	require.NoError(t, sk.AddTree(tree))
	return sk, "ticker"
}

func TestScheduler_AddInterval_FiresRepeatedly(t *testing.T) {
	t.Parallel()

	var count int64
	sk, treeID := countingTreeSakura(t, &count)
	defer sk.Close()

	s := New(sk)
	require.NoError(t, s.AddInterval("tick-job", treeID, 20*time.Millisecond, nil))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt64(&count) >= 2 }, time.Second, 10*time.Millisecond)
}

func TestScheduler_AddInterval_RejectsNonPositive(t *testing.T) {
	t.Parallel()

	sk := sakura.New(sakura.Config{})
	defer sk.Close()

	s := New(sk)
	assert.Error(t, s.AddInterval("bad", "ticker", 0, nil))
}

func TestScheduler_AddCron_RejectsInvalidExpression(t *testing.T) {
	t.Parallel()

	sk := sakura.New(sakura.Config{})
	defer sk.Close()

	s := New(sk)
	assert.Error(t, s.AddCron("bad", "ticker", "not a cron expression", nil))
}

func TestScheduler_Remove_CancelsSchedule(t *testing.T) {
	t.Parallel()

	var count int64
	sk, treeID := countingTreeSakura(t, &count)
	defer sk.Close()

	s := New(sk)
	require.NoError(t, s.AddInterval("tick-job", treeID, 15*time.Millisecond, nil))
	s.Start()

	assert.Eventually(t, func() bool { return atomic.LoadInt64(&count) >= 1 }, time.Second, 10*time.Millisecond)

	s.Remove("tick-job")
	_, ok := s.Next("tick-job")
	assert.False(t, ok)

	s.Stop()
}

func TestScheduler_AddInterval_ReplacesExistingSchedule(t *testing.T) {
	t.Parallel()

	var count int64
	sk, treeID := countingTreeSakura(t, &count)
	defer sk.Close()

	s := New(sk)
	s.Start()
	defer s.Stop()
	require.NoError(t, s.AddInterval("job", treeID, time.Hour, nil))
	first, ok := s.Next("job")
	require.True(t, ok)

	require.NoError(t, s.AddInterval("job", treeID, 2*time.Hour, nil))
	second, ok := s.Next("job")
	require.True(t, ok)

	assert.NotEqual(t, first, second)
}
