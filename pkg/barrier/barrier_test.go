package barrier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrier_AllSucceed(t *testing.T) {
	t.Parallel()

	b := New(3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Increment(true, "", nil)
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ok, msg, err := b.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, msg)
}

func TestBarrier_StickyFirstFailure(t *testing.T) {
	t.Parallel()

	b := New(2)
	b.Increment(false, "first failure", nil)
	b.Increment(false, "second failure", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ok, msg, err := b.Wait(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "first failure", msg)
}

func TestBarrier_ZeroExpectedIsImmediatelyDone(t *testing.T) {
	t.Parallel()

	b := New(0)
	assert.True(t, b.IsDone())
}

func TestBarrier_WaitRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	b := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := b.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
