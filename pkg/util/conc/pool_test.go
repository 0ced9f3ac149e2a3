package conc

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/objection-go/pkg/util/merr"
)

func TestPool(t *testing.T) {
	pool := NewDefaultPool[int]()
	defer pool.Release()
	assert.Greater(t, pool.Cap(), 0)

	futures := make([]*Future[int], 0, 10)
	for i := 0; i < 10; i++ {
		futures = append(futures, pool.Submit(func() (int, error) {
			return i * i, nil
		}))
	}
	require.NoError(t, AwaitAll(futures...))
	for i, f := range futures {
		assert.Equal(t, i*i, f.Value())
		assert.True(t, f.OK())
	}
}

func TestPoolError(t *testing.T) {
	pool := NewPool[int](2)
	defer pool.Release()

	boom := errors.New("boom")
	f := pool.Submit(func() (int, error) { return 0, boom })
	_, err := f.Await()
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, AwaitAll(f), boom)
}

func TestPoolPanic(t *testing.T) {
	pool := NewPool[int](1, WithConcealPanic(true))
	defer pool.Release()

	f := pool.Submit(func() (int, error) { panic("bad") })
	<-f.Done()
	assert.ErrorIs(t, f.Err(), merr.ErrServiceInternal)
}

func TestPoolReleased(t *testing.T) {
	pool := NewPool[int](1)
	pool.Release()

	f := pool.Submit(func() (int, error) { return 1, nil })
	assert.ErrorIs(t, f.Err(), merr.ErrServiceInternal)
}

func TestPreHandler(t *testing.T) {
	called := make(chan struct{}, 1)
	pool := NewPool[int](1, WithPreHandler(func() { called <- struct{}{} }))
	defer pool.Release()

	require.NoError(t, pool.Submit(func() (int, error) { return 1, nil }).Err())
	assert.Len(t, called, 1)
}
