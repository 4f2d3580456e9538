package operations

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsTasks(t *testing.T) {
	pool := NewWorkerPool(2, nil)
	defer pool.Close()

	res := <-pool.Execute(context.Background(), Task{
		Stage: StageAnalyzePatterns,
		Run: func(context.Context) (interface{}, error) {
			return 42, nil
		},
	})
	require.NoError(t, res.Err)
	assert.Equal(t, 42, res.Value)
}

func TestWorkerPoolFIFOWithSingleWorker(t *testing.T) {
	pool := NewWorkerPool(1, nil)

	var mu sync.Mutex
	var order []int

	var done []<-chan TaskResult
	for i := 0; i < 5; i++ {
		done = append(done, pool.Execute(context.Background(), Task{
			Stage: StageTransformData,
			Run: func(context.Context) (interface{}, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil, nil
			},
		}))
	}
	for _, ch := range done {
		<-ch
	}
	pool.Close()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestWorkerPoolPropagatesTaskError(t *testing.T) {
	pool := NewWorkerPool(1, nil)
	defer pool.Close()

	sentinel := errors.New("stage blew up")
	res := <-pool.Execute(context.Background(), Task{
		Stage: StageClassifyData,
		Run: func(context.Context) (interface{}, error) {
			return nil, sentinel
		},
	})
	assert.ErrorIs(t, res.Err, sentinel)
}

func TestWorkerPoolSkipsCancelledTask(t *testing.T) {
	pool := NewWorkerPool(1, nil)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := <-pool.Execute(ctx, Task{
		Stage: StageTransformData,
		Run: func(context.Context) (interface{}, error) {
			t.Fatal("task ran despite cancelled context")
			return nil, nil
		},
	})
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestWorkerPoolCloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(2, nil)
	pool.Close()
	pool.Close()
}

func TestSyncExecutorMatchesPool(t *testing.T) {
	task := Task{
		Stage: StageTransformData,
		Run: func(context.Context) (interface{}, error) {
			return "same answer", nil
		},
	}

	pool := NewWorkerPool(1, nil)
	defer pool.Close()
	inline := NewSyncExecutor()

	fromPool := <-pool.Execute(context.Background(), task)
	fromSync := <-inline.Execute(context.Background(), task)

	require.NoError(t, fromPool.Err)
	require.NoError(t, fromSync.Err)
	assert.Equal(t, fromPool.Value, fromSync.Value)
}

func TestSyncExecutorHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := <-NewSyncExecutor().Execute(ctx, Task{
		Stage: StageParseSheet,
		Run: func(context.Context) (interface{}, error) {
			t.Fatal("task ran despite cancelled context")
			return nil, nil
		},
	})
	assert.ErrorIs(t, res.Err, context.Canceled)
}
