package dispatch

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/Boomerang-Apps/wave-sub010/internal/model"
)

// Result pairs a dispatched story's outcome with its original index, to
// preserve ordering, adapted from the teacher's internal/worker.Result[T].
type Result[T any] struct {
	Index int
	Story *model.Story
	Value T
	Err   error
}

// Pool fans out dispatch work across same-wave, disjoint-domain stories,
// adapted from the teacher's internal/worker.Pool[T]: generalized from
// fixed-arity string items to *model.Story items, and bounded by a
// golang.org/x/sync/semaphore weighted semaphore rather than a bare
// goroutine-per-worker channel, so a process-wide fan-out cap (spec §5
// backpressure) can span multiple concurrent Process calls rather than
// just one.
type Pool[T any] struct {
	concurrency int64
	sem         *semaphore.Weighted
}

// NewPool creates a dispatch pool with the given concurrency. If
// concurrency <= 0, it defaults to runtime.NumCPU(). sem, if non-nil, is
// an additional process-wide cap acquired around each item; pass nil to
// bound only by this pool's own concurrency.
func NewPool[T any](concurrency int, sem *semaphore.Weighted) *Pool[T] {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool[T]{concurrency: int64(concurrency), sem: sem}
}

// Process distributes stories across workers, applies fn to each, and
// returns results in the same order as the input slice. A single story's
// failure is captured per-result rather than aborting the whole wave.
func (p *Pool[T]) Process(ctx context.Context, stories []*model.Story, fn func(context.Context, *model.Story) (T, error)) []Result[T] {
	if len(stories) == 0 {
		return nil
	}

	workers := p.concurrency
	if workers > int64(len(stories)) {
		workers = int64(len(stories))
	}

	type job struct {
		index int
		story *model.Story
	}

	jobs := make(chan job, len(stories))
	results := make([]Result[T], len(stories))
	var wg sync.WaitGroup

	for w := int64(0); w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = p.run(ctx, j.index, j.story, fn)
			}
		}()
	}

	for i, story := range stories {
		jobs <- job{index: i, story: story}
	}
	close(jobs)
	wg.Wait()

	return results
}

func (p *Pool[T]) run(ctx context.Context, index int, story *model.Story, fn func(context.Context, *model.Story) (T, error)) Result[T] {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			var zero T
			return Result[T]{Index: index, Story: story, Value: zero, Err: err}
		}
		defer p.sem.Release(1)
	}
	val, err := fn(ctx, story)
	return Result[T]{Index: index, Story: story, Value: val, Err: err}
}
