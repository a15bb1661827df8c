// Package scheduler runs recurring jobs on fixed intervals with no-overlap
// semantics: a trigger that fires while the same job is still running is
// dropped, never queued. Distinct jobs run concurrently.
package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Func is one job body. The context is the scheduler's run context; a job
// should return promptly once it is cancelled.
type Func func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	run      Func
	running  atomic.Bool
	dropped  atomic.Uint64
}

// Scheduler owns a set of recurring jobs. Add jobs before Start; the zero
// value is ready to use.
type Scheduler struct {
	jobs []*job
	wg   sync.WaitGroup

	// OnDrop, when set, is invoked with the job name every time an
	// overlapping trigger is dropped. Set before Start.
	OnDrop func(name string)
}

// Add registers a job to run every interval. The first run happens
// immediately on Start.
func (s *Scheduler) Add(name string, interval time.Duration, run Func) {
	s.jobs = append(s.jobs, &job{name: name, interval: interval, run: run})
}

// Start launches every job loop and returns. Cancel ctx to stop scheduling,
// then Wait for in-flight runs to drain.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, j)
		}()
	}
}

// Wait blocks until all job loops and in-flight runs have finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	s.dispatch(ctx, j)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx, j)
		}
	}
}

// Dropped returns how many triggers have been dropped for the named job.
func (s *Scheduler) Dropped(name string) uint64 {
	for _, j := range s.jobs {
		if j.name == name {
			return j.dropped.Load()
		}
	}
	return 0
}

// dispatch starts one run of the job unless the previous run is still going,
// in which case the trigger is dropped and counted.
func (s *Scheduler) dispatch(ctx context.Context, j *job) {
	if !j.running.CompareAndSwap(false, true) {
		log.Printf("scheduler: job %s still running, dropping trigger (%d dropped total)", j.name, j.dropped.Add(1))
		if s.OnDrop != nil {
			s.OnDrop(j.name)
		}
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer j.running.Store(false)

		start := time.Now()
		if err := j.run(ctx); err != nil {
			log.Printf("scheduler: job %s failed after %s: %v", j.name, time.Since(start).Round(time.Millisecond), err)
			return
		}
		log.Printf("scheduler: job %s finished in %s", j.name, time.Since(start).Round(time.Millisecond))
	}()
}
