package sense

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// QueryRequest asks for one observer's visibility this tick. Requests in a
// batch are independent: they share only the read-only world provider and
// their own immutable inputs.
type QueryRequest struct {
	Observer EntityID
	Origin   TileCoordinate
	Profile  VisionProfile
	Env      EnvironmentalConditions
	Now      float64
}

// observerSlot holds the publication point for one observer. The snapshot
// pointer is read lock-free; the sequence check under the mutex guarantees
// a superseded result can never overwrite a newer one.
type observerSlot struct {
	requested atomic.Uint64

	mu        sync.Mutex
	published uint64
	state     atomic.Pointer[VisibilityState]
}

func (s *observerSlot) publish(seq uint64, st *VisibilityState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.published {
		return false
	}
	s.published = seq
	s.state.Store(st)
	return true
}

// BatchQueryScheduler fans independent per-observer FOV computations out
// across a worker pool. There is no ordering guarantee between observers;
// within one observer, only the newest requested computation may publish.
type BatchQueryScheduler struct {
	world   WorldOcclusionProvider
	workers int
	log     *SimLog

	mu    sync.Mutex
	slots map[EntityID]*observerSlot

	discarded atomic.Uint64
}

// NewBatchQueryScheduler creates a scheduler over the given provider.
// workers <= 0 selects one worker per CPU. log may be nil.
func NewBatchQueryScheduler(world WorldOcclusionProvider, workers int, log *SimLog) *BatchQueryScheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchQueryScheduler{
		world:   world,
		workers: workers,
		log:     log,
		slots:   make(map[EntityID]*observerSlot),
	}
}

func (b *BatchQueryScheduler) slot(observer EntityID) *observerSlot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.slots[observer]
	if !ok {
		s = &observerSlot{}
		b.slots[observer] = s
	}
	return s
}

// State returns the latest published snapshot for an observer, or nil if
// nothing has been published yet. Callers must treat nil and invalid
// snapshots as unknown.
func (b *BatchQueryScheduler) State(observer EntityID) *VisibilityState {
	b.mu.Lock()
	s, ok := b.slots[observer]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return s.state.Load()
}

// Discarded reports how many completed computations were dropped because a
// newer one for the same observer had already been requested or published.
func (b *BatchQueryScheduler) Discarded() uint64 {
	return b.discarded.Load()
}

type batchJob struct {
	req  QueryRequest
	slot *observerSlot
	seq  uint64
}

// RunBatch computes and publishes snapshots for every request, returning
// when the batch is done. Batches may overlap from different goroutines;
// the per-observer sequence stamps keep stale results from ever being
// published. A cancelled context abandons remaining work without
// publishing partial results.
func (b *BatchQueryScheduler) RunBatch(ctx context.Context, tick int, reqs []QueryRequest) {
	if len(reqs) == 0 {
		return
	}

	jobs := make([]batchJob, 0, len(reqs))
	for _, req := range reqs {
		s := b.slot(req.Observer)
		jobs = append(jobs, batchJob{req: req, slot: s, seq: s.requested.Add(1)})
	}

	workers := b.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	jobCh := make(chan batchJob)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for job := range jobCh {
				b.runJob(ctx, tick, job)
			}
		}()
	}
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()
}

func (b *BatchQueryScheduler) runJob(ctx context.Context, tick int, job batchJob) {
	label := fmt.Sprintf("E%d", job.req.Observer)

	if ctx.Err() != nil {
		b.discarded.Add(1)
		b.log.AddVerbose(tick, label, "batch", "cancelled", ctx.Err().Error(), 0)
		return
	}
	// A newer request already exists; computing this one would be wasted work.
	if job.slot.requested.Load() != job.seq {
		b.discarded.Add(1)
		b.log.AddVerbose(tick, label, "batch", "superseded", "skipped before compute", float64(job.seq))
		return
	}

	st := ComputeVisibilityState(job.req.Observer, job.req.Origin, job.req.Profile, job.req.Env, b.world, job.req.Now)

	if !job.slot.publish(job.seq, st) {
		b.discarded.Add(1)
		b.log.AddVerbose(tick, label, "batch", "superseded", "discarded after compute", float64(job.seq))
		return
	}
	b.log.AddVerbose(tick, label, "vision", "published",
		fmt.Sprintf("tiles=%d entities=%d", st.VisibleTileCount(), st.VisibleEntityCount()), float64(st.VisibleTileCount()))
}
