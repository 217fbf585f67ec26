package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-tracker/internal/model"
	"research-tracker/internal/tracker/trackertest"
)

const testInterval = 10 * time.Second

type harness struct {
	clock  *trackertest.ManualClock
	sched  *trackertest.ManualScheduler
	store  *Store
	sim    *Simulator
	intake *Intake
}

func newHarness(t *testing.T, step StepFunc, confidence ConfidenceFunc) *harness {
	t.Helper()
	clock := trackertest.NewManualClock(time.Date(2025, time.January, 14, 9, 0, 0, 0, time.UTC))
	sched := trackertest.NewManualScheduler(clock)
	store := NewStore(clock)
	if confidence == nil {
		confidence = func() int { return 80 }
	}
	sim := NewSimulator(SimulatorOptions{
		Store:      store,
		Scheduler:  sched,
		Clock:      clock,
		Interval:   testInterval,
		Step:       step,
		Confidence: confidence,
	})
	seq := 0
	intake := NewIntake(IntakeOptions{
		Store:     store,
		Simulator: sim,
		Clock:     clock,
		NewID: func() string {
			seq++
			return fmt.Sprintf("job-%d", seq)
		},
	})
	return &harness{clock: clock, sched: sched, store: store, sim: sim, intake: intake}
}

func TestSubmitCreatesInProgressJobAtHead(t *testing.T) {
	t.Parallel()
	h := newHarness(t, trackertest.Steps(10), nil)

	job, err := h.intake.Submit("  Apple Inc. ")
	require.NoError(t, err)

	assert.Equal(t, "Apple Inc.", job.Name)
	assert.Equal(t, model.StatusInProgress, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Nil(t, job.Confidence)
	assert.Nil(t, job.CompletedAt)
	assert.Equal(t, h.clock.Now(), job.StartedAt)

	jobs := h.store.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
	assert.Equal(t, 1, h.sim.Active())
	assert.Equal(t, 1, h.sched.Pending())
}

func TestSubmitBlankIsNoop(t *testing.T) {
	t.Parallel()
	h := newHarness(t, trackertest.Steps(10), nil)
	_, err := h.intake.Submit("Existing Co.")
	require.NoError(t, err)
	before := h.store.Jobs()

	for _, raw := range []string{"", "   ", "\t\n "} {
		_, err := h.intake.Submit(raw)
		require.ErrorIs(t, err, ErrBlankQuery, "query %q", raw)
	}

	assert.Equal(t, before, h.store.Jobs())
	assert.Equal(t, 1, h.sim.Active())
}

func TestSubmitOrdersNewestFirst(t *testing.T) {
	t.Parallel()
	h := newHarness(t, trackertest.Steps(10), nil)

	a, err := h.intake.Submit("A")
	require.NoError(t, err)
	b, err := h.intake.Submit("B")
	require.NoError(t, err)

	jobs := h.store.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, []string{b.ID, a.ID}, []string{jobs[0].ID, jobs[1].ID})
	assert.Equal(t, []string{"B", "A"}, []string{jobs[0].Name, jobs[1].Name})
}

func TestSubmitAllowsDuplicateNamesWithUniqueIDs(t *testing.T) {
	t.Parallel()
	store := NewStore(nil)
	sched := trackertest.NewManualScheduler(trackertest.NewManualClock(time.Now()))
	sim := NewSimulator(SimulatorOptions{Store: store, Scheduler: sched})
	intake := NewIntake(IntakeOptions{Store: store, Simulator: sim})

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		job, err := intake.Submit("Tesla")
		require.NoError(t, err)
		require.False(t, seen[job.ID], "id %s reused", job.ID)
		seen[job.ID] = true
	}
	assert.Equal(t, 50, store.Len())
}

func TestTerminalTickCompletesJobOnce(t *testing.T) {
	t.Parallel()
	confidenceCalls := 0
	h := newHarness(t, trackertest.Steps(40, 40, 30), func() int {
		confidenceCalls++
		return 84
	})

	job, err := h.intake.Submit("Procter & Gamble Co.")
	require.NoError(t, err)

	h.sched.Advance(testInterval)
	got, _ := h.store.Get(job.ID)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, model.StatusInProgress, got.Status)

	h.sched.Advance(testInterval)
	got, _ = h.store.Get(job.ID)
	assert.Equal(t, 80, got.Progress)
	assert.Equal(t, model.StatusInProgress, got.Status)

	h.sched.Advance(testInterval)
	got, _ = h.store.Get(job.ID)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Confidence)
	assert.Equal(t, 84, *got.Confidence)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, h.clock.Now(), *got.CompletedAt)

	assert.Equal(t, 0, h.sched.Pending(), "no tick may follow the terminal tick")
	assert.Equal(t, 0, h.sim.Active())
	assert.Equal(t, 1, confidenceCalls)

	h.sched.Advance(10 * testInterval)
	after, _ := h.store.Get(job.ID)
	assert.Equal(t, got, after)
}

func TestLateTickDoesNotMutateCompletedJob(t *testing.T) {
	t.Parallel()
	h := newHarness(t, trackertest.Steps(100), nil)

	job, err := h.intake.Submit("Dell Technologies Inc.")
	require.NoError(t, err)
	h.sched.Advance(testInterval)
	done, _ := h.store.Get(job.ID)
	require.True(t, done.IsCompleted())

	h.clock.Add(time.Hour)
	assert.False(t, h.sim.Tick(job.ID))
	assert.False(t, h.sim.Tick(job.ID))

	after, _ := h.store.Get(job.ID)
	assert.Equal(t, done, after)
}

func TestProgressIsMonotonicAndBounded(t *testing.T) {
	t.Parallel()
	src := NewRandomSource(42)
	h := newHarness(t, UniformStep(src, DefaultMaxStep), UniformConfidence(src, model.MinConfidence, model.MaxConfidence))

	ids := make([]string, 0, 5)
	for _, name := range []string{"Apple Inc.", "Microsoft", "Tesla", "Nvidia", "Intel"} {
		job, err := h.intake.Submit(name)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	last := make(map[string]int, len(ids))
	for i := 0; i < 1000 && h.sched.Pending() > 0; i++ {
		h.sched.Advance(testInterval)
		for _, id := range ids {
			job, ok := h.store.Get(id)
			require.True(t, ok)
			require.GreaterOrEqual(t, job.Progress, last[id], "progress of %s went backwards", id)
			require.LessOrEqual(t, job.Progress, 100)
			last[id] = job.Progress
		}
	}

	snap := h.store.Snapshot()
	assert.Equal(t, 5, snap.Completed)
	assert.Equal(t, 0, snap.InProgress)
	for _, job := range snap.Jobs {
		assert.Equal(t, 100, job.Progress)
		require.NotNil(t, job.Confidence)
		assert.GreaterOrEqual(t, *job.Confidence, 70)
		assert.LessOrEqual(t, *job.Confidence, 89)
	}
}

func TestNegativeStepIsClamped(t *testing.T) {
	t.Parallel()
	h := newHarness(t, trackertest.Steps(20, -50, 5), nil)
	job, err := h.intake.Submit("Acme")
	require.NoError(t, err)

	h.sched.Advance(testInterval)
	h.sched.Advance(testInterval)
	got, _ := h.store.Get(job.ID)
	assert.Equal(t, 20, got.Progress)

	h.sched.Advance(testInterval)
	got, _ = h.store.Get(job.ID)
	assert.Equal(t, 25, got.Progress)
}

func TestStartIsIdempotentPerJob(t *testing.T) {
	t.Parallel()
	h := newHarness(t, trackertest.Steps(10), nil)
	job, err := h.intake.Submit("Acme")
	require.NoError(t, err)

	h.sim.Start(job.ID)
	h.sim.Start(job.ID)
	assert.Equal(t, 1, h.sched.Pending())
}

func TestTickForUnknownJobStops(t *testing.T) {
	t.Parallel()
	h := newHarness(t, trackertest.Steps(10), nil)
	h.sim.Start("ghost")
	h.sched.Advance(testInterval)

	assert.Equal(t, 0, h.sched.Pending())
	assert.Equal(t, 0, h.sim.Active())
}

func TestAdoptDemoHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t, trackertest.Steps(60), nil)

	for _, job := range DemoHistory() {
		require.NoError(t, h.intake.Adopt(job))
	}

	jobs := h.store.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "Procter & Gamble Co.", jobs[0].Name)
	assert.Equal(t, "Dell Technologies Inc.", jobs[1].Name)
	assert.Equal(t, 1, h.sim.Active())

	h.sched.Advance(testInterval)
	pg, _ := h.store.Get("demo-pg")
	assert.True(t, pg.IsCompleted())

	err := h.intake.Adopt(DemoHistory()[0])
	require.ErrorIs(t, err, ErrDuplicateID)
}

func TestStoreRejectsDuplicateAndUnknownIDs(t *testing.T) {
	t.Parallel()
	store := NewStore(nil)
	job := model.Job{ID: "x", Name: "X", Status: model.StatusInProgress, StartedAt: time.Now()}

	require.NoError(t, store.InsertAtHead(job))
	require.ErrorIs(t, store.InsertAtHead(job), ErrDuplicateID)

	_, err := store.Update("missing", func(*model.Job) error { return nil })
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreUpdateRejectsInvalidSuccessor(t *testing.T) {
	t.Parallel()
	store := NewStore(nil)
	start := time.Now()
	require.NoError(t, store.InsertAtHead(model.Job{ID: "x", Name: "X", Status: model.StatusInProgress, Progress: 30, StartedAt: start}))

	cases := map[string]func(*model.Job) error{
		"regression":     func(j *model.Job) error { j.Progress = 10; return nil },
		"overflow":       func(j *model.Job) error { j.Progress = 130; return nil },
		"rename":         func(j *model.Job) error { j.Name = "Y"; return nil },
		"bare complete":  func(j *model.Job) error { j.Status = model.StatusCompleted; return nil },
		"mutator failed": func(*model.Job) error { return fmt.Errorf("boom") },
	}
	for name, mutate := range cases {
		_, err := store.Update("x", mutate)
		require.Error(t, err, name)
		got, _ := store.Get("x")
		require.Equal(t, 30, got.Progress, name)
		require.Equal(t, "X", got.Name, name)
		require.Equal(t, model.StatusInProgress, got.Status, name)
	}
}

func TestStoreGuardSkipsMutatorForCompletedJob(t *testing.T) {
	t.Parallel()
	store := NewStore(nil)
	at := time.Now()
	conf := 77
	require.NoError(t, store.InsertAtHead(model.Job{
		ID: "done", Name: "Done", Status: model.StatusCompleted, Progress: 100,
		StartedAt: at, CompletedAt: &at, Confidence: &conf,
	}))

	called := false
	_, err := store.Update("done", func(*model.Job) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrJobCompleted)
	assert.False(t, called)
}

func TestSnapshotIsIsolatedFromStore(t *testing.T) {
	t.Parallel()
	h := newHarness(t, trackertest.Steps(100), nil)
	job, err := h.intake.Submit("Apple Inc.")
	require.NoError(t, err)
	h.sched.Advance(testInterval)

	snap := h.store.Snapshot()
	require.Len(t, snap.Jobs, 1)
	*snap.Jobs[0].Confidence = 1
	snap.Jobs[0].Name = "mutated"

	got, _ := h.store.Get(job.ID)
	assert.Equal(t, "Apple Inc.", got.Name)
	assert.Equal(t, 80, *got.Confidence)
	assert.Equal(t, 1, snap.Total)
	assert.Equal(t, 1, snap.Completed)
}

func TestSubscribeCoalescesNotifications(t *testing.T) {
	t.Parallel()
	h := newHarness(t, trackertest.Steps(10), nil)
	ch, cancel := h.store.Subscribe()

	_, err := h.intake.Submit("A")
	require.NoError(t, err)
	_, err = h.intake.Submit("B")
	require.NoError(t, err)

	select {
	case <-ch:
	default:
		t.Fatal("expected a change notification")
	}
	select {
	case <-ch:
		t.Fatal("expected notifications to coalesce")
	default:
	}

	cancel()
	cancel()
	_, err = h.intake.Submit("C")
	require.NoError(t, err)
	select {
	case <-ch:
		t.Fatal("no notification expected after cancel")
	default:
	}
}

func TestUniformStrategiesStayInRange(t *testing.T) {
	t.Parallel()
	src := trackertest.NewSequence(0, 0.5, 0.999999)
	step := UniformStep(src, 15)
	assert.Equal(t, 0, step())
	assert.Equal(t, 7, step())
	assert.Equal(t, 14, step())

	src = trackertest.NewSequence(0, 0.999999)
	conf := UniformConfidence(src, model.MinConfidence, model.MaxConfidence)
	assert.Equal(t, 70, conf())
	assert.Equal(t, 89, conf())

	narrowed := UniformConfidence(trackertest.NewSequence(0.999999), 10, 200)
	assert.Equal(t, 89, narrowed())
}

func TestSmallestStepBoundStillCompletes(t *testing.T) {
	t.Parallel()
	for _, bound := range []int{1, MinMaxStep} {
		src := NewRandomSource(11)
		h := newHarness(t, UniformStep(src, bound), nil)

		job, err := h.intake.Submit("Apple Inc.")
		require.NoError(t, err)
		h.sched.RunUntilIdle(testInterval, 10000)

		got, _ := h.store.Get(job.ID)
		assert.Equal(t, model.StatusCompleted, got.Status, "bound %d", bound)
		assert.Equal(t, 100, got.Progress, "bound %d", bound)
		assert.Equal(t, 0, h.sched.Pending(), "bound %d", bound)
	}

	step := UniformStep(trackertest.NewSequence(0.999999), 1)
	assert.Equal(t, MinMaxStep-1, step())
}

func TestLoopRunsWorkSerially(t *testing.T) {
	t.Parallel()
	loop := NewLoop(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = loop.Run(ctx)
	}()

	var mu sync.Mutex
	order := make([]int, 0, 4)
	done := make(chan struct{})
	for i := 1; i <= 3; i++ {
		n := i
		require.True(t, loop.Post(func() {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		}))
	}
	loop.AfterFunc(5*time.Millisecond, func() {
		mu.Lock()
		order = append(order, 4)
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timer")
	}
	mu.Lock()
	assert.Equal(t, []int{1, 2, 3, 4}, order)
	mu.Unlock()

	cancel()
	wg.Wait()
	<-loop.Stopped()
	assert.False(t, loop.Post(func() {}))
}

func TestLoopCallWaitsForResult(t *testing.T) {
	t.Parallel()
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = loop.Run(ctx)
	}()

	got := 0
	require.NoError(t, loop.Call(context.Background(), func() { got = 42 }))
	assert.Equal(t, 42, got)

	cancel()
	<-runDone
	assert.ErrorIs(t, loop.Call(context.Background(), func() {}), ErrLoopStopped)
}

func TestLoopDropsTimersFiringAfterStop(t *testing.T) {
	t.Parallel()
	loop := NewLoop(0)
	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = loop.Run(ctx)
	}()

	fired := make(chan struct{}, 1)
	loop.AfterFunc(20*time.Millisecond, func() { fired <- struct{}{} })
	cancel()
	<-runDone

	assert.False(t, loop.Post(func() {}))
	select {
	case <-fired:
		t.Fatal("timer ran after the loop stopped")
	case <-time.After(100 * time.Millisecond):
	}
}
