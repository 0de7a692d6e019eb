package metrics

import (
	"sync"
	"time"

	"bitcoin-gains/internal/logger"
)

// Tracker records how long each pipeline stage took, how many items it
// handled, and the spread of per-transaction ledger times.
type Tracker struct {
	mu sync.Mutex

	stages   []StageTiming
	counters map[string]int64
	order    []string

	MinStep   time.Duration
	MaxStep   time.Duration
	TotalStep time.Duration
	StepCount int64
	StartTime time.Time
}

type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// Summary is the JSON form written alongside the audit export.
type Summary struct {
	Stages    []StageTiming    `json:"stages"`
	Counters  map[string]int64 `json:"counters"`
	StepMinUS int64            `json:"step_min_us"`
	StepMaxUS int64            `json:"step_max_us"`
	StepAvgUS int64            `json:"step_avg_us"`
	Elapsed   time.Duration    `json:"elapsed_ns"`
}

func NewTracker() *Tracker {
	return &Tracker{
		counters:  make(map[string]int64),
		MinStep:   time.Duration(1<<63 - 1),
		StartTime: time.Now(),
	}
}

// Stage starts timing name; call the returned func when it is done.
func (t *Tracker) Stage(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		t.mu.Lock()
		t.stages = append(t.stages, StageTiming{Name: name, Duration: d})
		t.mu.Unlock()
		logger.Debug("Stage finished", "stage", name, "duration_ms", d.Milliseconds())
	}
}

func (t *Tracker) Count(name string, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.counters[name]; !ok {
		t.order = append(t.order, name)
	}
	t.counters[name] += int64(n)
}

// TrackStep records the time spent applying one transaction.
func (t *Tracker) TrackStep(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.StepCount++
	t.TotalStep += duration
	if duration < t.MinStep {
		t.MinStep = duration
	}
	if duration > t.MaxStep {
		t.MaxStep = duration
	}
}

func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{
		Stages:   append([]StageTiming(nil), t.stages...),
		Counters: make(map[string]int64, len(t.counters)),
		Elapsed:  time.Since(t.StartTime),
	}
	for k, v := range t.counters {
		s.Counters[k] = v
	}
	if t.StepCount > 0 {
		s.StepMinUS = t.MinStep.Microseconds()
		s.StepMaxUS = t.MaxStep.Microseconds()
		s.StepAvgUS = (t.TotalStep / time.Duration(t.StepCount)).Microseconds()
	}
	return s
}

// Log writes the run metrics as one structured line.
func (t *Tracker) Log() {
	s := t.Summary()

	t.mu.Lock()
	args := make([]any, 0, 2*(len(s.Stages)+len(t.order))+8)
	for _, st := range s.Stages {
		args = append(args, st.Name+"_ms", st.Duration.Milliseconds())
	}
	for _, name := range t.order {
		args = append(args, name, s.Counters[name])
	}
	t.mu.Unlock()

	args = append(args,
		"step_min_us", s.StepMinUS,
		"step_max_us", s.StepMaxUS,
		"step_avg_us", s.StepAvgUS,
		"elapsed_ms", s.Elapsed.Milliseconds(),
	)
	logger.Info("Run Metrics", args...)
}
