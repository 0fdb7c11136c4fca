package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var (
	ErrJobRunning = errors.New("job is already running")
	ErrUnknownJob = errors.New("unknown job")
)

// JobFunc is a unit of scheduled work.
type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	spec     string
	schedule cron.Schedule
	run      JobFunc
	eager    bool
	// held for the duration of a run; a trigger that cannot take it is skipped
	mu sync.Mutex
}

// Scheduler owns a set of named jobs and triggers them on cron schedules.
// Nothing runs until Start is called, and Stop waits for in-flight runs.
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Entry

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	eagerWg sync.WaitGroup
}

func NewScheduler(logger *logrus.Logger) *Scheduler {
	log := logger.WithField("component", "scheduler")
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:  log,
		jobs: make(map[string]*job),
	}
}

// Register adds a job. spec is a five-field cron expression or a descriptor such
// as "@hourly" or "@every 5m". Eager jobs also run once as soon as Start is called.
func (s *Scheduler) Register(name, spec string, fn JobFunc, eager bool) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("parsing schedule %q for job %s: %w", spec, name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}

	j := &job{name: name, spec: spec, schedule: schedule, run: fn, eager: eager}
	s.jobs[name] = j
	s.order = append(s.order, name)

	if s.running {
		s.cron.Schedule(schedule, s.cronJob(j))
	}
	return nil
}

// Start schedules every registered job and fires the eager ones. Calling Start
// on a running scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for _, name := range s.order {
		j := s.jobs[name]
		s.cron.Schedule(j.schedule, s.cronJob(j))
		s.log.WithFields(logrus.Fields{"job": j.name, "schedule": j.spec}).Info("job scheduled")
	}
	s.cron.Start()

	for _, name := range s.order {
		j := s.jobs[name]
		if !j.eager {
			continue
		}
		s.eagerWg.Add(1)
		go func(ctx context.Context) {
			defer s.eagerWg.Done()
			s.runJob(ctx, j)
		}(s.ctx)
	}
}

// Stop halts future triggers and blocks until running jobs return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.eagerWg.Wait()
	cancel()

	// Start re-adds entries, so clear the ones from this run.
	for _, e := range s.cron.Entries() {
		s.cron.Remove(e.ID)
	}
	s.log.Info("scheduler stopped")
}

// RunNow runs the named job synchronously, subject to the same overlap guard
// as scheduled triggers.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.runJob(ctx, j)
}

func (s *Scheduler) cronJob(j *job) cron.Job {
	return cron.FuncJob(func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		s.runJob(ctx, j)
	})
}

// runJob is shared by cron triggers, eager starts and RunNow. The cron chain
// already serializes cron triggers, but eager and manual runs only go
// through the per-job lock here.
func (s *Scheduler) runJob(ctx context.Context, j *job) (err error) {
	log := s.log.WithField("job", j.name)

	if !j.mu.TryLock() {
		jobSkipped.WithLabelValues(j.name).Inc()
		log.Warn("previous run still in progress, skipping")
		return ErrJobRunning
	}
	defer j.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
			log.WithField("panic", r).Error("job panicked")
		}
		jobDuration.WithLabelValues(j.name).Observe(time.Since(start).Seconds())
	}()

	err = j.run(ctx)
	if err != nil {
		log.WithError(err).Error("job failed")
		return err
	}
	log.WithField("duration", time.Since(start).String()).Debug("job finished")
	return nil
}

type cronLogger struct {
	log *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(toFields(keysAndValues)).WithError(err).Error(msg)
}

func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
