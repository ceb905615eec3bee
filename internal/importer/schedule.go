package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Meltveit/qrydex/infrastructure/logger"
)

// BatchRunner is one schedulable bot.
type BatchRunner interface {
	Name() string
	RunBatch(ctx context.Context) (*BatchResult, error)
}

// Scheduler runs bots on cron expressions. A bot whose previous batch is
// still running skips the tick.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	log    logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	bots   map[string]cron.EntryID
}

// NewScheduler creates a Scheduler for standard 5-field expressions.
func NewScheduler(log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(logger.String("component", "import_scheduler"))

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   c,
		parser: parser,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		bots:   make(map[string]cron.EntryID),
	}
}

// Add schedules bot. Adding a bot name twice replaces the earlier entry.
func (s *Scheduler) Add(spec string, bot BatchRunner) error {
	sched, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	name := bot.Name()
	id, err := s.cron.AddFunc(spec, func() {
		if _, runErr := bot.RunBatch(s.ctx); runErr != nil && s.ctx.Err() == nil {
			s.log.Error("Scheduled import batch failed",
				logger.String("bot", name),
				logger.Error(runErr),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	s.mu.Lock()
	if prev, ok := s.bots[name]; ok {
		s.cron.Remove(prev)
	}
	s.bots[name] = id
	s.mu.Unlock()

	s.log.Info("Import bot scheduled",
		logger.String("bot", name),
		logger.String("schedule", spec),
		logger.Time("next_run", sched.Next(time.Now())),
	)
	return nil
}

// Len returns the number of scheduled bots.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bots)
}

// Start begins running scheduled bots in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running batches and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Import scheduler stopped")
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
