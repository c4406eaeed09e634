package scheduler

import (
	"context"
	"sync"
	"time"

	perr "eventsink/internal/platform/errors"
	"eventsink/internal/platform/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"k8s.io/utils/clock"
)

// spooledJob is one persisted job; times are unix milliseconds
type spooledJob struct {
	ID          uint   `gorm:"primaryKey"`
	Kind        string `gorm:"index;size:64"`
	Payload     []byte
	DueAt       int64 `gorm:"index"`
	LeasedUntil int64 `gorm:"index"`
	Attempts    int
	LastError   string `gorm:"type:text"`
	CreatedAt   time.Time
}

func (spooledJob) TableName() string { return "scheduled_jobs" }

// SpoolOptions tunes the poll loop
type SpoolOptions struct {
	Poll  time.Duration // default 1s
	Lease time.Duration // default 5m, must outlive one handler run
	Batch int           // jobs leased per poll, default 16
	Clock clock.WithTicker
}

func (o SpoolOptions) withDefaults() SpoolOptions {
	if o.Poll <= 0 {
		o.Poll = time.Second
	}
	if o.Lease <= 0 {
		o.Lease = 5 * time.Minute
	}
	if o.Batch <= 0 {
		o.Batch = 16
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
	return o
}

// Spool is a durable scheduler backed by a SQLite file
type Spool struct {
	Mux

	db   *gorm.DB
	opt  SpoolOptions
	log  *logger.Logger
	base context.Context
	stop context.CancelFunc
	loop sync.WaitGroup
	jobs sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// OpenSpool opens (or creates) the spool database at path
func OpenSpool(path string, opt SpoolOptions) (*Spool, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeConfiguration, "open spool %s", path)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfiguration, "spool handle")
	}
	// one writer; sqlite serializes anyway and this avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&spooledJob{}); err != nil {
		_ = sqlDB.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeConfiguration, "migrate spool")
	}
	return &Spool{
		db:   db,
		opt:  opt.withDefaults(),
		log:  logger.Named("scheduler"),
		base: context.Background(),
	}, nil
}

func (s *Spool) nowMs() int64 { return s.opt.Clock.Now().UnixMilli() }

// ScheduleAfter persists job with a due time of now+delay
func (s *Spool) ScheduleAfter(ctx context.Context, delay time.Duration, job Job) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	row := spooledJob{
		Kind:    job.Kind,
		Payload: job.Payload,
		DueAt:   s.nowMs() + delay.Milliseconds(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "spool insert")
	}
	return nil
}

// Start launches the poll loop. Handlers inherit ctx values but not its
// cancellation: Close lets running jobs finish
func (s *Spool) Start(ctx context.Context) error {
	s.base = context.WithoutCancel(ctx)
	ctx, cancel := context.WithCancel(ctx)
	s.stop = cancel

	if n, err := s.Backlog(ctx); err == nil && n > 0 {
		s.log.Info().Int64("jobs", n).Msg("spool has jobs from a previous run")
	}

	s.loop.Add(1)
	go func() {
		defer s.loop.Done()
		tk := s.opt.Clock.NewTicker(s.opt.Poll)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C():
				if _, err := s.pollOnce(ctx); err != nil && ctx.Err() == nil {
					s.log.Error().Err(err).Msg("spool poll failed")
				}
			}
		}
	}()
	return nil
}

// pollOnce leases due jobs and dispatches each on its own goroutine
func (s *Spool) pollOnce(ctx context.Context) (int, error) {
	leased, err := s.lease(ctx)
	if err != nil {
		return 0, err
	}
	for _, j := range leased {
		s.jobs.Add(1)
		go func(j spooledJob) {
			defer s.jobs.Done()
			s.run(s.base, j)
		}(j)
	}
	return len(leased), nil
}

// lease claims due jobs whose lease is free or expired
func (s *Spool) lease(ctx context.Context) ([]spooledJob, error) {
	now := s.nowMs()
	until := now + s.opt.Lease.Milliseconds()

	var out []spooledJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var due []spooledJob
		if err := tx.Where("due_at <= ? AND leased_until <= ?", now, now).
			Order("due_at asc, id asc").
			Limit(s.opt.Batch).
			Find(&due).Error; err != nil {
			return err
		}
		for _, j := range due {
			res := tx.Model(&spooledJob{}).
				Where("id = ? AND leased_until <= ?", j.ID, now).
				Updates(map[string]any{"leased_until": until, "attempts": gorm.Expr("attempts + 1")})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				j.LeasedUntil = until
				j.Attempts++
				out = append(out, j)
			}
		}
		return nil
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "spool lease")
	}
	return out, nil
}

func (s *Spool) run(ctx context.Context, j spooledJob) {
	err := s.Dispatch(ctx, Job{Kind: j.Kind, Payload: j.Payload})
	db := s.db.WithContext(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("kind", j.Kind).Uint("job_id", j.ID).Int("attempts", j.Attempts).
			Msg("spooled job failed; redelivered after lease expiry")
		_ = db.Model(&spooledJob{}).Where("id = ?", j.ID).Update("last_error", err.Error()).Error
		return
	}
	if err := db.Delete(&spooledJob{}, j.ID).Error; err != nil {
		s.log.Error().Err(err).Uint("job_id", j.ID).Msg("spool ack failed; job will run again")
	}
}

// Backlog counts persisted jobs, leased or not
func (s *Spool) Backlog(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&spooledJob{}).Count(&n).Error
	return n, err
}

// Close stops polling, waits for running handlers and closes the database
func (s *Spool) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.stop != nil {
		s.stop()
	}
	s.loop.Wait()
	s.jobs.Wait()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
