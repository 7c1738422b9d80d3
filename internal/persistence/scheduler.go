package persistence

import (
	"clarity/internal/localdb"
	"clarity/internal/persistence/interfaces"
	"clarity/internal/providers"
	"clarity/internal/structures"
	"context"
	"sync"
	"time"

	"github.com/roylee0704/gron"
)

const jobTimeout = 30 * time.Second

type Scheduler struct {
	config    *structures.Config
	logger    providers.Logger
	snapshots *SnapshotManager
	db        *localdb.LocalDB
	cron      *gron.Cron
	opsMu     sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Persistence.SaveInterval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		_ = s.Persist(ctx)
	})

	if sweep := s.config.Persistence.SweepInterval; sweep > 0 {
		s.cron.AddFunc(gron.Every(sweep), func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			s.Sweep(ctx)
		})
	}

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) Restore(ctx context.Context) error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	n, err := s.snapshots.Load(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Infof(providers.TypeApp, "Restored %d cached queries", n)
	}
	return nil
}

func (s *Scheduler) Persist(ctx context.Context) error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	if err := s.snapshots.Save(ctx); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting query state: %s", err)
		return err
	}
	s.logger.Debugf(providers.TypeApp, "Persisted query state")
	return nil
}

// Sweep drops expired generic cache entries.
func (s *Scheduler) Sweep(ctx context.Context) {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	if !s.db.Available() {
		return
	}
	n, err := s.db.SweepExpired(ctx)
	if err != nil {
		s.logger.Warnf(providers.TypeCache, "Cache sweep failed: %s", err)
		return
	}
	if n > 0 {
		s.logger.Infof(providers.TypeCache, "Swept %d expired cache entries", n)
	}
}

func NewScheduler(config *structures.Config, logger providers.Logger, snapshots *SnapshotManager, db *localdb.LocalDB) interfaces.SchedulerInterface {
	return &Scheduler{
		config:    config,
		logger:    logger,
		snapshots: snapshots,
		db:        db,
	}
}
