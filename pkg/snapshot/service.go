package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CallMeMhz/feature-gating/pkg/cache"
	"github.com/CallMeMhz/feature-gating/pkg/logger"
)

// DefaultCacheSize bounds the by-id cache when no size is configured.
const DefaultCacheSize = 256

const allProjects = ""

// Service creates and reads snapshots.
type Service struct {
	store    Store
	projects ProjectStore
	archiver Archiver
	log      *slog.Logger
	now      func() time.Time

	byID  *cache.LRU[string, Snapshot]
	lists *cache.LRU[string, []Snapshot]
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithArchiver copies every created snapshot to a.
func WithArchiver(a Archiver) ServiceOption {
	return func(s *Service) { s.archiver = a }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCacheSize sets the capacity of the by-id and listing caches.
func WithCacheSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.byID = cache.New[string, Snapshot](n)
			s.lists = cache.New[string, []Snapshot](n)
		}
	}
}

// WithNow overrides the clock used to stamp new snapshots.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a snapshot service over store and projects.
func NewService(store Store, projects ProjectStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		projects: projects,
		log:      logger.Discard(),
		now:      time.Now,
		byID:     cache.New[string, Snapshot](DefaultCacheSize),
		lists:    cache.New[string, []Snapshot](DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create renders the project into a new snapshot. Archive failures are
// logged and do not fail the call.
func (s *Service) Create(ctx context.Context, projectID, remark, updatedBy string) (Snapshot, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return Snapshot{}, err
	}

	doc, err := Render(p, updatedBy, remark)
	if err != nil {
		return Snapshot{}, fmt.Errorf("render snapshot: %w", err)
	}

	snap, err := s.store.Insert(ctx, Snapshot{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		YAML:        doc,
		UpdatedBy:   updatedBy,
		UpdatedAt:   s.now().UTC(),
		Remark:      remark,
	})
	if err != nil {
		return Snapshot{}, err
	}

	s.lists.Purge()
	s.byID.Put(snap.ID, snap)

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, snap); err != nil {
			s.log.ErrorContext(ctx, "snapshot archive failed",
				logger.SnapshotID(snap.ID),
				logger.ProjectID(snap.ProjectID),
				logger.Error(err),
			)
		}
	}

	s.log.InfoContext(ctx, "snapshot created",
		logger.SnapshotID(snap.ID),
		logger.ProjectID(snap.ProjectID),
	)
	return snap, nil
}

// Get returns the snapshot with the given id, cached after the first read.
func (s *Service) Get(ctx context.Context, id string) (Snapshot, error) {
	if snap, ok := s.byID.Get(id); ok {
		return snap, nil
	}
	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	s.byID.Put(id, snap)
	return snap, nil
}

// List returns the project's snapshots, newest first.
func (s *Service) List(ctx context.Context, projectID string) ([]Snapshot, error) {
	return s.cachedList(projectID, func() ([]Snapshot, error) {
		return s.store.ListByProject(ctx, projectID)
	})
}

// ListAll returns every snapshot, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Snapshot, error) {
	return s.cachedList(allProjects, func() ([]Snapshot, error) {
		return s.store.ListAll(ctx)
	})
}

func (s *Service) cachedList(key string, load func() ([]Snapshot, error)) ([]Snapshot, error) {
	if list, ok := s.lists.Get(key); ok {
		return list, nil
	}
	list, err := load()
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []Snapshot{}
	}
	s.lists.Put(key, list)
	return list, nil
}
