package snapshot

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store persists snapshots.
type Store interface {
	// Insert stores s and returns it with its assigned ID.
	Insert(ctx context.Context, s Snapshot) (Snapshot, error)
	Get(ctx context.Context, id string) (Snapshot, error)
	// ListByProject returns the project's snapshots, newest first.
	ListByProject(ctx context.Context, projectID string) ([]Snapshot, error)
	// ListAll returns every snapshot, newest first.
	ListAll(ctx context.Context) ([]Snapshot, error)
}

// ProjectStore reads projects.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (Project, error)
}

// MemoryStore is a Store for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots []Snapshot
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, snap Snapshot) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.ID = bson.NewObjectID().Hex()
	s.snapshots = append(s.snapshots, snap)
	return snap, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.snapshots, func(x Snapshot) bool { return x.ID == id })
	if i < 0 {
		return Snapshot{}, ErrNotFound
	}
	return s.snapshots[i], nil
}

func (s *MemoryStore) ListByProject(_ context.Context, projectID string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Snapshot
	for _, x := range s.snapshots {
		if x.ProjectID == projectID {
			out = append(out, x)
		}
	}
	return newestFirst(out), nil
}

func (s *MemoryStore) ListAll(context.Context) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(slices.Clone(s.snapshots)), nil
}

// newestFirst sorts by UpdatedAt descending; insertion order breaks ties,
// later first.
func newestFirst(in []Snapshot) []Snapshot {
	slices.Reverse(in)
	slices.SortStableFunc(in, func(a, b Snapshot) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return in
}

// MemoryProjects is a ProjectStore backed by a map.
type MemoryProjects struct {
	mu       sync.RWMutex
	projects map[string]Project
}

// NewMemoryProjects returns a project store seeded with projects.
func NewMemoryProjects(projects ...Project) *MemoryProjects {
	m := &MemoryProjects{projects: make(map[string]Project, len(projects))}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

// Put adds or replaces a project.
func (m *MemoryProjects) Put(p Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
}

func (m *MemoryProjects) GetProject(_ context.Context, id string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return Project{}, ErrProjectNotFound
	}
	return p, nil
}

// Projects lists the stored projects sorted by name.
func (m *MemoryProjects) Projects() []Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Project) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
