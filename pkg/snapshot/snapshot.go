// Package snapshot renders feature-gate projects into YAML snapshots and
// stores them.
//
// A snapshot document has three top-level keys in this order:
//
//	snapshot: {updated_by, remark}
//	project:  {id, name, created_at}
//	items:    the project's items as stored
//
// Snapshots are immutable once created. Reads by id are served from an LRU
// cache; per-project and global listings are cached until the next Create.
package snapshot

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("snapshot not found")
	ErrProjectNotFound = errors.New("project not found")
)

// Snapshot is a stored YAML rendering of a project.
type Snapshot struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name,omitempty"`
	YAML        string    `json:"yaml"`
	UpdatedBy   string    `json:"updated_by"`
	UpdatedAt   time.Time `json:"updated_at"`
	Remark      string    `json:"remark"`
}

// Project is the read-only source of a snapshot. Items are rendered as
// stored; ordered documents keep their key order.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Items     []any
}
