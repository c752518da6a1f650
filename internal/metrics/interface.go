package metrics

import (
	"context"
	"time"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, snapshot *TransitionSnapshot) error
	Recent(limit int) ([]TransitionSnapshot, error)
	Close() error
}

// Repository defines the interface for transition storage
type Repository interface {
	Record(snapshot *TransitionSnapshot) error
	Recent(limit int) ([]TransitionSnapshot, error)
	Close() error
}

// TransitionSnapshot is one controller operation as stored in the history.
type TransitionSnapshot struct {
	Timestamp time.Time
	RunID     string
	Operation string
	From      int
	To        int
	Forced    bool
	Docked    bool
	Error     string
}
