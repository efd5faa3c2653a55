package strips

import (
	"context"
	"errors"
)

var (
	ErrStripNotFound  = errors.New("strip not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotImplemented = errors.New("not implemented")
)

// Store persists strips keyed by ID. List returns strips in host order,
// which is the order they were first stored.
type Store interface {
	List(ctx context.Context) ([]Strip, error)
	Get(ctx context.Context, id string) (Strip, error)
	Put(ctx context.Context, strip Strip) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Watcher is implemented by stores whose contents can change underneath the
// process. The channel receives a value after each external change and is
// closed when ctx ends.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}
