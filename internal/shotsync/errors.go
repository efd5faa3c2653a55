package shotsync

import "errors"

var (
	ErrSchemaNotFound       = errors.New("shot node type not found")
	ErrAuthResolutionFailed = errors.New("could not resolve user for session token")
	ErrUnsupportedStrip     = errors.New("strip kind cannot carry a shot")
	ErrNotBound             = errors.New("strip is not linked to a shot")
	ErrUnknownOperation     = errors.New("unknown operation")
	ErrRunnerClosed         = errors.New("runner closed")
	ErrQueueFull            = errors.New("runner queue full")
)
