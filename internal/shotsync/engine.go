package shotsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/attract-vse/attract/internal/attractapi"
	"github.com/attract-vse/attract/internal/strips"
)

const (
	DefaultShotTypeName = "shot"
	DefaultPageSize     = 100
)

type EngineOptions struct {
	ShotTypeName    string
	PageSize        int
	FollowPages     bool
	PrefetchWorkers int
	Logger          Logger
}

type Logger interface {
	Printf(format string, args ...any)
}

// Engine links strips to shot nodes. Local strips change only after the
// remote side confirms, then they are written back to the store.
type Engine struct {
	client          attractapi.Client
	store           strips.Store
	shotTypeName    string
	pageSize        int
	followPages     bool
	prefetchWorkers int
	logger          Logger
	locks           *keyedLocks
	stripLocks      *keyedLocks
}

func NewEngine(client attractapi.Client, store strips.Store, opts EngineOptions) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if store == nil {
		return nil, fmt.Errorf("strip store is required")
	}
	shotTypeName := strings.TrimSpace(opts.ShotTypeName)
	if shotTypeName == "" {
		shotTypeName = DefaultShotTypeName
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	prefetch := opts.PrefetchWorkers
	if prefetch < 0 {
		prefetch = 0
	}
	return &Engine{
		client:          client,
		store:           store,
		shotTypeName:    shotTypeName,
		pageSize:        pageSize,
		followPages:     opts.FollowPages,
		prefetchWorkers: prefetch,
		logger:          opts.Logger,
		locks:           newKeyedLocks(),
		stripLocks:      newKeyedLocks(),
	}, nil
}

// Create submits an unlinked movie or image strip as a new shot. A strip
// that is already linked is left alone. The kind is checked first, so a
// linked strip of another kind still reports ErrUnsupportedStrip; neither
// case reaches the tracker.
func (e *Engine) Create(ctx context.Context, strip *strips.Strip) error {
	if strip == nil {
		return strips.ErrInvalidInput
	}
	if !strip.Supported() {
		return fmt.Errorf("%w: %s is %q", ErrUnsupportedStrip, strip.ID, strip.Kind)
	}
	if strip.Bound() {
		return nil
	}
	shotType, err := e.resolveShotType(ctx)
	if err != nil {
		return err
	}
	user, err := e.resolveUser(ctx)
	if err != nil {
		return err
	}

	cutIn := strip.Position.OffsetStart
	node := attractapi.Node{
		NodeType:    shotType.ID,
		Name:        strip.Name,
		Description: "",
		Order:       0,
		User:        user,
		Properties: attractapi.NodeProperties{
			Status: attractapi.StatusOnHold,
			Notes:  "",
			CutIn:  cutIn,
			CutOut: cutIn + strip.Position.FinalDuration,
		},
	}
	created, err := e.client.CreateNode(ctx, node)
	if err != nil {
		return fmt.Errorf("create shot for %s: %w", strip.ID, err)
	}

	e.logf("created shot %s for strip %s", created.ID, strip.ID)
	return e.commit(ctx, strip, func(s *strips.Strip) {
		s.Binding = strips.Binding{
			RemoteID:    created.ID,
			IsSynced:    true,
			Name:        created.Name,
			Description: created.Description,
			Notes:       created.Properties.Notes,
			CutIn:       created.Properties.CutIn,
			CutOut:      created.Properties.CutOut,
			Status:      strips.Status(created.Properties.Status),
			Order:       created.Order,
		}
	})
}

// Relink binds the strip to an existing shot and pulls its fields. A missing
// shot leaves the strip untouched.
func (e *Engine) Relink(ctx context.Context, strip *strips.Strip, remoteID string) error {
	if strip == nil {
		return strips.ErrInvalidInput
	}
	remoteID = strings.TrimSpace(remoteID)
	node, err := e.client.GetNode(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("relink %s to %s: %w", strip.ID, remoteID, err)
	}

	e.logf("relinked strip %s to shot %s", strip.ID, node.ID)
	return e.commit(ctx, strip, func(s *strips.Strip) {
		s.Binding.RemoteID = node.ID
		s.Binding.IsSynced = true
		s.Binding.Name = node.Name
		s.Binding.Description = node.Description
		s.Binding.Notes = node.Properties.Notes
		s.Binding.Status = strips.Status(node.Properties.Status)
		s.Binding.CutIn = node.Properties.CutIn
		s.Binding.CutOut = node.Properties.CutOut
	})
}

// Update pushes the strip's name, description and cut range to its shot.
func (e *Engine) Update(ctx context.Context, strip *strips.Strip) error {
	if strip == nil {
		return strips.ErrInvalidInput
	}
	if !strip.Bound() {
		return fmt.Errorf("%w: %s", ErrNotBound, strip.ID)
	}
	remoteID := strip.Binding.RemoteID
	unlock := e.locks.Lock(remoteID)
	defer unlock()

	cutOut := strip.Binding.CutIn + strip.Position.FinalDuration - 1
	node, err := e.client.GetNode(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("update %s: %w", strip.ID, err)
	}
	node.Name = strip.Binding.Name
	node.Description = strip.Binding.Description
	node.Properties.CutIn = strip.Binding.CutIn
	node.Properties.CutOut = cutOut
	if _, err := e.client.UpdateNode(ctx, node); err != nil {
		return fmt.Errorf("update %s: %w", strip.ID, err)
	}

	pushed := node
	return e.commit(ctx, strip, func(s *strips.Strip) {
		if s.Binding.RemoteID != remoteID {
			return
		}
		s.Binding.Name = pushed.Name
		s.Binding.Description = pushed.Description
		s.Binding.CutIn = pushed.Properties.CutIn
		s.Binding.CutOut = pushed.Properties.CutOut
	})
}

// Delete removes the shot and clears the binding once the remote delete
// succeeded.
func (e *Engine) Delete(ctx context.Context, strip *strips.Strip) error {
	if strip == nil {
		return strips.ErrInvalidInput
	}
	if !strip.Bound() {
		return fmt.Errorf("%w: %s", ErrNotBound, strip.ID)
	}
	remoteID := strip.Binding.RemoteID
	unlock := e.locks.Lock(remoteID)
	defer unlock()

	node, err := e.client.GetNode(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", strip.ID, err)
	}
	if err := e.client.DeleteNode(ctx, node); err != nil {
		return fmt.Errorf("delete %s: %w", strip.ID, err)
	}

	e.logf("deleted shot %s for strip %s", node.ID, strip.ID)
	return e.commit(ctx, strip, func(s *strips.Strip) {
		if s.Binding.RemoteID == remoteID {
			s.Unbind()
		}
	})
}

// Unlink forgets the shot locally. The remote node is not touched.
func (e *Engine) Unlink(ctx context.Context, strip *strips.Strip) error {
	if strip == nil {
		return strips.ErrInvalidInput
	}
	return e.commit(ctx, strip, func(s *strips.Strip) {
		s.Unbind()
	})
}

// CheckConnection lists node types to confirm the endpoint and token work.
func (e *Engine) CheckConnection(ctx context.Context) error {
	_, err := e.client.ListNodeTypes(ctx, attractapi.Query{MaxResults: 1})
	return err
}

func (e *Engine) resolveShotType(ctx context.Context) (attractapi.NodeType, error) {
	page, err := e.client.ListNodeTypes(ctx, attractapi.Query{
		Where: map[string]any{"name": e.shotTypeName},
	})
	if err != nil {
		return attractapi.NodeType{}, fmt.Errorf("resolve node type %q: %w", e.shotTypeName, err)
	}
	if len(page.Items) == 0 || strings.TrimSpace(page.Items[0].ID) == "" {
		return attractapi.NodeType{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, e.shotTypeName)
	}
	return page.Items[0], nil
}

func (e *Engine) resolveUser(ctx context.Context) (string, error) {
	token := strings.TrimSpace(e.client.SessionToken())
	if token == "" {
		return "", ErrAuthResolutionFailed
	}
	page, err := e.client.ListTokens(ctx, attractapi.Query{
		Where: map[string]any{"token": token},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthResolutionFailed, err)
	}
	if len(page.Items) == 0 || strings.TrimSpace(page.Items[0].User) == "" {
		return "", ErrAuthResolutionFailed
	}
	return page.Items[0].User, nil
}

// commit applies change to the stored copy of strip and writes it back, so
// fields owned by the host or by a concurrent operation survive. strip is
// replaced with what was written. A strip the store does not hold yet is
// written from the caller's copy.
func (e *Engine) commit(ctx context.Context, strip *strips.Strip, change func(*strips.Strip)) error {
	unlock := e.stripLocks.Lock(strip.ID)
	defer unlock()

	current, err := e.store.Get(ctx, strip.ID)
	if errors.Is(err, strips.ErrStripNotFound) {
		current = *strip
	} else if err != nil {
		return fmt.Errorf("load strip %s: %w", strip.ID, err)
	}
	change(&current)
	if err := e.store.Put(ctx, current); err != nil {
		return fmt.Errorf("persist strip %s: %w", strip.ID, err)
	}
	*strip = current
	return nil
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Printf(format, args...)
}
