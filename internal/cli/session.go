package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/attract-vse/attract/internal/attractapi"
	"github.com/attract-vse/attract/internal/shotsync"
	"github.com/attract-vse/attract/internal/strips"
)

// session is the client, store and engine built from a resolved Config.
type session struct {
	cfg    Config
	client *attractapi.HTTPClient
	store  strips.Store
	engine *shotsync.Engine
}

func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg := opts.Config
	store, err := strips.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("open strip store %q", cfg.Store), err)
	}
	client := attractapi.NewHTTPClientWithOptions(cfg.Server, cfg.Token, &http.Client{Timeout: cfg.Timeout}, attractapi.HTTPClientOptions{
		MaxRetries: cfg.MaxRetries,
	})
	engine, err := shotsync.NewEngine(client, store, shotsync.EngineOptions{
		ShotTypeName:    cfg.ShotType,
		PageSize:        cfg.PageSize,
		FollowPages:     cfg.FollowPages,
		PrefetchWorkers: cfg.PrefetchWorkers,
		Logger:          printfLogger{logger: &opts.Logger},
	})
	if err != nil {
		_ = store.Close()
		return nil, WrapExitError(ExitCommandError, "initialize sync engine", err)
	}
	return &session{cfg: cfg, client: client, store: store, engine: engine}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// run executes req with the configured per-operation timeout.
func (s *session) run(ctx context.Context, req shotsync.Request) shotsync.Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.engine.Execute(ctx, req)
}

type stripView struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Kind       strips.Kind          `json:"kind"`
	Linked     bool                 `json:"linked"`
	Binding    strips.Binding       `json:"binding"`
	Status     string               `json:"status_label,omitempty"`
	Operations []shotsync.Operation `json:"operations"`
}

func newStripView(strip strips.Strip) stripView {
	ops := shotsync.AvailableOperations(strip)
	if ops == nil {
		ops = []shotsync.Operation{}
	}
	return stripView{
		ID:         strip.ID,
		Name:       strip.Name,
		Kind:       strip.Kind,
		Linked:     strip.Bound(),
		Binding:    strip.Binding,
		Status:     strip.Binding.Status.Label(),
		Operations: ops,
	}
}

func (v stripView) lines() []string {
	lines := []string{fmt.Sprintf("Strip %s (%s, %s)", v.ID, v.Name, v.Kind)}
	if !v.Linked {
		lines = append(lines, "  not linked")
	} else {
		b := v.Binding
		lines = append(lines,
			"  shot:        "+b.RemoteID,
			"  name:        "+b.Name,
			"  description: "+b.Description,
			"  notes:       "+b.Notes,
			"  status:      "+v.Status,
			fmt.Sprintf("  cut in:      %d", b.CutIn),
			fmt.Sprintf("  cut out:     %d", b.CutOut),
			fmt.Sprintf("  order:       %d", b.Order),
			fmt.Sprintf("  synced:      %t", b.IsSynced),
		)
	}
	names := make([]string, 0, len(v.Operations))
	for _, op := range v.Operations {
		names = append(names, string(op))
	}
	if len(names) == 0 {
		names = append(names, "none")
	}
	return append(lines, "  operations:  "+strings.Join(names, ", "))
}
