package shotsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/attract-vse/attract/internal/attractapi"
	"github.com/attract-vse/attract/internal/strips"
)

type StripOrder struct {
	StripID  string `json:"strip_id"`
	RemoteID string `json:"remote_id"`
	Order    int    `json:"order"`
}

// ReorderReport describes one reorder pass. On error it holds whatever was
// written before the pass stopped.
type ReorderReport struct {
	Ordered   []StripOrder `json:"ordered"`
	Unlinked  []string     `json:"unlinked"`
	Total     int          `json:"total"`
	Listed    int          `json:"listed"`
	Truncated bool         `json:"truncated"`
}

type fetchResult struct {
	node attractapi.Node
	err  error
}

// Reorder numbers every linked shot 1..N by timeline position. Strips whose
// shot has vanished remotely are unlinked and skipped.
func (e *Engine) Reorder(ctx context.Context) (ReorderReport, error) {
	report := ReorderReport{Ordered: []StripOrder{}, Unlinked: []string{}}

	shotType, err := e.resolveShotType(ctx)
	if err != nil {
		return report, err
	}
	listing, err := e.listShots(ctx, shotType.ID)
	if err != nil {
		return report, fmt.Errorf("list shots: %w", err)
	}
	report.Listed = len(listing.Items)
	report.Truncated = listing.Truncated()
	if report.Truncated {
		e.logf("warning: shot listing holds %d of %d shots; set follow pages to read them all", report.Listed, listing.Meta.Total)
	}
	listed := make(map[string]struct{}, len(listing.Items))
	for _, node := range listing.Items {
		listed[node.ID] = struct{}{}
	}

	all, err := e.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list strips: %w", err)
	}
	bound := make([]strips.Strip, 0, len(all))
	for _, strip := range all {
		if !strip.Bound() {
			continue
		}
		if _, ok := listed[strip.Binding.RemoteID]; !ok {
			e.logf("strip %s points at shot %s which is not in the shot listing", strip.ID, strip.Binding.RemoteID)
		}
		bound = append(bound, strip)
	}
	sort.SliceStable(bound, func(i, j int) bool {
		return bound[i].TimelineStart() < bound[j].TimelineStart()
	})
	report.Total = len(bound)

	fetch, stop := e.startPrefetch(ctx, bound)
	defer stop()

	index := 1
	for i := range bound {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		strip := &bound[i]
		remoteID := strip.Binding.RemoteID
		ordered, err := e.reorderOne(ctx, strip, index, fetch(i))
		if err != nil {
			return report, err
		}
		if !ordered {
			report.Unlinked = append(report.Unlinked, strip.ID)
			continue
		}
		report.Ordered = append(report.Ordered, StripOrder{
			StripID:  strip.ID,
			RemoteID: remoteID,
			Order:    index,
		})
		index++
	}
	return report, nil
}

func (e *Engine) reorderOne(ctx context.Context, strip *strips.Strip, index int, prefetched *fetchResult) (bool, error) {
	remoteID := strip.Binding.RemoteID
	unlock := e.locks.Lock(remoteID)
	defer unlock()

	var node attractapi.Node
	var err error
	if prefetched != nil {
		node, err = prefetched.node, prefetched.err
	} else {
		node, err = e.client.GetNode(ctx, remoteID)
	}
	if attractapi.IsNotFound(err) {
		e.logf("shot %s for strip %s is gone; unlinking", remoteID, strip.ID)
		return false, e.commit(ctx, strip, func(s *strips.Strip) {
			if s.Binding.RemoteID == remoteID {
				s.Unbind()
			}
		})
	}
	if err != nil {
		return false, fmt.Errorf("reorder %s: %w", strip.ID, err)
	}

	node.Order = index
	_, err = e.client.UpdateNode(ctx, node)
	if prefetched != nil && errors.Is(err, attractapi.ErrPreconditionFailed) {
		// The prefetched copy went stale while waiting for the lock.
		node, err = e.client.GetNode(ctx, remoteID)
		if err == nil {
			node.Order = index
			_, err = e.client.UpdateNode(ctx, node)
		}
	}
	if err != nil {
		return false, fmt.Errorf("reorder %s: %w", strip.ID, err)
	}

	return true, e.commit(ctx, strip, func(s *strips.Strip) {
		if s.Binding.RemoteID != remoteID {
			e.logf("strip %s moved off shot %s during reorder; keeping its binding", s.ID, remoteID)
			return
		}
		s.Binding.Order = index
	})
}

func (e *Engine) listShots(ctx context.Context, shotTypeID string) (attractapi.NodePage, error) {
	q := attractapi.Query{
		Where:      map[string]any{"node_type": shotTypeID},
		MaxResults: e.pageSize,
	}
	if e.followPages {
		return attractapi.AllPages(ctx, e.client.ListNodes, q)
	}
	return e.client.ListNodes(ctx, q)
}

// startPrefetch fetches nodes ahead of the sequential walk. fetch(i) blocks
// until node i is available; it returns nil when prefetching is off.
func (e *Engine) startPrefetch(ctx context.Context, bound []strips.Strip) (func(int) *fetchResult, func()) {
	if e.prefetchWorkers <= 1 || len(bound) == 0 {
		return func(int) *fetchResult { return nil }, func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	results := make([]chan fetchResult, len(bound))
	for i := range results {
		results[i] = make(chan fetchResult, 1)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := e.prefetchWorkers
	if workers > len(bound) {
		workers = len(bound)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				node, err := e.client.GetNode(ctx, bound[i].Binding.RemoteID)
				results[i] <- fetchResult{node: node, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i := range bound {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	fetch := func(i int) *fetchResult {
		select {
		case res := <-results[i]:
			return &res
		case <-ctx.Done():
			return &fetchResult{err: ctx.Err()}
		}
	}
	stop := func() {
		cancel()
		wg.Wait()
	}
	return fetch, stop
}
