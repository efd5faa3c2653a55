package strips

import (
	"context"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu     sync.Mutex
	order  []string
	strips map[string]Strip
}

func NewMemoryStore(initial ...Strip) *MemoryStore {
	s := &MemoryStore{strips: map[string]Strip{}}
	for _, strip := range initial {
		_ = s.Put(context.Background(), strip)
	}
	return s
}

func (s *MemoryStore) List(ctx context.Context) ([]Strip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Strip, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.strips[id])
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Strip, error) {
	if err := ctx.Err(); err != nil {
		return Strip{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	strip, ok := s.strips[strings.TrimSpace(id)]
	if !ok {
		return Strip{}, ErrStripNotFound
	}
	return strip, nil
}

func (s *MemoryStore) Put(ctx context.Context, strip Strip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	strip.ID = strings.TrimSpace(strip.ID)
	if err := strip.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.strips[strip.ID]; !ok {
		s.order = append(s.order, strip.ID)
	}
	s.strips[strip.ID] = strip
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.strips[id]; !ok {
		return ErrStripNotFound
	}
	delete(s.strips, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
