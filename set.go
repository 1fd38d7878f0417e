package tupledb

import (
	"context"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Set is the schema-less variant of Store: a persisted set of string keys,
// kept as a JSON list in insertion order. It shares the Store's scheduling,
// flushing and lifecycle.
type Set struct {
	engine

	sv *saver[[]string]

	mu      sync.Mutex
	members *orderedmap.OrderedMap[string, struct{}]
}

// OpenSet loads the set kept by backend; a missing document starts empty
// and is written immediately.
func OpenSet(ctx context.Context, backend Backend[[]string], opt Options) (*Set, error) {
	opt = opt.withDefaults()
	name := describe(backend)

	keys, found, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		keys = []string{}
		if err := backend.Store(ctx, keys); err != nil {
			return nil, err
		}
	}

	s := &Set{
		members: orderedmap.New[string, struct{}](),
	}
	for _, k := range keys {
		s.members.Set(k, struct{}{})
	}
	s.sv = newSaver(name, backend, s.capture, opt, &s.stats)
	s.init(name, opt, s.sv)
	return s, nil
}

// OpenSetFile opens a set kept in a JSON file at path (or any afs URL).
func OpenSetFile(ctx context.Context, path string, opt Options) (*Set, error) {
	return OpenSet(ctx, NewFileBackend[[]string](path), opt)
}

func (s *Set) String() string {
	return s.name
}

func (s *Set) capture() ([]string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keysLocked(), s.sv.version.Load()
}

func (s *Set) keysLocked() []string {
	keys := make([]string, 0, s.members.Len())
	for p := s.members.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Add inserts key; adding an existing member changes nothing.
func (s *Set) Add(ctx context.Context, key string) error {
	_, err := s.do(ctx, &job{kind: jobAdd, key: key, mutating: true, run: func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, present := s.members.Set(key, struct{}{}); !present {
			s.stats.mutations.Add(1)
			s.sv.touch()
		}
		return nil, nil
	}})
	return err
}

// Remove deletes key; removing a non-member changes nothing.
func (s *Set) Remove(ctx context.Context, key string) error {
	_, err := s.do(ctx, &job{kind: jobRemove, key: key, mutating: true, run: func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, present := s.members.Delete(key); present {
			s.stats.mutations.Add(1)
			s.sv.touch()
		}
		return nil, nil
	}})
	return err
}

func (s *Set) Has(ctx context.Context, key string) (bool, error) {
	v, err := s.do(ctx, &job{kind: jobHas, key: key, run: func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, present := s.members.Get(key)
		return present, nil
	}})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s *Set) Size(ctx context.Context) (int, error) {
	v, err := s.do(ctx, &job{kind: jobSize, global: true, run: func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.members.Len(), nil
	}})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Members returns every member in insertion order.
func (s *Set) Members(ctx context.Context) ([]string, error) {
	v, err := s.do(ctx, &job{kind: jobMembers, global: true, run: func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.keysLocked(), nil
	}})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}
