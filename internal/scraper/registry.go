package scraper

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownType = errors.New("unknown pagination type")

// Constructor builds a strategy for one site.
type Constructor func(env Env) (Strategy, error)

// Registry maps pagination type tags to constructors. New tags are added by registering
// them; lookup never changes.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

func (r *Registry) Register(tag string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tag == "" || ctor == nil {
		return fmt.Errorf("invalid registration for %q", tag)
	}
	if _, exists := r.ctors[tag]; exists {
		return fmt.Errorf("pagination type %q already registered", tag)
	}
	r.ctors[tag] = ctor
	return nil
}

func (r *Registry) MustRegister(tag string, ctor Constructor) {
	if err := r.Register(tag, ctor); err != nil {
		panic(err)
	}
}

func (r *Registry) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[tag]
	return ok
}

// New builds the strategy registered under tag.
func (r *Registry) New(tag string, env Env) (Strategy, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, tag)
	}
	return ctor(env)
}

// Types lists registered tags alphabetically.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.ctors))
	for tag := range r.ctors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
