package h263

import (
	"sync"

	"github.com/pkg/errors"
)

// Handle identifies a session in a Registry. A handle stays invalid after
// its session is closed, even when the slot is reused.
type Handle uint64

func makeHandle(index int, gen uint32) Handle {
	return Handle(uint64(index)<<32 | uint64(gen))
}

func (h Handle) index() int {
	return int(h >> 32)
}

func (h Handle) generation() uint32 {
	return uint32(h)
}

type registrySlot struct {
	s   *Session
	gen uint32
}

// Registry owns sessions that share one set of tables and hands out handles to them.
// It is safe for concurrent use; a single session is not.
type Registry struct {
	mu     sync.Mutex
	tables *Tables
	slots  []registrySlot
	free   []int
}

// NewRegistry creates an empty registry. A nil t builds the tables.
func NewRegistry(t *Tables) *Registry {
	if t == nil {
		t = InitTables()
	}

	return &Registry{tables: t}
}

// Open creates a session and returns its handle.
func (r *Registry) Open(cfg Config) (Handle, error) {
	s, err := Open(r.tables, cfg)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var i int
	if n := len(r.free); n > 0 {
		i = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		i = len(r.slots)
		r.slots = append(r.slots, registrySlot{})
	}

	slot := &r.slots[i]
	slot.gen++
	slot.s = s

	return makeHandle(i, slot.gen), nil
}

// Get returns the session of h.
func (r *Registry) Get(h Handle) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lookup(h)
}

func (r *Registry) lookup(h Handle) (*Session, error) {
	i := h.index()
	if i >= len(r.slots) || r.slots[i].s == nil || r.slots[i].gen != h.generation() {
		return nil, errors.Wrapf(ErrInvalidHandle, "handle %#x", uint64(h))
	}

	return r.slots[i].s, nil
}

// Close closes the session of h and releases its slot.
func (r *Registry) Close(h Handle) error {
	r.mu.Lock()
	s, err := r.lookup(h)
	if err == nil {
		i := h.index()
		r.slots[i].s = nil
		r.free = append(r.free, i)
	}
	r.mu.Unlock()

	if err != nil {
		return err
	}

	return s.Close()
}

// Decode passes data to the session of h.
func (r *Registry) Decode(h Handle, data []byte) (Result, error) {
	s, err := r.Get(h)
	if err != nil {
		return Result{}, err
	}

	return s.Decode(data)
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.slots) - len(r.free)
}
