package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-process Registry. Each name maps to an immutable group
// that is replaced with compare-and-swap, so writers for different names
// never contend and concurrent writers for one name never lose an update.
type Memory struct {
	groups sync.Map // name -> *group
}

var _ Registry = (*Memory)(nil)

type group struct {
	records []ServerRecord
}

func (g *group) index(id string) int {
	return slices.IndexFunc(g.records, func(r ServerRecord) bool { return r.ID == id })
}

func (g *group) with(rec ServerRecord) *group {
	next := make([]ServerRecord, 0, len(g.records)+1)
	next = append(next, g.records...)
	return &group{records: append(next, rec)}
}

func (g *group) without(i int) *group {
	next := make([]ServerRecord, 0, len(g.records)-1)
	next = append(next, g.records[:i]...)
	return &group{records: append(next, g.records[i+1:]...)}
}

// NewMemory returns an empty registry.
func NewMemory() *Memory {
	return &Memory{}
}

// Register adds rec under rec.Name. Exactly one of several concurrent calls
// with the same id succeeds; the rest get ErrDuplicateInstance.
func (m *Memory) Register(rec ServerRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	fresh := &group{records: []ServerRecord{rec}}
	for {
		cur, loaded := m.groups.LoadOrStore(rec.Name, fresh)
		if !loaded {
			return nil
		}
		g := cur.(*group)
		if g.index(rec.ID) >= 0 {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateInstance, rec.Name, rec.ID)
		}
		if m.groups.CompareAndSwap(rec.Name, g, g.with(rec)) {
			return nil
		}
	}
}

// Unregister removes the instance and drops the name once its last instance
// is gone.
func (m *Memory) Unregister(name, id string) (ServerRecord, error) {
	for {
		cur, ok := m.groups.Load(name)
		if !ok {
			return ServerRecord{}, fmt.Errorf("%w: service %q", ErrNotFound, name)
		}
		g := cur.(*group)
		i := g.index(id)
		if i < 0 {
			return ServerRecord{}, fmt.Errorf("%w: instance %s/%s", ErrNotFound, name, id)
		}
		removed := g.records[i]
		if len(g.records) == 1 {
			if m.groups.CompareAndDelete(name, g) {
				return removed, nil
			}
			continue
		}
		if m.groups.CompareAndSwap(name, g, g.without(i)) {
			return removed, nil
		}
	}
}

func (m *Memory) Get(name, id string) (ServerRecord, error) {
	cur, ok := m.groups.Load(name)
	if !ok {
		return ServerRecord{}, fmt.Errorf("%w: service %q", ErrNotFound, name)
	}
	g := cur.(*group)
	if i := g.index(id); i >= 0 {
		return g.records[i], nil
	}
	return ServerRecord{}, fmt.Errorf("%w: instance %s/%s", ErrNotFound, name, id)
}

func (m *Memory) GetByID(id string) (ServerRecord, error) {
	var (
		found ServerRecord
		ok    bool
	)
	m.groups.Range(func(_, v any) bool {
		g := v.(*group)
		if i := g.index(id); i >= 0 {
			found, ok = g.records[i], true
			return false
		}
		return true
	})
	if !ok {
		return ServerRecord{}, fmt.Errorf("%w: instance %s", ErrNotFound, id)
	}
	return found, nil
}

// ListAll returns every record ordered by name, keeping registration order
// within a name.
func (m *Memory) ListAll() []ServerRecord {
	all := []ServerRecord{}
	m.groups.Range(func(_, v any) bool {
		all = append(all, v.(*group).records...)
		return true
	})
	slices.SortStableFunc(all, func(a, b ServerRecord) int { return strings.Compare(a.Name, b.Name) })
	return all
}

func (m *Memory) ListInstanceIDs(name string) []string {
	records := m.ListInstances(name)
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

// ListInstances returns a copy of the instances under name in registration
// order.
func (m *Memory) ListInstances(name string) []ServerRecord {
	cur, ok := m.groups.Load(name)
	if !ok {
		return []ServerRecord{}
	}
	return slices.Clone(cur.(*group).records)
}
