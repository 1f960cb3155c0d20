package invocationlog

import "sync"

// DefaultCapacity bounds a Store built with a non-positive capacity.
const DefaultCapacity = 100

// Store is a fixed-size ring. Adding beyond capacity evicts the oldest entry;
// readers always see entries newest first.
type Store struct {
	mu    sync.RWMutex
	buf   []Entry
	head  int // slot the next Add writes to
	count int
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{buf: make([]Entry, capacity)}
}

func (s *Store) Add(e Entry) {
	s.mu.Lock()
	s.buf[s.head] = e
	s.head = (s.head + 1) % len(s.buf)
	if s.count < len(s.buf) {
		s.count++
	}
	s.mu.Unlock()
}

// GetAll returns a point-in-time copy, newest first.
func (s *Store) GetAll() []Entry {
	return s.snapshot(nil)
}

// GetPage returns the page-th slice of size entries. Out-of-range pages and
// non-positive sizes yield an empty slice.
func (s *Store) GetPage(page, size int) []Entry {
	return paginate(s.snapshot(nil), page, size)
}

func (s *Store) GetPageByServerID(serverID string, page, size int) []Entry {
	return paginate(s.snapshot(func(e *Entry) bool { return e.ServerID == serverID }), page, size)
}

func (s *Store) GetPageBySource(source Source, page, size int) []Entry {
	return paginate(s.snapshot(func(e *Entry) bool { return e.Source == source }), page, size)
}

// CountByServerID and CountBySource report how many entries a filtered page
// query draws from.
func (s *Store) CountByServerID(serverID string) int {
	return len(s.snapshot(func(e *Entry) bool { return e.ServerID == serverID }))
}

func (s *Store) CountBySource(source Source) int {
	return len(s.snapshot(func(e *Entry) bool { return e.Source == source }))
}

func (s *Store) Clear() {
	s.mu.Lock()
	clear(s.buf)
	s.head, s.count = 0, 0
	s.mu.Unlock()
}

func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Store) Capacity() int { return len(s.buf) }

func (s *Store) snapshot(keep func(*Entry) bool) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, s.count)
	for i := 1; i <= s.count; i++ {
		e := &s.buf[(s.head-i+len(s.buf))%len(s.buf)]
		if keep == nil || keep(e) {
			out = append(out, *e)
		}
	}
	return out
}

func paginate(entries []Entry, page, size int) []Entry {
	if page < 0 || size <= 0 || len(entries) == 0 {
		return []Entry{}
	}
	// page*size may overflow; compare by division first.
	if page > (len(entries)-1)/size {
		return []Entry{}
	}
	start := page * size
	end := min(start+size, len(entries))
	return entries[start:end]
}
