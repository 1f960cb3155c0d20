package registry

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
)

func testRecord(name, endpoint string) ServerRecord {
	return NewServerRecord(name, "test server", "1.0.0", TransportStreamableHTTP, endpoint)
}

func TestMemoryRegisterAndLookup(t *testing.T) {
	t.Parallel()

	reg := NewMemory()
	if empty := reg.ListAll(); empty == nil || len(empty) != 0 {
		t.Fatalf("ListAll on empty registry = %#v, want empty slice", empty)
	}
	a := testRecord("weather", "http://a.local/mcp")
	b := testRecord("weather", "http://b.local/mcp")
	c := testRecord("calendar", "http://c.local/mcp")
	for _, rec := range []ServerRecord{a, b, c} {
		if err := reg.Register(rec); err != nil {
			t.Fatalf("Register(%s): %v", rec.ID, err)
		}
	}

	got, err := reg.Get("weather", b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != b {
		t.Fatalf("Get = %+v, want %+v", got, b)
	}
	byID, err := reg.GetByID(c.ID)
	if err != nil || byID.Name != "calendar" {
		t.Fatalf("GetByID = %+v, %v", byID, err)
	}

	ids := reg.ListInstanceIDs("weather")
	if !reflect.DeepEqual(ids, []string{a.ID, b.ID}) {
		t.Fatalf("ListInstanceIDs = %v, want registration order", ids)
	}

	all := reg.ListAll()
	if len(all) != 3 || all[0].Name != "calendar" || all[1].ID != a.ID || all[2].ID != b.ID {
		t.Fatalf("ListAll order unexpected: %+v", all)
	}
}

func TestMemoryUnknownNameListsEmpty(t *testing.T) {
	t.Parallel()

	reg := NewMemory()
	if got := reg.ListInstances("missing"); got == nil || len(got) != 0 {
		t.Fatalf("ListInstances(missing) = %#v, want empty slice", got)
	}
	if got := reg.ListInstanceIDs("missing"); len(got) != 0 {
		t.Fatalf("ListInstanceIDs(missing) = %v", got)
	}
	if _, err := reg.Get("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := reg.GetByID("x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID(x) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryRejectsDuplicate(t *testing.T) {
	t.Parallel()

	reg := NewMemory()
	rec := testRecord("weather", "http://a.local/mcp")
	if err := reg.Register(rec); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := reg.Register(rec); !errors.Is(err, ErrDuplicateInstance) {
		t.Fatalf("second Register error = %v, want ErrDuplicateInstance", err)
	}
	if n := len(reg.ListInstances("weather")); n != 1 {
		t.Fatalf("expected one record, got %d", n)
	}
}

func TestMemoryConcurrentDuplicateRegistration(t *testing.T) {
	t.Parallel()

	for round := 0; round < 50; round++ {
		reg := NewMemory()
		rec := testRecord("weather", "http://a.local/mcp")

		const workers = 8
		var (
			wg         sync.WaitGroup
			successes  atomic.Int32
			duplicates atomic.Int32
			start      = make(chan struct{})
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				err := reg.Register(rec)
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, ErrDuplicateInstance):
					duplicates.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		if successes.Load() != 1 || duplicates.Load() != workers-1 {
			t.Fatalf("round %d: successes=%d duplicates=%d", round, successes.Load(), duplicates.Load())
		}
		if n := len(reg.ListInstances("weather")); n != 1 {
			t.Fatalf("round %d: %d records stored", round, n)
		}
	}
}

func TestMemoryConcurrentDistinctRegistrationsKeepAll(t *testing.T) {
	t.Parallel()

	reg := NewMemory()
	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := testRecord("weather", "http://replica.local/"+string(rune('a'+i)))
			if err := reg.Register(rec); err != nil {
				t.Errorf("Register: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if n := len(reg.ListInstances("weather")); n != workers {
		t.Fatalf("lost updates: %d of %d records stored", n, workers)
	}
}

func TestMemoryUnregisterRemovesEmptyGroup(t *testing.T) {
	t.Parallel()

	reg := NewMemory()
	a := testRecord("weather", "http://a.local/mcp")
	b := testRecord("weather", "http://b.local/mcp")
	_ = reg.Register(a)
	_ = reg.Register(b)

	removed, err := reg.Unregister("weather", a.ID)
	if err != nil || removed.ID != a.ID {
		t.Fatalf("Unregister(a) = %+v, %v", removed, err)
	}
	if ids := reg.ListInstanceIDs("weather"); !reflect.DeepEqual(ids, []string{b.ID}) {
		t.Fatalf("remaining ids = %v", ids)
	}
	if _, err := reg.Unregister("weather", b.ID); err != nil {
		t.Fatalf("Unregister(b): %v", err)
	}
	if _, ok := reg.groups.Load("weather"); ok {
		t.Fatalf("empty group left behind")
	}
	if _, err := reg.Unregister("weather", b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Unregister of removed instance error = %v, want ErrNotFound", err)
	}
}

func TestMemoryRegisterValidates(t *testing.T) {
	t.Parallel()

	reg := NewMemory()
	err := reg.Register(ServerRecord{Name: "weather"})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("Register(invalid) error = %v, want ErrInvalidRecord", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	if _, err := New("memory"); err != nil {
		t.Fatalf("New(memory): %v", err)
	}
	if _, err := New("redis"); err == nil {
		t.Fatalf("New(redis) should fail until implemented")
	}
	if _, err := New("etcd"); err == nil {
		t.Fatalf("New(etcd) should fail")
	}
}
