package invocationlog

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
)

func entry(i int, serverID string, source Source) Entry {
	return Entry{
		CallID:        fmt.Sprintf("call-%d", i),
		Source:        source,
		ServerID:      serverID,
		OperationType: OpToolCall,
		Status:        StatusSuccess,
	}
}

func TestStoreEvictsOldest(t *testing.T) {
	t.Parallel()

	s := NewStore(100)
	for i := 1; i <= 105; i++ {
		s.Add(entry(i, "a", SourceRouter))
	}
	if s.Size() != 100 {
		t.Fatalf("Size = %d, want 100", s.Size())
	}
	all := s.GetAll()
	if len(all) != 100 {
		t.Fatalf("GetAll len = %d", len(all))
	}
	if all[0].CallID != "call-105" {
		t.Fatalf("newest entry = %s, want call-105", all[0].CallID)
	}
	if all[99].CallID != "call-6" {
		t.Fatalf("oldest retained entry = %s, want call-6", all[99].CallID)
	}
}

func TestStorePagination(t *testing.T) {
	t.Parallel()

	s := NewStore(0)
	if s.Capacity() != DefaultCapacity {
		t.Fatalf("default capacity = %d", s.Capacity())
	}
	for i := 1; i <= 10; i++ {
		s.Add(entry(i, "a", SourceRouter))
	}
	if got := s.GetPage(5, 20); got == nil || len(got) != 0 {
		t.Fatalf("out-of-range page = %#v, want empty slice", got)
	}
	first := s.GetPage(0, 4)
	if len(first) != 4 || first[0].CallID != "call-10" || first[3].CallID != "call-7" {
		t.Fatalf("page 0 = %v", ids(first))
	}
	last := s.GetPage(2, 4)
	if len(last) != 2 || last[1].CallID != "call-1" {
		t.Fatalf("page 2 = %v", ids(last))
	}
	if got := s.GetPage(-1, 4); len(got) != 0 {
		t.Fatalf("negative page returned %d entries", len(got))
	}
	if got := s.GetPage(0, 0); len(got) != 0 {
		t.Fatalf("zero size returned %d entries", len(got))
	}
	if got := s.GetPage(math.MaxInt64/50, 100); got == nil || len(got) != 0 {
		t.Fatalf("huge page = %d entries, want empty slice", len(got))
	}
	if got := s.GetPageBySource(SourceRouter, math.MaxInt, math.MaxInt); len(got) != 0 {
		t.Fatalf("huge page and size returned %d entries", len(got))
	}
	if got := s.GetPage(0, math.MaxInt); len(got) != 10 {
		t.Fatalf("huge size on page 0 returned %d entries, want 10", len(got))
	}
}

func TestStoreFilterThenPaginate(t *testing.T) {
	t.Parallel()

	s := NewStore(100)
	for i := 1; i <= 9; i++ {
		server, source := "a", SourceRouter
		if i%3 == 0 {
			server, source = "b", SourceInspector
		}
		s.Add(entry(i, server, source))
	}

	b := s.GetPageByServerID("b", 0, 2)
	if strings.Join(ids(b), ",") != "call-9,call-6" {
		t.Fatalf("server b page 0 = %v", ids(b))
	}
	if got := s.GetPageByServerID("b", 1, 2); strings.Join(ids(got), ",") != "call-3" {
		t.Fatalf("server b page 1 = %v", ids(got))
	}
	if got := s.GetPageBySource(SourceRouter, 0, 100); len(got) != 6 {
		t.Fatalf("router entries = %d, want 6", len(got))
	}
	if s.CountByServerID("b") != 3 || s.CountBySource(SourceInspector) != 3 {
		t.Fatalf("counts = %d/%d", s.CountByServerID("b"), s.CountBySource(SourceInspector))
	}
}

func TestStoreClear(t *testing.T) {
	t.Parallel()

	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Add(entry(i, "a", SourceRouter))
	}
	s.Clear()
	if s.Size() != 0 || len(s.GetAll()) != 0 {
		t.Fatalf("store not empty after Clear")
	}
	s.Add(entry(42, "a", SourceRouter))
	if all := s.GetAll(); len(all) != 1 || all[0].CallID != "call-42" {
		t.Fatalf("after Clear+Add = %v", ids(all))
	}
}

func TestStoreConcurrentAddWhilePaging(t *testing.T) {
	t.Parallel()

	s := NewStore(100)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Add(entry(w*1000+i, "a", SourceRouter))
			}
		}(w)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			page := s.GetPage(0, 20)
			if len(page) > 20 {
				t.Errorf("page overflow: %d", len(page))
				return
			}
		}
	}()
	wg.Wait()
	<-done
	if s.Size() != 100 {
		t.Fatalf("Size = %d after concurrent adds", s.Size())
	}
}

func TestNewCallIDIsUnique(t *testing.T) {
	t.Parallel()

	a, b := NewCallID(), NewCallID()
	if a == b || !strings.HasPrefix(a, "inv-") {
		t.Fatalf("call ids %q, %q", a, b)
	}
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.CallID)
	}
	return out
}
