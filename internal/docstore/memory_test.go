package docstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryFieldRoundtrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	var u Update
	u.Set("users/u1", "name", "Ann")
	u.Set("users/u1", "status", "online")
	if err := s.Apply(ctx, u); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	got, ok, err := s.GetField(ctx, "users/u1", "name")
	if err != nil {
		t.Fatalf("GetField() error = %v", err)
	}
	if !ok || got != "Ann" {
		t.Errorf("GetField() = (%q, %t), want (Ann, true)", got, ok)
	}

	if _, ok, _ := s.GetField(ctx, "users/u1", "missing"); ok {
		t.Error("GetField(missing field) reported existence")
	}
	if _, ok, _ := s.GetField(ctx, "users/none", "name"); ok {
		t.Error("GetField(missing doc) reported existence")
	}
}

func TestMemoryAbsentDocReadsEmpty(t *testing.T) {
	s := NewMemory()

	doc, err := s.GetDoc(context.Background(), "users/none")
	if err != nil {
		t.Fatalf("GetDoc() error = %v", err)
	}
	if len(doc) != 0 {
		t.Errorf("GetDoc(absent) = %v, want empty map", doc)
	}
}

func TestMemoryGetDocReturnsCopy(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	var u Update
	u.Set("users/u1", "name", "Ann")
	if err := s.Apply(ctx, u); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	doc, err := s.GetDoc(ctx, "users/u1")
	if err != nil {
		t.Fatalf("GetDoc() error = %v", err)
	}
	doc["name"] = "mutated"

	got, _, _ := s.GetField(ctx, "users/u1", "name")
	if got != "Ann" {
		t.Errorf("stored value = %q after caller mutation, want Ann", got)
	}
}

func TestMemoryDeleteAbsentFieldIsNoOp(t *testing.T) {
	s := NewMemory()

	var u Update
	u.Del("users/none", "name")
	if err := s.Apply(context.Background(), u); err != nil {
		t.Errorf("Apply(delete absent) error = %v, want nil", err)
	}
}

func TestMemoryRangeLast(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	var u Update
	u.IndexSet("rank/score", "c", 30)
	u.IndexSet("rank/score", "a", 10)
	u.IndexSet("rank/score", "b", 20)
	u.IndexSet("rank/score", "d", 20)
	if err := s.Apply(ctx, u); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	t.Run("full range ascending", func(t *testing.T) {
		got, err := s.RangeLast(ctx, "rank/score", 0)
		if err != nil {
			t.Fatalf("RangeLast() error = %v", err)
		}
		want := []RankedEntry{{"a", 10}, {"b", 20}, {"d", 20}, {"c", 30}}
		if len(got) != len(want) {
			t.Fatalf("RangeLast() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("RangeLast()[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})

	t.Run("limit keeps highest scores", func(t *testing.T) {
		got, err := s.RangeLast(ctx, "rank/score", 2)
		if err != nil {
			t.Fatalf("RangeLast() error = %v", err)
		}
		if len(got) != 2 || got[0].Member != "d" || got[1].Member != "c" {
			t.Errorf("RangeLast(limit=2) = %v, want [d c]", got)
		}
	})

	t.Run("absent index reads empty", func(t *testing.T) {
		got, err := s.RangeLast(ctx, "rank/none", 0)
		if err != nil {
			t.Fatalf("RangeLast() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("RangeLast(absent) = %v, want empty", got)
		}
	})
}

func TestMemoryIndexDelete(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	var set Update
	set.IndexSet("rank/score", "a", 1)
	set.IndexSet("rank/score", "b", 2)
	if err := s.Apply(ctx, set); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	var del Update
	del.IndexDel("rank/score", "a")
	if err := s.Apply(ctx, del); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	got, err := s.RangeLast(ctx, "rank/score", 0)
	if err != nil {
		t.Fatalf("RangeLast() error = %v", err)
	}
	if len(got) != 1 || got[0].Member != "b" {
		t.Errorf("RangeLast() = %v, want only b", got)
	}
}

func TestMemoryApplyIsAtomicUnderConcurrency(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	// Each writer sets two mirrored fields in one update; readers must
	// never observe one side without the other.
	const writers = 8
	const rounds = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				val := fmt.Sprintf("%d-%d", w, i)
				var u Update
				u.Set("pair/left", "v", val)
				u.Set("pair/right", "v", val)
				if err := s.Apply(ctx, u); err != nil {
					t.Errorf("Apply() error = %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	left, okL, _ := s.GetField(ctx, "pair/left", "v")
	right, okR, _ := s.GetField(ctx, "pair/right", "v")
	if !okL || !okR || left != right {
		t.Errorf("mirrored fields diverged: left=(%q,%t) right=(%q,%t)", left, okL, right, okR)
	}
}
