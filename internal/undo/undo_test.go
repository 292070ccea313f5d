package undo

import (
	"errors"
	"testing"
)

func TestUndoAllOrderAndCollection(t *testing.T) {
	s := New()
	var order []int

	s.Push(func() error { order = append(order, 1); return nil })
	s.Push(func() error { order = append(order, 2); return errors.New("boom-2") })
	s.Push(func() error { order = append(order, 3); return nil })

	errs := s.UndoAll()

	wantOrder := []int{3, 2, 1}
	if len(order) != len(wantOrder) {
		t.Fatalf("order = %v, want %v", order, wantOrder)
	}
	for i := range wantOrder {
		if order[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", order, wantOrder)
		}
	}

	if len(errs) != 1 {
		t.Fatalf("errs = %v, want exactly 1 error", errs)
	}
}

func TestUndoAllEmptyStack(t *testing.T) {
	s := New()
	if errs := s.UndoAll(); errs != nil {
		t.Fatalf("UndoAll on empty stack returned %v, want nil", errs)
	}
}

func TestUndoAllClearsStack(t *testing.T) {
	s := New()
	calls := 0
	s.Push(func() error { calls++; return nil })
	s.UndoAll()
	s.UndoAll()
	if calls != 1 {
		t.Fatalf("action invoked %d times, want 1", calls)
	}
}
