package draft

import (
	"errors"
	"testing"
)

func TestAddValidation(t *testing.T) {
	var l VehicleList

	if err := l.Add(""); !errors.Is(err, ErrEmptyPPU) {
		t.Fatalf("empty: got %v", err)
	}
	if err := l.Add("  "); !errors.Is(err, ErrEmptyPPU) {
		t.Fatalf("blank: got %v", err)
	}
	if err := l.Add("AB1"); !errors.Is(err, ErrPPUTooShort) {
		t.Fatalf("short: got %v", err)
	}
	if err := l.Add("AB1234"); err != nil {
		t.Fatalf("valid: got %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", l.Len())
	}
}

func TestAddDeduplicatesCaseNormalized(t *testing.T) {
	var l VehicleList

	if err := l.Add("AB1234"); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := l.Add("ab1234"); !errors.Is(err, ErrDuplicatePPU) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	got := l.PPUs()
	if len(got) != 1 || got[0] != "AB1234" {
		t.Fatalf("expected exactly one normalized entry, got %v", got)
	}
}

func TestRemoveByPosition(t *testing.T) {
	var l VehicleList
	for _, p := range []string{"AB1234", "CD5678", "EF9012"} {
		if err := l.Add(p); err != nil {
			t.Fatalf("Add(%s): %v", p, err)
		}
	}

	if err := l.Remove(1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got := l.PPUs()
	if len(got) != 2 || got[0] != "AB1234" || got[1] != "EF9012" {
		t.Fatalf("unexpected list after remove: %v", got)
	}

	if err := l.Remove(5); !errors.Is(err, ErrBadIndex) {
		t.Fatalf("expected bad index, got %v", err)
	}
	if err := l.Remove(-1); !errors.Is(err, ErrBadIndex) {
		t.Fatalf("expected bad index, got %v", err)
	}
}

func TestClearAndCopySemantics(t *testing.T) {
	var l VehicleList
	_ = l.Add("AB1234")

	snapshot := l.PPUs()
	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("expected empty list after Clear")
	}
	if len(snapshot) != 1 || snapshot[0] != "AB1234" {
		t.Fatalf("snapshot must survive Clear: %v", snapshot)
	}
}
