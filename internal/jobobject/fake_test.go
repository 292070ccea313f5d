package jobobject

import "testing"

func TestFakeManagerAssignAndDispose(t *testing.T) {
	m := NewFake()
	job, err := m.Create("c_ABCDEF0123456")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := job.Assign(111); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := job.Assign(222); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	fj := job.(*fakeJob)
	if got := fj.Members(); len(got) != 2 || got[0] != 111 || got[1] != 222 {
		t.Fatalf("Members = %v", got)
	}

	if err := job.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := job.Assign(333); err == nil {
		t.Fatalf("expected Assign after Dispose to fail")
	}
	// Dispose is idempotent.
	if err := job.Dispose(); err != nil {
		t.Fatalf("second Dispose: %v", err)
	}
}
