package lock

import "testing"

func TestAcquireTwiceFails(t *testing.T) {
	dir := t.TempDir()
	l1, err := Acquire(dir)
	if err != nil {
		t.Fatalf("first Acquire() = %v", err)
	}
	defer l1.Release()

	_, err = Acquire(dir)
	if err == nil {
		t.Fatal("expected a second Acquire() on the same build dir to fail")
	}
}

func TestAcquireReleaseThenReacquire(t *testing.T) {
	dir := t.TempDir()
	l1, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire() = %v", err)
	}
	if err := l1.Release(); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	l2, err := Acquire(dir)
	if err != nil {
		t.Fatalf("reacquire after release = %v", err)
	}
	l2.Release()
}
