package clipcache

import "testing"

func TestSpoolManagerWriteReadDelete(t *testing.T) {
	s, err := NewSpoolManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewSpoolManager: %v", err)
	}

	if err := s.Write("rep-1", []byte("payload bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, ok, err := s.Read("rep-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !ok {
		t.Fatal("expected Read to find the spooled file")
	}
	if string(got) != "payload bytes" {
		t.Fatalf("got %q want %q", got, "payload bytes")
	}

	s.Delete("rep-1")
	if _, ok, err := s.Read("rep-1"); err != nil || ok {
		t.Fatalf("expected miss after Delete, got ok=%v err=%v", ok, err)
	}
}

func TestSpoolManagerReadMissingIsNotAnError(t *testing.T) {
	s, err := NewSpoolManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewSpoolManager: %v", err)
	}
	_, ok, err := s.Read("never-written")
	if err != nil {
		t.Fatalf("expected no error for a missing spool file, got %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a missing spool file")
	}
}

func TestSpoolManagerOverwrite(t *testing.T) {
	s, err := NewSpoolManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewSpoolManager: %v", err)
	}
	if err := s.Write("rep-1", []byte("first")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write("rep-1", []byte("second")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _, err := s.Read("rep-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("got %q want %q", got, "second")
	}
}
