package fsblob

import (
	"io"
	"testing"
)

func TestWriteAtAndOpen(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.WriteAt("u1", []byte("hello"), 0); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}

	r, err := s.Open("u1")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected %q, got %q", "hello", string(data))
	}
}

func TestOutOfOrderWrites(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	if err := s.WriteAt("u2", []byte("world"), 5); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteAt("u2", []byte("hello"), 0); err != nil {
		t.Fatal(err)
	}

	ra, size, err := s.OpenReaderAt("u2")
	if err != nil {
		t.Fatalf("OpenReaderAt failed: %v", err)
	}
	defer func() { _ = ra.Close() }()

	if size != 10 {
		t.Errorf("expected size 10, got %d", size)
	}

	buf := make([]byte, 10)
	if _, err := ra.ReadAt(buf, 0); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if string(buf) != "helloworld" {
		t.Errorf("expected %q, got %q", "helloworld", string(buf))
	}
}

func TestOverwriteSameRangeLastWriteWins(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	if err := s.WriteAt("u3", []byte("AAAAA"), 0); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteAt("u3", []byte("BBBBB"), 0); err != nil {
		t.Fatal(err)
	}

	ra, _, err := s.OpenReaderAt("u3")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ra.Close() }()

	buf := make([]byte, 5)
	if _, err := ra.ReadAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "BBBBB" {
		t.Errorf("expected last write to win, got %q", string(buf))
	}
}

func TestExistsAndDelete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	if s.Exists("u4") {
		t.Error("expected blob to not exist before Ensure")
	}
	if err := s.Ensure("u4"); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("u4") {
		t.Error("expected blob to exist after Ensure")
	}
	if err := s.Delete("u4"); err != nil {
		t.Fatal(err)
	}
	if s.Exists("u4") {
		t.Error("expected blob to not exist after Delete")
	}
}
