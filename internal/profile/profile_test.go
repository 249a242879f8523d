package profile

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"datasync/internal/controlfile"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := Fingerprint([]string{"First Name", "Zip"})
	if len(a) != 16 {
		t.Fatalf("len = %d, want 16 hex digits", len(a))
	}
	if b := Fingerprint([]string{" first name ", "ZIP"}); b != a {
		t.Fatalf("cosmetic change altered fingerprint: %s vs %s", a, b)
	}
	if b := Fingerprint([]string{"Zip", "First Name"}); b == a {
		t.Fatalf("reordered headers share a fingerprint")
	}
	if b := Fingerprint([]string{"First NameZip"}); b == a {
		t.Fatalf("joined headers share a fingerprint")
	}
	// Composed and decomposed forms of the same text.
	if Fingerprint([]string{"Caf\u00e9"}) != Fingerprint([]string{"Cafe\u0301"}) {
		t.Fatalf("NFC forms differ")
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := context.Background()

	if _, ok, err := s.Load(ctx, "abcd-1234", "ff"); err != nil || ok {
		t.Fatalf("Load on empty store = %v, %v", ok, err)
	}

	cf := controlfile.New(controlfile.KindCSV)
	cf.FileType().Columns = []string{"first_name", "col_1"}
	cf.FileType().IgnoreColumns = []string{"col_1"}
	if err := s.Save(ctx, "abcd-1234", "ff", cf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := s.Load(ctx, "abcd-1234", "ff")
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if !reflect.DeepEqual(got.FileType().Columns, cf.FileType().Columns) {
		t.Fatalf("columns = %q", got.FileType().Columns)
	}

	// Save again replaces.
	cf.Action = controlfile.ActionUpsert
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	if err := s.Save(ctx, "abcd-1234", "ff", cf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _, _ = s.Load(ctx, "abcd-1234", "ff")
	if got.Action != controlfile.ActionUpsert {
		t.Fatalf("Action = %q, want Upsert", got.Action)
	}

	if _, ok, _ := s.Load(ctx, "other", "ff"); ok {
		t.Fatalf("profile leaked across datasets")
	}

	if err := s.Delete(ctx, "abcd-1234", "ff"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Load(ctx, "abcd-1234", "ff"); ok {
		t.Fatalf("profile still present after Delete")
	}
}

func TestReopenKeepsProfiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "p.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "d", "f", controlfile.New(controlfile.KindTSV)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, ok, err := s.Load(ctx, "d", "f")
	if err != nil || !ok || got.Kind() != controlfile.KindTSV {
		t.Fatalf("Load after reopen = %+v, %v, %v", got, ok, err)
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatalf("expected error")
	}
}
