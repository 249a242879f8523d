package schema

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDataset_Validate(t *testing.T) {
	t.Parallel()

	ok := Dataset{Fields: []Field{{FieldName: "a"}, {FieldName: "b"}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	dup := Dataset{Fields: []Field{{FieldName: "a"}, {FieldName: "a"}}}
	if err := dup.Validate(); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("err = %v, want duplicate", err)
	}
	empty := Dataset{Fields: []Field{{FieldName: " "}}}
	if err := empty.Validate(); err == nil {
		t.Fatalf("expected error for blank field name")
	}
}

func TestDataset_Lookup(t *testing.T) {
	t.Parallel()

	ds := Dataset{Fields: []Field{{FieldName: "a", HumanName: "A"}, {FieldName: "b"}}}
	if f, ok := ds.Field("a"); !ok || f.HumanName != "A" {
		t.Fatalf("Field(a) = %+v, %v", f, ok)
	}
	if _, ok := ds.Field("z"); ok {
		t.Fatalf("Field(z) found")
	}
	if got := ds.FieldNames(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("FieldNames = %v", got)
	}
}

func TestHumanize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"first_name":   "First Name",
		"zip-code":     "Zip Code",
		"address.city": "Address City",
		"id":           "Id",
	}
	for in, want := range cases {
		if got := Humanize(in); got != want {
			t.Fatalf("Humanize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUserFields(t *testing.T) {
	t.Parallel()

	got := UserFields([]Field{{FieldName: ":id"}, {FieldName: "a"}, {FieldName: ":updated_at"}})
	if len(got) != 1 || got[0].FieldName != "a" {
		t.Fatalf("UserFields = %+v", got)
	}
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

type staticProvider struct {
	ds  Dataset
	err error
}

func (p staticProvider) Dataset(context.Context) (Dataset, error) { return p.ds, p.err }

func TestRegistry(t *testing.T) {
	t.Parallel()

	Register("test-static", func(_ context.Context, cfg Config) (Provider, error) {
		return staticProvider{ds: Dataset{ID: cfg.DatasetID, Fields: []Field{{FieldName: "a"}}}}, nil
	})
	Register("test-dup", func(context.Context, Config) (Provider, error) {
		return staticProvider{ds: Dataset{Fields: []Field{{FieldName: "a"}, {FieldName: "a"}}}}, nil
	})
	boom := errors.New("boom")
	Register("test-fail", func(context.Context, Config) (Provider, error) {
		return staticProvider{err: boom}, nil
	})

	ds, err := Load(context.Background(), Config{Kind: "test-static", DatasetID: "x"})
	if err != nil || ds.ID != "x" {
		t.Fatalf("Load = %+v, %v", ds, err)
	}
	if _, err := Load(context.Background(), Config{Kind: "test-dup"}); err == nil {
		t.Fatalf("expected duplicate field error")
	}
	if _, err := Load(context.Background(), Config{Kind: "test-fail"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := New(context.Background(), Config{Kind: "nope"}); err == nil || !strings.Contains(err.Error(), "test-static") {
		t.Fatalf("err = %v, want unknown kind listing registered kinds", err)
	}
}
