package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"datasync/internal/schema"
)

// fakeRows serves fixed string rows through the pgx.Rows interface.
type fakeRows struct {
	data [][]string
	i    int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d dest for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		*(d.(*string)) = row[i]
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	row := r.data[r.i-1]
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out, nil
}

type fakeQuerier struct {
	rows    *fakeRows
	gotArgs []any
}

func (q *fakeQuerier) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	q.gotArgs = args
	return q.rows, nil
}

// Tests below swap the package-level connect hook, so they do not run in
// parallel.
func withFake(t *testing.T, q querier) *int {
	t.Helper()
	orig := connect
	closed := new(int)
	connect = func(context.Context, string) (querier, func(), error) {
		return q, func() { *closed++ }, nil
	}
	t.Cleanup(func() { connect = orig })
	return closed
}

func TestDataset_ReadsColumnsInOrder(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{data: [][]string{
		{"first_name", "text", ""},
		{"zip", "character varying", "Zip Code"},
		{"opened_on", "date", ""},
	}}}
	closed := withFake(t, q)

	ds, err := schema.Load(context.Background(), schema.Config{Kind: "postgres", DSN: "postgres://x", Table: "people"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(q.gotArgs, []any{"public", "people"}) {
		t.Fatalf("query args = %v", q.gotArgs)
	}
	want := []schema.Field{
		{FieldName: "first_name", HumanName: "First Name", DataType: "text"},
		{FieldName: "zip", HumanName: "Zip Code", DataType: "character varying"},
		{FieldName: "opened_on", HumanName: "Opened On", DataType: "date"},
	}
	if !reflect.DeepEqual(ds.Fields, want) || ds.ID != "public.people" {
		t.Fatalf("got %+v", ds)
	}
	if *closed != 1 {
		t.Fatalf("pool closed %d times, want 1", *closed)
	}
}

func TestDataset_EmptyTableIsError(t *testing.T) {
	withFake(t, &fakeQuerier{rows: &fakeRows{}})

	p, err := NewProvider("postgres://x", "hr.missing")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Dataset(context.Background()); err == nil {
		t.Fatalf("expected error for a table with no columns")
	}
}

func TestDataset_RowsError(t *testing.T) {
	boom := errors.New("boom")
	withFake(t, &fakeQuerier{rows: &fakeRows{data: [][]string{{"a", "text", ""}}, err: boom}})

	p, _ := NewProvider("postgres://x", "t")
	if _, err := p.Dataset(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestSplitTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, schema, table string
		ok                bool
	}{
		{"people", "public", "people", true},
		{"hr.people", "hr", "people", true},
		{`"hr"."people"`, "hr", "people", true},
		{"", "", "", false},
		{"a.b.c", "", "", false},
		{"hr.", "", "", false},
	}
	for _, tc := range cases {
		s, tb, err := splitTable(tc.in)
		if (err == nil) != tc.ok || s != tc.schema || tb != tc.table {
			t.Fatalf("splitTable(%q) = %q, %q, %v", tc.in, s, tb, err)
		}
	}
	if _, err := NewProvider(" ", "t"); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}
