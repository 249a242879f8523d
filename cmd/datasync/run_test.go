package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"datasync/internal/config"
	"datasync/internal/controlfile"
	"datasync/internal/profile"
)

const testView = `{"id":"abcd-1234","name":"People","columns":[
 {"fieldName":"first_name","name":"First Name","dataTypeName":"text"},
 {"fieldName":"zip_code","name":"Zip Code","dataTypeName":"text"},
 {"fieldName":"notes","name":"Notes","dataTypeName":"text"}]}`

const testCSV = "First Name,Junk,Zip code\nAnn,x,12345\n"

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func testJob(t *testing.T) (config.Job, string) {
	t.Helper()
	dir := t.TempDir()
	job := config.Job{
		Job:    "people",
		Source: config.Source{Kind: "file", File: config.SourceFile{Path: writeFile(t, dir, "people.csv", testCSV)}},
		Parser: config.Parser{Kind: "csv", Options: config.Options{"has_header": true}},
		Schema: config.Schema{Kind: "file", Path: writeFile(t, dir, "view.json", testView)},
	}
	return job, dir
}

func TestRun_WritesControlFile(t *testing.T) {
	t.Parallel()

	job, dir := testJob(t)
	job.ControlFile.Path = filepath.Join(dir, "people.control.json")

	var out bytes.Buffer
	if err := run(context.Background(), job, runOptions{out: &out}); err != nil {
		t.Fatalf("run: %v", err)
	}

	cf, err := controlfile.Read(job.ControlFile.Path)
	if err != nil {
		t.Fatalf("read written control file: %v", err)
	}
	if got := cf.FileType().Columns; !reflect.DeepEqual(got, []string{"first_name", "col_1", "zip_code"}) {
		t.Fatalf("columns = %q", got)
	}
	if !strings.Contains(out.String(), "unmapped: notes") || !strings.Contains(out.String(), "mapping.unmapped") {
		t.Fatalf("output = %q", out.String())
	}

	// A second run restores the written file instead of matching again.
	cf.FileType().Columns = []string{"zip_code", "col_1", "first_name"}
	if err := cf.Write(job.ControlFile.Path); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := run(context.Background(), job, runOptions{out: &out}); err != nil {
		t.Fatalf("run: %v", err)
	}
	cf, _ = controlfile.Read(job.ControlFile.Path)
	if cf.FileType().Columns[0] != "zip_code" {
		t.Fatalf("restored columns = %q", cf.FileType().Columns)
	}
}

func TestRun_UsesSavedProfile(t *testing.T) {
	t.Parallel()

	job, dir := testJob(t)
	job.Profiles.DSN = filepath.Join(dir, "profiles.db")

	var out bytes.Buffer
	if err := run(context.Background(), job, runOptions{out: &out}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), `"first_name"`) {
		t.Fatalf("control file not printed: %q", out.String())
	}

	// Edit the saved profile, then run again: the edit comes back.
	ctx := context.Background()
	store, err := profile.Open(ctx, job.Profiles.DSN)
	if err != nil {
		t.Fatal(err)
	}
	fp := profile.Fingerprint([]string{"First Name", "Junk", "Zip code"})
	cf, ok, err := store.Load(ctx, "abcd-1234", fp)
	if err != nil || !ok {
		t.Fatalf("profile not saved: %v %v", ok, err)
	}
	cf.FileType().Columns = []string{"first_name", "notes", "zip_code"}
	cf.FileType().IgnoreColumns = []string{}
	if err := store.Save(ctx, "abcd-1234", fp, cf); err != nil {
		t.Fatal(err)
	}
	store.Close()

	out.Reset()
	if err := run(ctx, job, runOptions{out: &out}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(out.String(), "unmapped: notes") {
		t.Fatalf("profile mapping not restored: %q", out.String())
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	job, _ := testJob(t)
	job.Source.File.Path = filepath.Join(t.TempDir(), "missing.csv")
	if err := run(context.Background(), job, runOptions{out: &bytes.Buffer{}}); err == nil {
		t.Fatalf("expected error for a missing CSV")
	}

	job, _ = testJob(t)
	job.Schema.Kind = "nope"
	if err := run(context.Background(), job, runOptions{out: &bytes.Buffer{}}); err == nil {
		t.Fatalf("expected error for an unknown schema kind")
	}

	job, _ = testJob(t)
	job.Notify.Kind = "carrier-pigeon"
	if err := run(context.Background(), job, runOptions{out: &bytes.Buffer{}}); err == nil {
		t.Fatalf("expected error for an unknown notify kind")
	}
}

func TestSetupMetrics_UnknownBackendIsNop(t *testing.T) {
	flush := setupMetrics(config.Job{Metrics: config.Metrics{Backend: "graphite"}}, false)
	flush()
}
