package config

import (
	"os"
	"path/filepath"
	"testing"

	"datasync/internal/controlfile"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestLoad_JSON(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "job.json", `{
  "job": "permits",
  "source": {"kind": "file", "file": {"path": "permits.csv"}},
  "parser": {"kind": "csv", "options": {"has_header": true, "skip": 2, "separator": ";"}},
  "schema": {"kind": "remote", "domain": "data.example.gov", "dataset_id": "abcd-1234"},
  "control_file": {"path": "out.json", "action": "Upsert"}
}`)
	j, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if j.Job != "permits" || j.Source.File.Path != "permits.csv" || j.Schema.DatasetID != "abcd-1234" {
		t.Fatalf("decoded job = %+v", j)
	}
	if got := j.Parser.Options.Int("skip", 0); got != 2 {
		t.Fatalf("skip = %d, want 2", got)
	}

	cf := j.NewControlFile()
	ftc := cf.FileType()
	if cf.Action != controlfile.ActionUpsert || ftc.Skip != 3 || ftc.Separator != ";" {
		t.Fatalf("control file = action %s skip %d sep %q", cf.Action, ftc.Skip, ftc.Separator)
	}
	opt, err := j.TableOptions()
	if err != nil {
		t.Fatalf("TableOptions: %v", err)
	}
	if opt.Skip != 2 || opt.Separator != ';' {
		t.Fatalf("TableOptions = %+v", opt)
	}
}

func TestLoad_JSONRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "job.json", `{"job": "x", "sauce": {}}`)
	if _, err := Load(p); err == nil {
		t.Fatalf("Load accepted an unknown top-level field")
	}
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "job.yaml", `
job: permits
source:
  kind: http
  http:
    url: https://example.com/permits.tsv
    max_retries: 2
parser:
  kind: tsv
  options:
    has_header: false
    sample_rows: 500
schema:
  kind: postgres
  dsn: postgres://localhost/db
  table: public.permits
`)
	j, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if j.Source.HTTP.MaxRetries != 2 || j.Schema.Table != "public.permits" {
		t.Fatalf("decoded job = %+v", j)
	}
	if j.Parser.SampleRows() != 500 {
		t.Fatalf("SampleRows = %d, want 500", j.Parser.SampleRows())
	}
	cf := j.NewControlFile()
	if cf.Kind() != controlfile.KindTSV || cf.FileType().HasHeaderRow || cf.FileType().Skip != 0 {
		t.Fatalf("control file = %+v", cf.FileType())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestApplyEnv_FillsOnlyEmpty(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"DATASYNC_APP_TOKEN": "tok",
		"METRICS_BACKEND":    "pushgateway",
		"PUSHGATEWAY_URL":    "http://pgw:9091",
		"NATS_URL":           "nats://bus:4222",
	}
	j := Job{Metrics: Metrics{Backend: "datadog"}}
	j.ApplyEnv(func(k string) string { return env[k] })

	if j.Schema.AppToken != "tok" || j.Notify.URL != "nats://bus:4222" || j.Metrics.PushgatewayURL != "http://pgw:9091" {
		t.Fatalf("env not applied: %+v", j)
	}
	if j.Metrics.Backend != "datadog" {
		t.Fatalf("Backend = %q, env must not override an explicit value", j.Metrics.Backend)
	}
}

func TestOptions_Getters(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":   "abc",
		"b":   true,
		"f":   float64(3),
		"i":   7,
		"arr": []any{"x", 1, "y"},
	}
	if o.String("s", "") != "abc" || o.String("missing", "d") != "d" || o.String("b", "d") != "d" {
		t.Fatalf("String getter")
	}
	if !o.Bool("b", false) || o.Bool("s", false) {
		t.Fatalf("Bool getter")
	}
	if o.Int("f", 0) != 3 || o.Int("i", 0) != 7 || o.Int("s", 9) != 9 {
		t.Fatalf("Int getter")
	}
	if o.Rune("s", 0) != 'a' || o.Rune("missing", ',') != ',' {
		t.Fatalf("Rune getter")
	}
	if got := o.StringSlice("arr"); len(got) != 2 || got[1] != "y" {
		t.Fatalf("StringSlice = %q", got)
	}

	var empty Options
	if err := empty.UnmarshalJSON([]byte("null")); err != nil || empty == nil {
		t.Fatalf("UnmarshalJSON(null) = %v, %v", empty, err)
	}
}
