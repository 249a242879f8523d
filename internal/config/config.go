// Package config defines the job file that drives one mapping run: where the
// CSV comes from, how to parse it, where the target schema lives, where the
// control file goes, and the optional notification, metrics and server
// settings.
//
// Job files are JSON, or YAML when the file name ends in .yaml/.yml. Field
// names are the same in both.
//
// Example (trimmed):
//
//	{
//	  "job": "permits",
//	  "source":  { "kind": "file", "file": { "path": "permits.csv" } },
//	  "parser":  { "kind": "csv", "options": { "has_header": true, "encoding": "utf-8" } },
//	  "schema":  { "kind": "remote", "domain": "data.example.gov", "dataset_id": "abcd-1234" },
//	  "control_file": { "path": "permits.control.json", "action": "Replace" }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"datasync/internal/controlfile"
	"datasync/internal/schema"
	"datasync/internal/tabular"
)

// Job is the top-level job file.
type Job struct {
	// Job names the run; it labels metrics, log lines and notifications.
	Job string `json:"job" yaml:"job"`

	Source      Source      `json:"source" yaml:"source"`
	Parser      Parser      `json:"parser" yaml:"parser"`
	Schema      Schema      `json:"schema" yaml:"schema"`
	ControlFile ControlFile `json:"control_file" yaml:"control_file"`
	Profiles    Profiles    `json:"profiles" yaml:"profiles"`
	Notify      Notify      `json:"notify" yaml:"notify"`
	Metrics     Metrics     `json:"metrics" yaml:"metrics"`
	Server      Server      `json:"server" yaml:"server"`
}

// Source identifies the CSV input ("file" or "http").
type Source struct {
	Kind string     `json:"kind" yaml:"kind"`
	File SourceFile `json:"file" yaml:"file"`
	HTTP SourceHTTP `json:"http" yaml:"http"`
}

type SourceFile struct {
	Path string `json:"path" yaml:"path"`
}

type SourceHTTP struct {
	URL                string            `json:"url" yaml:"url"`
	Headers            map[string]string `json:"headers" yaml:"headers"`
	MaxRetries         int               `json:"max_retries" yaml:"max_retries"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// Parser selects the file type ("csv" or "tsv") and carries its options:
//
//	has_header (bool), separator (string), quote (string), encoding (string),
//	skip (int), trim_space (bool), sample_rows (int)
type Parser struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// Schema addresses the target dataset. See schema.Config for which fields
// each kind reads.
type Schema struct {
	Kind      string `json:"kind" yaml:"kind"`
	Path      string `json:"path" yaml:"path"`
	Domain    string `json:"domain" yaml:"domain"`
	DatasetID string `json:"dataset_id" yaml:"dataset_id"`
	AppToken  string `json:"app_token" yaml:"app_token"`
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
	DSN       string `json:"dsn" yaml:"dsn"`
	Table     string `json:"table" yaml:"table"`
}

// ProviderConfig converts to the schema registry's Config.
func (s Schema) ProviderConfig() schema.Config {
	return schema.Config{
		Kind:      s.Kind,
		Path:      s.Path,
		Domain:    s.Domain,
		DatasetID: s.DatasetID,
		AppToken:  s.AppToken,
		Username:  s.Username,
		Password:  s.Password,
		DSN:       s.DSN,
		Table:     s.Table,
	}
}

// ControlFile says where the control file is read from and written to.
// Rematch re-runs automatic matching even when the file already has columns.
type ControlFile struct {
	Path    string `json:"path" yaml:"path"`
	Action  string `json:"action" yaml:"action"`
	Rematch bool   `json:"rematch" yaml:"rematch"`
}

// Profiles points at the SQLite database of saved mappings. Empty disables
// profile lookup.
type Profiles struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

// Notify selects where mapping events go ("none", "log" or "nats").
type Notify struct {
	Kind    string `json:"kind" yaml:"kind"`
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

// Metrics selects the metrics backend ("none", "pushgateway", "datadog").
type Metrics struct {
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Server configures the optional HTTP API.
type Server struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Load reads a job file, choosing the decoder by extension.
func Load(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("config: %w", err)
	}
	var j Job
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &j); err != nil {
			return Job{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&j); err != nil {
			return Job{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	if j.Parser.Options == nil {
		j.Parser.Options = Options{}
	}
	return j, nil
}

// ApplyEnv fills empty settings from the environment: DATASYNC_APP_TOKEN,
// METRICS_BACKEND, PUSHGATEWAY_URL, DATADOG_ADDR and NATS_URL.
func (j *Job) ApplyEnv(getenv func(string) string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = getenv(key)
		}
	}
	fill(&j.Schema.AppToken, "DATASYNC_APP_TOKEN")
	fill(&j.Metrics.Backend, "METRICS_BACKEND")
	fill(&j.Metrics.PushgatewayURL, "PUSHGATEWAY_URL")
	fill(&j.Metrics.DatadogAddr, "DATADOG_ADDR")
	fill(&j.Notify.URL, "NATS_URL")
}

// FileKind maps the parser kind onto a control-file section.
func (p Parser) FileKind() controlfile.Kind {
	if strings.EqualFold(p.Kind, "tsv") {
		return controlfile.KindTSV
	}
	return controlfile.KindCSV
}

// NewControlFile returns a fresh control file seeded from the parser
// options and the configured action.
func (j Job) NewControlFile() *controlfile.ControlFile {
	cf := controlfile.New(j.Parser.FileKind())
	if j.ControlFile.Action != "" {
		cf.Action = j.ControlFile.Action
	}
	ftc := cf.FileType()
	o := j.Parser.Options

	ftc.SetHasHeaderRow(o.Bool("has_header", ftc.HasHeaderRow))
	if skip := o.Int("skip", -1); skip >= 0 {
		ftc.Skip = skip
		if ftc.HasHeaderRow {
			ftc.Skip++
		}
	}
	ftc.Separator = o.String("separator", ftc.Separator)
	ftc.Quote = o.String("quote", ftc.Quote)
	ftc.Encoding = o.String("encoding", ftc.Encoding)
	ftc.TrimWhitespace = o.Bool("trim_space", ftc.TrimWhitespace)
	return cf
}

// SampleRows is the number of rows to load for matching and validation.
func (p Parser) SampleRows() int { return p.Options.Int("sample_rows", 0) }

// TableOptions is a shortcut for the reader options the parser section
// implies, without any control file.
func (j Job) TableOptions() (tabular.Options, error) {
	opt, err := j.NewControlFile().FileType().TableOptions()
	if err != nil {
		return opt, err
	}
	opt.SampleRows = j.Parser.SampleRows()
	return opt, nil
}
