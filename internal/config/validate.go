package config

import (
	"fmt"
	"strings"

	"datasync/internal/controlfile"
	"datasync/internal/tabular"
)

// IssueSeverity is the severity of an Issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one finding. Path is a dotted path into whatever was checked
// ("schema.dataset_id", "mapping.columns[3]"); Message is human-readable.
type Issue struct {
	Severity IssueSeverity `json:"severity"`
	Path     string        `json:"path"`
	Message  string        `json:"message"`
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

func errorf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

func warnf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}

// ValidateJob checks a decoded Job without touching the network or disk.
func ValidateJob(j Job) []Issue {
	var issues []Issue
	if strings.TrimSpace(j.Job) == "" {
		issues = append(issues, errorf("job", "job must not be empty; it labels metrics and notifications"))
	}
	issues = append(issues, validateSource(j.Source)...)
	issues = append(issues, validateParser(j)...)
	issues = append(issues, validateSchema(j.Schema)...)
	issues = append(issues, validateControlFile(j.ControlFile)...)
	issues = append(issues, validateNotify(j.Notify)...)
	issues = append(issues, validateMetrics(j.Metrics)...)
	return issues
}

func validateSource(s Source) []Issue {
	switch s.Kind {
	case "":
		return []Issue{errorf("source.kind", "source.kind must not be empty")}
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			return []Issue{errorf("source.file.path", "file source requires a non-empty path")}
		}
	case "http":
		if !strings.HasPrefix(s.HTTP.URL, "http://") && !strings.HasPrefix(s.HTTP.URL, "https://") {
			return []Issue{errorf("source.http.url", "http source requires an http(s) url, got %q", s.HTTP.URL)}
		}
		if s.HTTP.MaxRetries < 0 {
			return []Issue{errorf("source.http.max_retries", "max_retries must be >= 0")}
		}
	default:
		return []Issue{warnf("source.kind", "unknown source kind %q; ensure a matching implementation exists", s.Kind)}
	}
	return nil
}

func validateParser(j Job) []Issue {
	var issues []Issue
	switch strings.ToLower(j.Parser.Kind) {
	case "csv", "tsv":
	case "":
		issues = append(issues, errorf("parser.kind", "parser.kind must not be empty"))
	default:
		issues = append(issues, errorf("parser.kind", "unsupported parser kind %q (want csv or tsv)", j.Parser.Kind))
	}
	if j.Parser.Options.Int("skip", 0) < 0 {
		issues = append(issues, errorf("parser.options.skip", "skip must be >= 0"))
	}
	if j.Parser.SampleRows() < 0 {
		issues = append(issues, errorf("parser.options.sample_rows", "sample_rows must be >= 0"))
	}
	if enc := j.Parser.Options.String("encoding", ""); enc != "" {
		if _, err := tabular.LookupEncoding(enc); err != nil {
			issues = append(issues, errorf("parser.options.encoding", "%v", err))
		}
	}
	if _, err := j.TableOptions(); err != nil && len(issues) == 0 {
		issues = append(issues, errorf("parser.options", "%v", err))
	}
	return issues
}

var schemaKinds = map[string]struct{}{
	"file": {}, "remote": {}, "postgres": {}, "sqlite": {}, "sqlserver": {}, "mysql": {},
}

func validateSchema(s Schema) []Issue {
	if s.Kind == "" {
		return []Issue{errorf("schema.kind", "schema.kind must not be empty")}
	}
	if _, ok := schemaKinds[s.Kind]; !ok {
		return []Issue{warnf("schema.kind", "unknown schema kind %q; ensure a matching provider is registered", s.Kind)}
	}

	var issues []Issue
	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			issues = append(issues, errorf("schema."+field, "%s schema requires %s", s.Kind, field))
		}
	}
	switch s.Kind {
	case "file":
		require("path", s.Path)
	case "remote":
		require("domain", s.Domain)
		require("dataset_id", s.DatasetID)
		if s.AppToken == "" {
			issues = append(issues, warnf("schema.app_token", "no app token; requests may be throttled"))
		}
	default:
		require("dsn", s.DSN)
		require("table", s.Table)
	}
	return issues
}

func validateControlFile(c ControlFile) []Issue {
	switch c.Action {
	case "", controlfile.ActionReplace, controlfile.ActionUpsert, controlfile.ActionAppend, controlfile.ActionDelete:
	default:
		return []Issue{errorf("control_file.action", "unknown action %q", c.Action)}
	}
	if c.Path == "" {
		return []Issue{warnf("control_file.path", "no control file path; the mapping is printed but not saved")}
	}
	return nil
}

func validateNotify(n Notify) []Issue {
	switch n.Kind {
	case "", "none", "log":
	case "nats":
		var issues []Issue
		if n.URL == "" {
			issues = append(issues, errorf("notify.url", "nats notifications require a url"))
		}
		if n.Subject == "" {
			issues = append(issues, errorf("notify.subject", "nats notifications require a subject"))
		}
		return issues
	default:
		return []Issue{errorf("notify.kind", "unknown notify kind %q", n.Kind)}
	}
	return nil
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			return []Issue{errorf("metrics.pushgateway_url", "pushgateway backend requires a url")}
		}
	case "datadog":
	default:
		return []Issue{errorf("metrics.backend", "unknown metrics backend %q", m.Backend)}
	}
	return nil
}
