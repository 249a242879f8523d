// Package editor is the stateful control-file editor. It owns the loaded CSV
// sample, the target dataset, the mapping state and the control file, keeps
// the control file in step with every edit, and forwards the resulting
// events to a notification sink.
//
// An Editor is not safe for concurrent use; the HTTP API serialises calls.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"datasync/internal/controlfile"
	"datasync/internal/mapping"
	"datasync/internal/metrics"
	"datasync/internal/notify"
	"datasync/internal/schema"
	"datasync/internal/tabular"
)

// ErrNotify marks an error from the notification sink. The edit it reports
// on has already been applied.
var ErrNotify = errors.New("notify failed")

// Loader (re)reads the CSV with the given options. The editor calls it on
// open and whenever a file option changes how the bytes are split.
type Loader func(ctx context.Context, opt tabular.Options) (*tabular.Table, error)

// Options tunes Open.
type Options struct {
	// Job labels metrics and log lines.
	Job string
	// Sink receives every event; nil discards them.
	Sink notify.Sink
	// Rematch re-runs automatic matching over a restored mapping.
	Rematch bool
	// SampleRows caps the rows loaded for display and validation.
	SampleRows int
}

// Editor edits one control file against one CSV and one dataset.
type Editor struct {
	job        string
	sink       notify.Sink
	load       Loader
	sampleRows int

	cf      *controlfile.ControlFile
	table   *tabular.Table
	dataset schema.Dataset
	state   *mapping.State
}

// Open loads the CSV and builds the mapping. A control file whose columns
// match the CSV width is restored as is (and re-matched when
// opts.Rematch is set); otherwise every column starts ignored and automatic
// matching proposes bindings. The opening events are returned and published.
func Open(ctx context.Context, cf *controlfile.ControlFile, dataset schema.Dataset, load Loader, opts Options) (*Editor, []mapping.Event, error) {
	if cf == nil || cf.FileType() == nil {
		return nil, nil, controlfile.ErrNoFileType
	}
	if err := dataset.Validate(); err != nil {
		return nil, nil, err
	}
	e := &Editor{
		job:        opts.Job,
		sink:       opts.Sink,
		load:       load,
		sampleRows: opts.SampleRows,
		cf:         cf.Clone(),
		dataset:    dataset,
	}
	if e.sink == nil {
		e.sink = notify.Nop{}
	}

	table, err := e.loadTable(ctx)
	if err != nil {
		return nil, nil, err
	}
	e.table = table

	var evs []mapping.Event
	ftc := e.cf.FileType()
	switch {
	case ftc.HasColumns() && len(ftc.Columns) == table.ColumnCount():
		s, err := e.cf.Restore(dataset.Fields)
		if err != nil {
			return nil, nil, err
		}
		e.state = s
		if opts.Rematch {
			evs, err = e.autoMatch()
			if err != nil {
				return nil, nil, err
			}
		}
	default:
		if ftc.HasColumns() {
			log.Printf("editor: job=%s stored columns=%d csv columns=%d; rebuilding mapping", e.job, len(ftc.Columns), table.ColumnCount())
		}
		e.state = mapping.New(dataset.Fields, table.ColumnCount())
		evs, err = e.autoMatch()
		if err != nil {
			return nil, nil, err
		}
	}

	e.cf.ApplyState(e.state)
	if err := e.publish(ctx, evs); err != nil {
		return e, evs, err
	}
	return e, evs, nil
}

func (e *Editor) loadTable(ctx context.Context) (*tabular.Table, error) {
	opt, err := e.cf.FileType().TableOptions()
	if err != nil {
		return nil, err
	}
	opt.SampleRows = e.sampleRows
	start := time.Now()
	t, err := e.load(ctx, opt)
	metrics.RecordStep(e.job, "load_csv", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("editor: load csv: %w", err)
	}
	return t, nil
}

func (e *Editor) autoMatch() ([]mapping.Event, error) {
	start := time.Now()
	evs, err := e.state.AutoMatch(e.table.Headers())
	if err != nil {
		return nil, err
	}
	e.recordMatch(time.Since(start))
	return evs, nil
}

func (e *Editor) recordMatch(d time.Duration) {
	bound := len(e.state.LastMatch().Bound())
	ignored := e.state.ColumnCount() - bound
	metrics.RecordMatch(e.job, bound, ignored, d)
	log.Printf("match: job=%s bound=%d ignored=%d took=%s", e.job, bound, ignored, d)
}

func (e *Editor) publish(ctx context.Context, evs []mapping.Event) error {
	if len(evs) == 0 {
		return nil
	}
	if err := e.sink.Publish(ctx, evs); err != nil {
		return fmt.Errorf("editor: %w: %w", ErrNotify, err)
	}
	return nil
}

// commit syncs the control file after a mapping edit and publishes evs.
func (e *Editor) commit(ctx context.Context, kind string, evs []mapping.Event) ([]mapping.Event, error) {
	e.cf.ApplyState(e.state)
	metrics.RecordEdit(e.job, kind)
	return evs, e.publish(ctx, evs)
}

// -----------------------------------------------------------------------------
// Mapping edits
// -----------------------------------------------------------------------------

// Bind maps the CSV column at position onto fieldName.
func (e *Editor) Bind(ctx context.Context, fieldName string, position int) ([]mapping.Event, error) {
	evs, err := e.state.Bind(fieldName, position)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, "bind", evs)
}

// Ignore stops loading the CSV column at position.
func (e *Editor) Ignore(ctx context.Context, position int) ([]mapping.Event, error) {
	evs, err := e.state.Ignore(position)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, "ignore", evs)
}

// IgnoreField excludes a dataset field from the import.
func (e *Editor) IgnoreField(ctx context.Context, fieldName string) ([]mapping.Event, error) {
	evs, err := e.state.IgnoreField(fieldName)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, "ignore_field", evs)
}

// SetSyntheticLocation derives fieldName as a location from CSV columns.
func (e *Editor) SetSyntheticLocation(ctx context.Context, fieldName string, d mapping.Derivation) ([]mapping.Event, error) {
	d.Kind = mapping.DerivationLocation
	return e.setSynthetic(ctx, fieldName, d)
}

// SetSyntheticPoint derives fieldName as a point from CSV columns.
func (e *Editor) SetSyntheticPoint(ctx context.Context, fieldName string, d mapping.Derivation) ([]mapping.Event, error) {
	d.Kind = mapping.DerivationPoint
	return e.setSynthetic(ctx, fieldName, d)
}

func (e *Editor) setSynthetic(ctx context.Context, fieldName string, d mapping.Derivation) ([]mapping.Event, error) {
	evs, err := e.state.MarkSynthetic(fieldName, d)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, "synthetic", evs)
}

// RemoveSynthetic drops the derivation of fieldName, if any.
func (e *Editor) RemoveSynthetic(ctx context.Context, fieldName string) ([]mapping.Event, error) {
	if _, ok := e.dataset.Field(fieldName); !ok {
		return nil, fmt.Errorf("editor: %q: %w", fieldName, mapping.ErrUnknownField)
	}
	return e.commit(ctx, "remove_synthetic", e.state.RemoveSynthetic(fieldName))
}

// Rematch discards manual bindings and re-runs automatic matching.
func (e *Editor) Rematch(ctx context.Context) ([]mapping.Event, error) {
	evs, err := e.autoMatch()
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, "rematch", evs)
}

// -----------------------------------------------------------------------------
// Read access
// -----------------------------------------------------------------------------

// ControlFile returns a copy of the synchronised control file.
func (e *Editor) ControlFile() *controlfile.ControlFile { return e.cf.Clone() }

// Dataset returns the target dataset.
func (e *Editor) Dataset() schema.Dataset { return e.dataset }

// Table returns the loaded CSV sample.
func (e *Editor) Table() *tabular.Table { return e.table }

// State exposes the mapping for read access. Mutate only through the
// Editor, or the control file goes stale.
func (e *Editor) State() *mapping.State { return e.state }

// DisplayName is the friendliest name for position i: the CSV header when
// the file has a header row, the mapped name otherwise. It is for display
// only.
func (e *Editor) DisplayName(i int) string {
	if e.cf.FileType().HasHeaderRow {
		return e.table.ColumnName(i)
	}
	b, err := e.state.At(i)
	if err != nil {
		return ""
	}
	return b.Name
}

// Column is one row of Snapshot.
type Column struct {
	Position    int            `json:"position"`
	Header      string         `json:"header"`
	DisplayName string         `json:"displayName"`
	Status      mapping.Status `json:"status"`
	Name        string         `json:"name"`
	Sample      []string       `json:"sample,omitempty"`
}

// Snapshot is a read-only view of the whole mapping.
type Snapshot struct {
	Job           string                        `json:"job,omitempty"`
	DatasetID     string                        `json:"datasetId,omitempty"`
	Columns       []Column                      `json:"columns"`
	Unmapped      []schema.Field                `json:"unmapped"`
	IgnoredFields []string                      `json:"ignoredFields"`
	Derivations   map[string]mapping.Derivation `json:"derivations"`
}

// Snapshot renders the current mapping with up to samples values per column.
func (e *Editor) Snapshot(samples int) Snapshot {
	cols := e.state.Columns()
	out := Snapshot{
		Job:           e.job,
		DatasetID:     e.dataset.ID,
		Columns:       make([]Column, len(cols)),
		Unmapped:      e.state.UnmappedTargetFields(),
		IgnoredFields: e.state.IgnoredFields(),
		Derivations:   e.state.Derivations(),
	}
	for i, b := range cols {
		c := Column{
			Position:    i,
			Header:      e.table.ColumnName(i),
			DisplayName: e.DisplayName(i),
			Status:      b.Status,
			Name:        b.Name,
		}
		for r := 0; r < samples && r < e.table.RowCount(); r++ {
			c.Sample = append(c.Sample, e.table.Value(r, i))
		}
		out.Columns[i] = c
	}
	if out.Unmapped == nil {
		out.Unmapped = []schema.Field{}
	}
	return out
}

// String renders the mapping as a plain text table for the CLI.
func (s Snapshot) String() string {
	var b strings.Builder
	for _, c := range s.Columns {
		target := "-"
		if c.Status != mapping.StatusIgnored {
			target = c.Name
		}
		fmt.Fprintf(&b, "%3d  %-30q  %-9s  %s\n", c.Position, c.DisplayName, c.Status, target)
	}
	if len(s.Unmapped) > 0 {
		names := make([]string, len(s.Unmapped))
		for i, f := range s.Unmapped {
			names[i] = f.FieldName
		}
		fmt.Fprintf(&b, "unmapped: %s\n", strings.Join(names, ", "))
	}
	return b.String()
}
