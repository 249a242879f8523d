package editor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"datasync/internal/controlfile"
	"datasync/internal/mapping"
	"datasync/internal/metrics"
)

// setOption applies mutate to the control file and emits options_changed.
//
// With reload set the CSV is re-read under the new options; the mapping is
// reshaped when force is set or the column count changed. If the new options
// are invalid or the reload fails, the control file is rolled back and the
// error returned.
func (e *Editor) setOption(ctx context.Context, option string, reload, force bool, mutate func(*controlfile.ControlFile)) ([]mapping.Event, error) {
	prev := e.cf.Clone()
	mutate(e.cf)

	evs := []mapping.Event{mapping.OptionsChanged(option)}
	if reload {
		table, err := e.loadTable(ctx)
		if err != nil {
			e.cf = prev
			return nil, err
		}
		e.table = table
		if force || table.ColumnCount() != e.state.ColumnCount() {
			start := time.Now()
			more, err := e.state.Reshape(table.Headers())
			if err != nil {
				e.cf = prev
				return nil, err
			}
			evs = append(evs, more...)
			e.recordMatch(time.Since(start))
		}
		e.cf.ApplyState(e.state)
	}

	metrics.RecordEdit(e.job, "option")
	return evs, e.publish(ctx, evs)
}

// SetSeparator changes the field separator. A new separator changes what a
// column is, so the mapping is always rebuilt.
func (e *Editor) SetSeparator(ctx context.Context, sep string) ([]mapping.Event, error) {
	return e.setOption(ctx, "separator", true, true, func(cf *controlfile.ControlFile) {
		cf.FileType().Separator = sep
	})
}

func (e *Editor) SetQuote(ctx context.Context, quote string) ([]mapping.Event, error) {
	return e.setOption(ctx, "quote", true, false, func(cf *controlfile.ControlFile) {
		cf.FileType().Quote = quote
	})
}

func (e *Editor) SetEscape(ctx context.Context, escape string) ([]mapping.Event, error) {
	return e.setOption(ctx, "escape", false, false, func(cf *controlfile.ControlFile) {
		cf.FileType().Escape = escape
	})
}

func (e *Editor) SetEncoding(ctx context.Context, encoding string) ([]mapping.Event, error) {
	return e.setOption(ctx, "encoding", true, false, func(cf *controlfile.ControlFile) {
		cf.FileType().Encoding = encoding
	})
}

// SetHasHeaderRow toggles the header row; skip moves with it.
func (e *Editor) SetHasHeaderRow(ctx context.Context, v bool) ([]mapping.Event, error) {
	return e.setOption(ctx, "hasHeaderRow", true, false, func(cf *controlfile.ControlFile) {
		cf.FileType().SetHasHeaderRow(v)
	})
}

// SetRowsToSkip sets skip as stored in the control file (header included).
func (e *Editor) SetRowsToSkip(ctx context.Context, n int) ([]mapping.Event, error) {
	if n < 0 {
		return nil, fmt.Errorf("editor: rows to skip must be >= 0 (got %d)", n)
	}
	return e.setOption(ctx, "skip", true, false, func(cf *controlfile.ControlFile) {
		cf.FileType().Skip = n
	})
}

func (e *Editor) SetTrimWhitespace(ctx context.Context, v bool) ([]mapping.Event, error) {
	return e.setOption(ctx, "trimWhitespace", true, false, func(cf *controlfile.ControlFile) {
		cf.FileType().TrimWhitespace = v
	})
}

func (e *Editor) SetEmptyTextIsNull(ctx context.Context, v bool) ([]mapping.Event, error) {
	return e.setOption(ctx, "emptyTextIsNull", false, false, func(cf *controlfile.ControlFile) {
		cf.FileType().EmptyTextIsNull = v
	})
}

func (e *Editor) SetAction(ctx context.Context, action string) ([]mapping.Event, error) {
	switch action {
	case controlfile.ActionReplace, controlfile.ActionUpsert, controlfile.ActionAppend, controlfile.ActionDelete:
	default:
		return nil, fmt.Errorf("editor: unknown action %q", action)
	}
	return e.setOption(ctx, "action", false, false, func(cf *controlfile.ControlFile) {
		cf.Action = action
	})
}

func (e *Editor) SetTimezone(ctx context.Context, tz string) ([]mapping.Event, error) {
	return e.setOption(ctx, "timezone", false, false, func(cf *controlfile.ControlFile) {
		cf.FileType().Timezone = tz
	})
}

// SetFloatingTimestampFormat takes a comma-separated list of formats.
func (e *Editor) SetFloatingTimestampFormat(ctx context.Context, formats string) ([]mapping.Event, error) {
	return e.setOption(ctx, "floatingTimestampFormat", false, false, func(cf *controlfile.ControlFile) {
		cf.FileType().FloatingTimestampFormat = commaSplit(formats)
	})
}

// SetFixedTimestampFormat takes a comma-separated list of formats.
func (e *Editor) SetFixedTimestampFormat(ctx context.Context, formats string) ([]mapping.Event, error) {
	return e.setOption(ctx, "fixedTimestampFormat", false, false, func(cf *controlfile.ControlFile) {
		cf.FileType().FixedTimestampFormat = commaSplit(formats)
	})
}

func (e *Editor) SetSetAsideErrors(ctx context.Context, v bool) ([]mapping.Event, error) {
	return e.setOption(ctx, "setAsideErrors", false, false, func(cf *controlfile.ControlFile) {
		cf.FileType().SetAsideErrors = v
	})
}

func (e *Editor) SetUseGeocoding(ctx context.Context, v bool) ([]mapping.Event, error) {
	return e.setOption(ctx, "useSocrataGeocoding", false, false, func(cf *controlfile.ControlFile) {
		cf.FileType().UseSocrataGeocoding = v
	})
}

func commaSplit(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
