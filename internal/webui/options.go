package webui

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"datasync/internal/mapping"
)

// optionsRequest holds the file options to change. Absent fields are left
// alone; present ones are applied in declaration order.
type optionsRequest struct {
	Separator               *string `json:"separator"`
	Quote                   *string `json:"quote"`
	Escape                  *string `json:"escape"`
	Encoding                *string `json:"encoding"`
	HasHeaderRow            *bool   `json:"hasHeaderRow"`
	Skip                    *int    `json:"skip"`
	TrimWhitespace          *bool   `json:"trimWhitespace"`
	EmptyTextIsNull         *bool   `json:"emptyTextIsNull"`
	Action                  *string `json:"action"`
	Timezone                *string `json:"timezone"`
	FloatingTimestampFormat *string `json:"floatingTimestampFormat"`
	FixedTimestampFormat    *string `json:"fixedTimestampFormat"`
	SetAsideErrors          *bool   `json:"setAsideErrors"`
	UseSocrataGeocoding     *bool   `json:"useSocrataGeocoding"`
}

type optionStep func(ctx context.Context) ([]mapping.Event, error)

func (s *Server) optionSteps(req optionsRequest) []optionStep {
	var steps []optionStep
	str := func(v *string, set func(context.Context, string) ([]mapping.Event, error)) {
		if v != nil {
			steps = append(steps, func(ctx context.Context) ([]mapping.Event, error) { return set(ctx, *v) })
		}
	}
	boolean := func(v *bool, set func(context.Context, bool) ([]mapping.Event, error)) {
		if v != nil {
			steps = append(steps, func(ctx context.Context) ([]mapping.Event, error) { return set(ctx, *v) })
		}
	}
	ed := s.ed
	str(req.Separator, ed.SetSeparator)
	str(req.Quote, ed.SetQuote)
	str(req.Escape, ed.SetEscape)
	str(req.Encoding, ed.SetEncoding)
	boolean(req.HasHeaderRow, ed.SetHasHeaderRow)
	if req.Skip != nil {
		n := *req.Skip
		steps = append(steps, func(ctx context.Context) ([]mapping.Event, error) { return ed.SetRowsToSkip(ctx, n) })
	}
	boolean(req.TrimWhitespace, ed.SetTrimWhitespace)
	boolean(req.EmptyTextIsNull, ed.SetEmptyTextIsNull)
	str(req.Action, ed.SetAction)
	str(req.Timezone, ed.SetTimezone)
	str(req.FloatingTimestampFormat, ed.SetFloatingTimestampFormat)
	str(req.FixedTimestampFormat, ed.SetFixedTimestampFormat)
	boolean(req.SetAsideErrors, ed.SetSetAsideErrors)
	boolean(req.UseSocrataGeocoding, ed.SetUseGeocoding)
	return steps
}

// setOptions applies each present option in turn. It stops at the first
// failure; options applied before it stay applied and their events are
// reported.
func (s *Server) setOptions(c *gin.Context) {
	var req optionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, CodeValidation, "invalid request payload", gin.H{"reason": err.Error()})
		return
	}
	steps := s.optionSteps(req)
	if len(steps) == 0 {
		respondWithError(c, http.StatusBadRequest, CodeValidation, "no options given", nil)
		return
	}
	s.mutate(c, func(ctx context.Context) ([]mapping.Event, error) {
		var all []mapping.Event
		for _, step := range steps {
			evs, err := step(ctx)
			all = append(all, evs...)
			if err != nil {
				return all, err
			}
		}
		return all, nil
	})
}
