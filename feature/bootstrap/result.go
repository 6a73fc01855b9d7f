package bootstrap

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Request asks to import a provider property into a hotel.
type Request struct {
	HotelID    uint   `json:"hotelId"`
	PropertyID string `json:"propertyId"`
	// TraceID correlates the audit records; generated when empty.
	TraceID string `json:"traceId,omitempty"`
}

// PhaseResult counts what one phase wrote.
type PhaseResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
	// Skipped lists items left out on purpose, e.g. calendar rows of unmapped rooms.
	Skipped []string `json:"skipped,omitempty"`

	errs error
}

func (p *PhaseResult) fail(err error) {
	p.errs = multierr.Append(p.errs, err)
	p.Errors = append(p.Errors, err.Error())
}

func (p *PhaseResult) imported() int {
	return p.Created + p.Updated
}

// Result is the outcome of a bootstrap. Phases that failed keep whatever they
// and the phases before them wrote.
type Result struct {
	Hotel         PhaseResult `json:"hotel"`
	RoomTypes     PhaseResult `json:"roomTypes"`
	Calendar      PhaseResult `json:"calendar"`
	TotalImported int         `json:"totalImported"`
	CalendarFrom  string      `json:"calendarFrom,omitempty"`
	CalendarTo    string      `json:"calendarTo,omitempty"`
	CreditsUsed   int         `json:"creditsUsed"`
	TraceID       string      `json:"traceId"`
}

func (r *Result) total() {
	r.TotalImported = r.Hotel.imported() + r.RoomTypes.imported() + r.Calendar.imported()
}

// PartialImportError reports the phases that failed. The Result returned
// alongside it is still valid.
type PartialImportError struct {
	Phases []string
	Err    error
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("bootstrap partially failed in %s: %v", strings.Join(e.Phases, ", "), e.Err)
}

func (e *PartialImportError) Unwrap() []error {
	return multierr.Errors(e.Err)
}

func (r *Result) partialError() error {
	var pe PartialImportError
	for _, p := range []struct {
		name  string
		phase *PhaseResult
	}{
		{"hotel", &r.Hotel},
		{"roomTypes", &r.RoomTypes},
		{"calendar", &r.Calendar},
	} {
		if p.phase.errs != nil {
			pe.Phases = append(pe.Phases, p.name)
			pe.Err = multierr.Append(pe.Err, p.phase.errs)
		}
	}
	if pe.Err == nil {
		return nil
	}
	return &pe
}
