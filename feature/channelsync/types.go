package channelsync

import (
	"errors"

	"channel-manager/core/provider"
	"channel-manager/feature/pms/models"
)

// Sync types.
const (
	SyncManual    = "manual"
	SyncScheduled = "scheduled"
)

// DefaultPullDays is the trailing window of a pull without cursor or explicit range.
const DefaultPullDays = 30

// DateRange is an inclusive arrival-date window.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PullRequest asks to import the provider bookings of a connection.
type PullRequest struct {
	ConnectionID  uint       `json:"connectionId"`
	DateRange     *DateRange `json:"dateRange,omitempty"`
	SyncType      string     `json:"syncType"`
	SyncDirection string     `json:"syncDirection"`
	TraceID       string     `json:"traceId,omitempty"`
}

// PullResult reports what a pull imported.
type PullResult struct {
	Success          bool                 `json:"success"`
	Data             []models.Reservation `json:"data"`
	TotalFound       int                  `json:"total_found"`
	TotalImported    int                  `json:"total_imported"`
	CreditsUsed      int                  `json:"credits_used"`
	CreditsRemaining int                  `json:"credits_remaining"`

	Window     DateRange `json:"window"`
	Duplicates int       `json:"duplicates"`
	Cancelled  int       `json:"cancelled"`
	Rejected   int       `json:"rejected"`
	Overbooked int       `json:"overbooked"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
	Unknown    int       `json:"unknown_statuses"`
	Fallbacks  int       `json:"room_type_fallbacks"`
	SkippedRun bool      `json:"skipped,omitempty"`
	SkipReason string    `json:"skip_reason,omitempty"`
	TraceID    string    `json:"trace_id"`
}

// Changes is a partial calendar update. Only the fields that are set are sent.
type Changes struct {
	Rate          *float64 `json:"rate,omitempty"`
	NumAvail      *int     `json:"numAvail,omitempty"`
	MinStay       *int     `json:"minStay,omitempty"`
	MaxStay       *int     `json:"maxStay,omitempty"`
	StopSell      *bool    `json:"stopSell,omitempty"`
	ClosedArrival *bool    `json:"closedArrival,omitempty"`
}

// Empty reports whether no field is set.
func (c Changes) Empty() bool {
	return c.Rate == nil && c.NumAvail == nil && c.MinStay == nil &&
		c.MaxStay == nil && c.StopSell == nil && c.ClosedArrival == nil
}

// PushRequest asks to push calendar changes of one room type for [Start, End].
type PushRequest struct {
	HotelID    uint    `json:"hotelId"`
	RoomTypeID uint    `json:"roomTypeId"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Changes    Changes `json:"changes"`
	TraceID    string  `json:"traceId,omitempty"`
}

// PushResult reports a push.
type PushResult struct {
	Success     bool   `json:"success"`
	CreditsUsed int    `json:"credits_used"`
	TraceID     string `json:"trace_id"`
}

// ErrNoChanges rejects a push without any field set.
var ErrNoChanges = errors.New("push has no changes")

// internalStatus maps the provider vocabulary onto reservation statuses.
// StatusUnknown maps to confirmed so the room stays held; callers count it.
func internalStatus(s provider.BookingStatus) models.ReservationStatus {
	switch s {
	case provider.StatusConfirmed, provider.StatusNew:
		return models.StatusConfirmed
	case provider.StatusRequest, provider.StatusInquiry:
		return models.StatusPending
	case provider.StatusCancelled:
		return models.StatusCancelled
	case provider.StatusBlack:
		return models.StatusBlocked
	default:
		return models.StatusConfirmed
	}
}
