package provider

import (
	"encoding/json"

	"channel-manager/core/utils"
)

// ID accepts identifiers sent either as JSON numbers or strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*id = ID(utils.ToString(v))
	return nil
}

// Number accepts numbers sent as JSON numbers or numeric strings.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Number(utils.ToFloat(v))
	return nil
}

// Flag accepts booleans sent as true/false, 0/1 or "1"/"0".
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Flag(utils.ToBool(v))
	return nil
}

// Property is the provider-side hotel record.
type Property struct {
	ID       ID         `json:"id"`
	Name     string     `json:"name"`
	Address  string     `json:"address"`
	City     string     `json:"city"`
	Country  string     `json:"country"`
	Currency string     `json:"currency"`
	Timezone string     `json:"timezone"`
	Rooms    []RoomType `json:"rooms"`
}

// RoomType is the provider-side room type.
type RoomType struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Qty       Number `json:"qty"`
	MaxPeople Number `json:"maxPeople"`
	MinPrice  Number `json:"minPrice"`
}

// CalendarEntry is one room/date cell of the provider calendar.
type CalendarEntry struct {
	RoomID          ID      `json:"roomId"`
	Date            string  `json:"date"`
	NumAvail        Number  `json:"numAvail"`
	Price           *Number `json:"price,omitempty"`
	MinStay         Number  `json:"minStay"`
	MaxStay         Number  `json:"maxStay"`
	StopSell        Flag    `json:"stopSell"`
	ClosedArrival   Flag    `json:"closedArrival"`
	ClosedDeparture Flag    `json:"closedDeparture"`
}

// Booking is a reservation as returned by the provider's booking list.
type Booking struct {
	ID         ID     `json:"id"`
	PropertyID ID     `json:"propertyId"`
	RoomID     ID     `json:"roomId"`
	Status     string `json:"status"`
	Arrival    string `json:"arrival"`
	Departure  string `json:"departure"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	NumAdult   Number `json:"numAdult"`
	NumChild   Number `json:"numChild"`
	Price      Number `json:"price"`
	Currency   string `json:"currency"`
	Channel    string `json:"referer"`
}

// CalendarChange is a partial update of a room's calendar over [From, To].
// Nil fields are omitted from the request and left unchanged by the provider.
type CalendarChange struct {
	RoomID        string   `json:"roomId"`
	From          string   `json:"from"`
	To            string   `json:"to"`
	Price         *float64 `json:"price1,omitempty"`
	NumAvail      *int     `json:"numAvail,omitempty"`
	MinStay       *int     `json:"minStay,omitempty"`
	MaxStay       *int     `json:"maxStay,omitempty"`
	StopSell      *bool    `json:"stopSell,omitempty"`
	ClosedArrival *bool    `json:"closedArrival,omitempty"`
}

// Meta carries API credit accounting reported in response headers.
type Meta struct {
	CreditsUsed      int  `json:"credits_used"`
	CreditsRemaining int  `json:"credits_remaining"`
	Reported         bool `json:"reported"`
}

// Add accumulates the usage of another response.
// Remaining credits always reflect the latest response that reported them.
func (m *Meta) Add(other *Meta) {
	if other == nil || !other.Reported {
		return
	}
	m.CreditsUsed += other.CreditsUsed
	m.CreditsRemaining = other.CreditsRemaining
	m.Reported = true
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}
