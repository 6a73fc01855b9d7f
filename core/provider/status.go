package provider

import "strings"

// BookingStatus is the provider's booking status vocabulary.
// Anything the provider sends outside this set parses to StatusUnknown and keeps
// the raw value, so callers can report it instead of silently coercing it.
type BookingStatus int

const (
	StatusUnknown BookingStatus = iota
	StatusConfirmed
	StatusNew
	StatusRequest
	StatusCancelled
	StatusBlack
	StatusInquiry
)

var statusNames = map[BookingStatus]string{
	StatusUnknown:   "unknown",
	StatusConfirmed: "confirmed",
	StatusNew:       "new",
	StatusRequest:   "request",
	StatusCancelled: "cancelled",
	StatusBlack:     "black",
	StatusInquiry:   "inquiry",
}

// ParseBookingStatus maps a raw provider status onto the enum.
func ParseBookingStatus(raw string) BookingStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "confirmed", "1":
		return StatusConfirmed
	case "new", "2":
		return StatusNew
	case "request", "3":
		return StatusRequest
	case "cancelled", "canceled", "0":
		return StatusCancelled
	case "black", "4":
		return StatusBlack
	case "inquiry", "enquiry", "5":
		return StatusInquiry
	default:
		return StatusUnknown
	}
}

func (s BookingStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}
