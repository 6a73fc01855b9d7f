package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"channel-manager/core/utils"
)

const (
	// HeaderRequestCost reports the credits consumed by a request.
	HeaderRequestCost = "X-Request-Cost"
	// HeaderCreditsRemaining reports the credits left in the current window.
	HeaderCreditsRemaining = "X-Credits-Remaining"

	maxErrorBody = 4 << 10
)

// Client talks to the channel-manager REST API.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
}

// NewClient creates a client with the configured network timeout.
func NewClient(cfg Config) *Client {
	return &Client{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout()},
	}
}

// Name returns the provider name used as the mapping namespace.
func (c *Client) Name() string {
	return c.name
}

// GetProperty fetches a property together with its room types.
func (c *Client) GetProperty(ctx context.Context, token, propertyID string) (*Property, *Meta, error) {
	var out envelope[Property]
	path := "/properties/" + url.PathEscape(propertyID)
	meta, err := c.do(ctx, http.MethodGet, path, url.Values{"includeRooms": {"true"}}, token, nil, &out)
	if err != nil {
		return nil, meta, err
	}
	return &out.Data, meta, nil
}

// GetRoomTypes lists the room types of a property.
func (c *Client) GetRoomTypes(ctx context.Context, token, propertyID string) ([]RoomType, *Meta, error) {
	var out envelope[[]RoomType]
	path := "/properties/" + url.PathEscape(propertyID) + "/rooms"
	meta, err := c.do(ctx, http.MethodGet, path, nil, token, nil, &out)
	return out.Data, meta, err
}

// GetCalendar fetches the calendar of every room of a property for [from, to].
func (c *Client) GetCalendar(ctx context.Context, token, propertyID, from, to string) ([]CalendarEntry, *Meta, error) {
	var out envelope[[]CalendarEntry]
	q := url.Values{"propertyId": {propertyID}, "startDate": {from}, "endDate": {to}}
	meta, err := c.do(ctx, http.MethodGet, "/inventory/calendar", q, token, nil, &out)
	return out.Data, meta, err
}

// ListBookings lists bookings of a property arriving within [from, to].
func (c *Client) ListBookings(ctx context.Context, token, propertyID, from, to string) ([]Booking, *Meta, error) {
	var out envelope[[]Booking]
	q := url.Values{"propertyId": {propertyID}, "arrivalFrom": {from}, "arrivalTo": {to}}
	meta, err := c.do(ctx, http.MethodGet, "/bookings", q, token, nil, &out)
	return out.Data, meta, err
}

// UpdateCalendar pushes partial calendar changes.
func (c *Client) UpdateCalendar(ctx context.Context, token string, changes []CalendarChange) (*Meta, error) {
	body, err := json.Marshal(changes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode calendar changes: %w", err)
	}
	var out envelope[json.RawMessage]
	return c.do(ctx, http.MethodPost, "/inventory/calendar", nil, token, body, &out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body []byte, out any) (*Meta, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		if IsTimeout(err) {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrTimeout, method, path, err)
		}
		return nil, fmt.Errorf("failed to call provider %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	meta := parseMeta(res.Header)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return meta, &Error{Method: method, Path: path, StatusCode: res.StatusCode, Body: string(b)}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if IsTimeout(err) {
			return meta, fmt.Errorf("%w: %s %s: %v", ErrTimeout, method, path, err)
		}
		return meta, fmt.Errorf("failed to decode provider response %s %s: %w", method, path, err)
	}
	return meta, nil
}

func parseMeta(h http.Header) *Meta {
	cost, remaining := h.Get(HeaderRequestCost), h.Get(HeaderCreditsRemaining)
	if cost == "" && remaining == "" {
		return &Meta{}
	}
	return &Meta{
		CreditsUsed:      utils.ToInt(cost),
		CreditsRemaining: utils.ToInt(remaining),
		Reported:         true,
	}
}
