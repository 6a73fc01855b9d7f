package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// States reads and mutates SyncState rows. Every mutation creates the row on first use.
type States struct {
	db *gorm.DB
}

// NewStates creates a sync state store.
func NewStates(db *gorm.DB) *States {
	return &States{db: db}
}

// Get returns the state of a hotel, or nil when it was never synced.
func (s *States) Get(ctx context.Context, hotelID uint, provider string) (*SyncState, error) {
	return get(s.db.WithContext(ctx), hotelID, provider)
}

// Ensure returns the state of a hotel, creating an enabled one if missing.
func (s *States) Ensure(ctx context.Context, hotelID uint, provider string) (*SyncState, error) {
	return ensure(s.db.WithContext(ctx), hotelID, provider)
}

// IsEnabled reports whether scheduled syncs run for the hotel. A missing state counts as enabled.
func (s *States) IsEnabled(ctx context.Context, hotelID uint, provider string) (bool, error) {
	st, err := s.Get(ctx, hotelID, provider)
	if err != nil {
		return false, err
	}
	return st == nil || st.Enabled, nil
}

// SetEnabled turns scheduled syncs for the hotel on or off.
func (s *States) SetEnabled(ctx context.Context, hotelID uint, provider string, enabled bool) (*SyncState, error) {
	return s.update(ctx, hotelID, provider, map[string]any{"enabled": enabled})
}

// RecordAttempt stores the time of an attempt and its error. A nil error
// clears the last error; a partial run passes its item errors.
func (s *States) RecordAttempt(ctx context.Context, hotelID uint, provider string, at time.Time, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.update(ctx, hotelID, provider, map[string]any{"last_attempt_at": at, "last_error": msg})
	return err
}

// RecordSuccess stores the time of a completed sync. It leaves the last
// error alone so a partial run keeps its item errors.
func (s *States) RecordSuccess(ctx context.Context, hotelID uint, provider string, at time.Time) error {
	_, err := s.update(ctx, hotelID, provider, map[string]any{"last_success_at": at})
	return err
}

// CompleteBootstrap stores the bootstrap time and the calendar window it imported.
// An empty window keeps the previously imported one.
func (s *States) CompleteBootstrap(ctx context.Context, hotelID uint, provider string, at time.Time, from, to string) error {
	values := map[string]any{"bootstrap_completed_at": at}
	if from != "" && to != "" {
		values["calendar_from"] = from
		values["calendar_to"] = to
	}
	_, err := s.update(ctx, hotelID, provider, values)
	return err
}

// Cursor returns the date cursor of a resource, if one was recorded.
func (s *States) Cursor(ctx context.Context, hotelID uint, provider, resource string) (string, bool, error) {
	st, err := s.Get(ctx, hotelID, provider)
	if err != nil || st == nil {
		return "", false, err
	}
	c, ok := st.Cursors[resource]
	return c, ok && c != "", nil
}

// AdvanceCursor moves the cursor of a resource to date. A cursor never moves backwards.
func (s *States) AdvanceCursor(ctx context.Context, hotelID uint, provider, resource, date string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := ensure(tx, hotelID, provider)
		if err != nil {
			return err
		}
		if cur := st.Cursors[resource]; cur != "" && cur >= date {
			return nil
		}
		if st.Cursors == nil {
			st.Cursors = map[string]string{}
		}
		st.Cursors[resource] = date
		if err := tx.Model(st).Select("cursors", "updated_at").Updates(st).Error; err != nil {
			return fmt.Errorf("failed to advance %s cursor: %w", resource, err)
		}
		return nil
	})
}

func (s *States) update(ctx context.Context, hotelID uint, provider string, values map[string]any) (*SyncState, error) {
	var out *SyncState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := ensure(tx, hotelID, provider)
		if err != nil {
			return err
		}
		if err := tx.Model(st).Updates(values).Error; err != nil {
			return fmt.Errorf("failed to update sync state of hotel %d: %w", hotelID, err)
		}
		out, err = get(tx, hotelID, provider)
		return err
	})
	return out, err
}

func get(db *gorm.DB, hotelID uint, provider string) (*SyncState, error) {
	var st SyncState
	err := db.Where("hotel_id = ? AND provider = ?", hotelID, provider).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state of hotel %d: %w", hotelID, err)
	}
	return &st, nil
}

func ensure(db *gorm.DB, hotelID uint, provider string) (*SyncState, error) {
	st := &SyncState{HotelID: hotelID, Provider: provider, Enabled: true}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hotel_id"}, {Name: "provider"}},
		DoNothing: true,
	}).Create(st).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create sync state of hotel %d: %w", hotelID, err)
	}
	return get(db, hotelID, provider)
}
