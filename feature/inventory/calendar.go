package inventory

import (
	"context"
	"fmt"

	"channel-manager/feature/pms/models"

	"gorm.io/gorm/clause"
)

const calendarBatchSize = 500

// UpsertStats counts the rows created and updated by UpsertDays.
type UpsertStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// UpsertDays writes calendar rows keyed on (room_type_id, date). Re-importing
// the same window updates the rows in place.
func (e *Engine) UpsertDays(ctx context.Context, days []models.InventoryDay) (UpsertStats, error) {
	var stats UpsertStats
	if len(days) == 0 {
		return stats, nil
	}

	existing := map[string]bool{}
	byType := map[uint][]string{}
	for _, d := range days {
		byType[d.RoomTypeID] = append(byType[d.RoomTypeID], d.Date)
	}
	for roomTypeID, dates := range byType {
		var found []string
		err := e.db.WithContext(ctx).Model(&models.InventoryDay{}).
			Where("room_type_id = ? AND date IN ?", roomTypeID, dates).
			Pluck("date", &found).Error
		if err != nil {
			return stats, fmt.Errorf("failed to load calendar of room type %d: %w", roomTypeID, err)
		}
		for _, date := range found {
			existing[dayKey(roomTypeID, date)] = true
		}
	}

	rows := make([]models.InventoryDay, 0, len(days))
	seen := map[string]int{}
	for _, d := range days {
		k := dayKey(d.RoomTypeID, d.Date)
		d.ID = 0
		if i, ok := seen[k]; ok {
			rows[i] = d
			continue
		}
		seen[k] = len(rows)
		rows = append(rows, d)
		if existing[k] {
			stats.Updated++
		} else {
			stats.Created++
		}
	}

	err := e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_type_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"allotment", "stop_sell", "closed_to_arrival", "closed_to_departure",
			"rate", "min_stay", "max_stay", "updated_at",
		}),
	}).CreateInBatches(&rows, calendarBatchSize).Error
	if err != nil {
		return UpsertStats{}, fmt.Errorf("failed to upsert %d calendar rows: %w", len(rows), err)
	}
	return stats, nil
}

// Days returns the stored calendar of a room type for [from, to].
func (e *Engine) Days(ctx context.Context, roomTypeID uint, from, to string) ([]models.InventoryDay, error) {
	var out []models.InventoryDay
	err := e.db.WithContext(ctx).
		Where("room_type_id = ? AND date >= ? AND date <= ?", roomTypeID, from, to).
		Order("date").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar of room type %d: %w", roomTypeID, err)
	}
	return out, nil
}

func dayKey(roomTypeID uint, date string) string {
	return fmt.Sprintf("%d/%s", roomTypeID, date)
}
