package cmd

import (
	"fmt"

	"channel-manager/core/database"
	"channel-manager/feature/ledger"
	"channel-manager/feature/mapping"
	"channel-manager/feature/token"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// requiredColumns are the columns the engine queries directly.
var requiredColumns = map[string][]string{
	"reservations":                        {"room_type_id", "check_in", "check_out", "status", "external_booking_id"},
	"inventory_days":                      {"room_type_id", "date", "allotment", "stop_sell", "closed_to_arrival", "closed_to_departure"},
	token.Token{}.TableName():             {"connection_id", "type", "value", "expires_at", "version"},
	mapping.ExternalMapping{}.TableName(): {"provider", "entity_type", "external_id", "internal_id"},
	ledger.AuditRecord{}.TableName():      {"trace_id", "operation", "status", "hotel_id"},
	ledger.SyncState{}.TableName():        {"hotel_id", "provider", "enabled", "cursors"},
}

// migrateCmd creates or updates the engine's tables.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long:  `Runs schema migrations for every table of the sync engine and verifies the columns it depends on.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		a.log.Info("Migrating schema", zap.String("driver", a.cfg.Database.Driver))
		if err := database.Migrate(a.db, schema()...); err != nil {
			return err
		}

		for table, cols := range requiredColumns {
			missing, err := database.MissingColumns(a.db, table, cols...)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return fmt.Errorf("table %s is missing columns %v", table, missing)
			}
		}
		a.log.Info("Schema is up to date", zap.Int("tables", len(schema())))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
