package database

import (
	"fmt"
	"log"

	"leadfunnel/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tables lists the funnel tables in copy order.
var Tables = []string{"leads", "messages", "templates", "links", "system_settings"}

// CopyAll copies every funnel table from src into dst, keeping primary
// keys. Rows whose key already exists in dst are skipped, so a rerun is
// safe. It returns the rows read per table.
func CopyAll(src, dst *gorm.DB) (map[string]int, error) {
	counts := make(map[string]int, len(Tables))
	steps := []struct {
		table string
		rows  interface{}
	}{
		{"leads", &[]models.Lead{}},
		{"messages", &[]models.Message{}},
		{"templates", &[]models.Template{}},
		{"links", &[]models.Link{}},
		{"system_settings", &[]models.SystemSetting{}},
	}
	for _, s := range steps {
		log.Printf("Migrating table: %s", s.table)
		res := src.Find(s.rows)
		if res.Error != nil {
			return counts, fmt.Errorf("read %s: %w", s.table, res.Error)
		}
		counts[s.table] = int(res.RowsAffected)
		if res.RowsAffected == 0 {
			continue
		}
		err := dst.Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(s.rows, 200).Error
		})
		if err != nil {
			return counts, fmt.Errorf("write %s: %w", s.table, err)
		}
		log.Printf("Successfully migrated %s (%d rows)", s.table, res.RowsAffected)
	}
	return counts, nil
}

// SyncSequences moves each serial sequence past the highest copied id.
// Only PostgreSQL keeps separate sequences.
func SyncSequences(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return fmt.Errorf("sequence sync needs postgres, not %s", db.Dialector.Name())
	}
	for _, table := range Tables {
		if table == "system_settings" {
			continue
		}
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			return fmt.Errorf("sync sequence for %s: %w", table, err)
		}
		log.Printf("Successfully synced sequence for %s", table)
	}
	return nil
}
