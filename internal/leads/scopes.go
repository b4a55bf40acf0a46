package leads

import (
	"strings"
	"time"

	"leadfunnel/internal/models"

	"gorm.io/gorm"
)

// Scope is a composable lead predicate.
type Scope = func(*gorm.DB) *gorm.DB

func ByID(id uint) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func NotOptedOut() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(models.ColOptedOut+" = ?", false)
	}
}

func FlagUnset(col string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(col+" = ?", false)
	}
}

func FlagSet(col string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(col+" = ?", true)
	}
}

// AnyFlagSet matches leads with at least one of cols true.
func AnyFlagSet(cols ...string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		if len(cols) == 0 {
			return db
		}
		conds := make([]string, len(cols))
		args := make([]interface{}, len(cols))
		for i, c := range cols {
			conds[i] = c + " = ?"
			args[i] = true
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

// MeetingBetween matches leads whose meeting of type t lies in [start, end).
func MeetingBetween(t models.MeetingType, start, end time.Time) Scope {
	col := models.ColumnsFor(t).Date
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(col+" >= ? AND "+col+" < ?", start.UTC(), end.UTC())
	}
}

func StatusIn(t models.MeetingType, statuses ...models.MeetingStatus) Scope {
	col := models.ColumnsFor(t).Status
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(col+" IN ?", statuses)
	}
}

func Stage(stage string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(models.ColFunnelStage+" = ?", stage)
	}
}
