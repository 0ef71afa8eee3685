package vehicle

import (
	"strings"
	"time"
)

// MinPPULen is the minimum accepted plate length, applied on every entry
// path (draft list and direct add alike).
const MinPPULen = 4

// Vehicle is the GORM model for the vehicles table. Rows are created and
// deleted, never updated in place.
type Vehicle struct {
	ID          string    `gorm:"primaryKey;size:36"`
	PersonnelID string    `gorm:"index;size:36;not null"`
	PPU         string    `gorm:"size:16;not null"` // upper-cased plate
	Seq         int64     `gorm:"index;not null"`   // insertion sequence, see Repo.Create
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// NormalizePPU trims and upper-cases a plate. Idempotent.
func NormalizePPU(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
