package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChamberProduct ist ein kommerzielles Kammer-Listing. Außer dem
// Primärschlüssel und dem Slug gibt es keine harten Constraints.
type ChamberProduct struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Slug        string  `json:"slug" gorm:"uniqueIndex;not null"`
	Name        string  `json:"name" gorm:"not null"`
	Type        string  `json:"type,omitempty" gorm:"index"` // z.B. "soft-shell", "hard-shell"
	Capacity    string  `json:"capacity,omitempty"`
	PressureATA float64 `json:"pressure_ata,omitempty"`

	// Feature-Liste als Pipe-separierter Text (so aus dem Quellsystem übernommen)
	Features       string         `json:"features,omitempty" gorm:"type:text"`
	Specifications datatypes.JSON `json:"specifications,omitempty" gorm:"type:jsonb"`
	Images         datatypes.JSON `json:"images,omitempty" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (ChamberProduct) TableName() string {
	return "chamber_products"
}
