package models

import (
	"time"

	"gorm.io/datatypes"
)

// Provider ist ein Verzeichniseintrag eines HBOT-Anbieters. Die Spalten
// approved, latitude und longitude bleiben bewusst lose typisiert (Text),
// weil die Quelldaten aus Sheet-Importen stammen und dort Bool/String bzw.
// Zahl/String gemischt vorkommen. Die Normalisierung passiert im
// Query-Layer, nicht im Schema.
type Provider struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name    string `json:"name" gorm:"not null"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty" gorm:"index"`
	Country string `json:"country,omitempty" gorm:"index"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Website string `json:"website,omitempty"`

	Approved  string `json:"approved" gorm:"default:'false'"`
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`

	// Referenz in die Places-API, falls bekannt
	PlaceID string `json:"place_id,omitempty" gorm:"index"`

	Hours        datatypes.JSON `json:"hours,omitempty" gorm:"type:jsonb"`
	ChamberSpecs datatypes.JSON `json:"chamber_specs,omitempty" gorm:"type:jsonb"`
	Images       datatypes.JSON `json:"images,omitempty" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (Provider) TableName() string {
	return "providers"
}
