package models

// Condition repräsentiert eine medizinische Indikation, zu der Studien
// vorliegen (z.B. "Stroke").
type Condition struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Condition) TableName() string {
	return "conditions"
}
