package models

// Category ist ein übergeordnetes Gruppierungslabel für Conditions
// (z.B. "Neurological").
type Category struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Category) TableName() string {
	return "categories"
}

// CategoryCondition ist die m:n-Verknüpfung zwischen Category und Condition.
// Das Paar ist eindeutig; Löschen eines Elternteils entfernt die Verknüpfung.
type CategoryCondition struct {
	ID          uint `json:"id" gorm:"primaryKey"`
	CategoryID  uint `json:"category_id" gorm:"not null;uniqueIndex:idx_category_condition_pair"`
	ConditionID uint `json:"condition_id" gorm:"not null;uniqueIndex:idx_category_condition_pair"`

	Category  Category  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Condition Condition `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (CategoryCondition) TableName() string {
	return "category_conditions"
}
