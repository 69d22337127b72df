package models

import (
	"time"

	"gorm.io/datatypes"
)

// Gültige Werte für Study.OutcomeRating (Check-Constraint im Store).
const (
	OutcomePositive = "Positive"
	OutcomeNeutral  = "Neutral"
	OutcomeNegative = "Negative"
	OutcomeNA       = "N/A"
)

// Study repräsentiert eine strukturierte Studien-Zusammenfassung. Die
// Legacy-Tabelle mit Text-Primärschlüssel wurde auf einen Surrogate-Key
// zusammengeführt; sie dient nur noch als Migrationsquelle.
type Study struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Heading       string     `json:"heading" gorm:"not null"`
	ConditionID   uint       `json:"condition_id" gorm:"index;not null"`
	PublishedDate *time.Time `json:"published_date,omitempty" gorm:"index"`

	// Freitext-Abschnitte, alle optional
	Introduction        *string `json:"introduction,omitempty" gorm:"type:text"`
	Outcomes            *string `json:"outcomes,omitempty" gorm:"type:text"`
	Results             *string `json:"results,omitempty" gorm:"type:text"`
	Conclusion          *string `json:"conclusion,omitempty" gorm:"type:text"`
	ConflictsOfInterest *string `json:"conflicts_of_interest,omitempty" gorm:"type:text"`
	Funding             *string `json:"funding,omitempty" gorm:"type:text"`

	// Strukturierte Metriken
	PressureUsed       *string `json:"pressure_used,omitempty"`
	NumberOfTreatments *int    `json:"number_of_treatments,omitempty"`
	PeerReviewed       *bool   `json:"peer_reviewed,omitempty"`
	PublicData         *bool   `json:"public_data,omitempty"`
	Funded             *bool   `json:"funded,omitempty"`
	OutcomeRating      *string `json:"outcome_rating,omitempty" gorm:"check:chk_outcome_rating,outcome_rating IS NULL OR outcome_rating IN ('Positive','Neutral','Negative','N/A')"`

	// Embedding für semantische Suche, als JSON-Vektor abgelegt
	Embedding datatypes.JSON `json:"embedding,omitempty" gorm:"type:jsonb"`

	// Kein Cascade: eine referenzierte Condition darf nicht gelöscht werden.
	Condition Condition `json:"-" gorm:"constraint:OnDelete:RESTRICT"`
}

// TableName gibt explizit den Tabellennamen an.
func (Study) TableName() string {
	return "studies"
}

// FAQ ist ein Frage/Antwort-Paar zu einer Studie.
type FAQ struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	StudyID  uint   `json:"study_id" gorm:"index;not null"`
	Question string `json:"question" gorm:"type:text;not null"`
	Answer   string `json:"answer" gorm:"type:text;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (FAQ) TableName() string {
	return "faqs"
}

// Document ist ein generischer, embeddbarer Content-Chunk für die
// semantische Suche, nur lose an eine Studie gekoppelt.
type Document struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	StudyID   *uint          `json:"study_id,omitempty" gorm:"index"`
	Content   string         `json:"content" gorm:"type:text;not null"`
	Metadata  datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	Embedding datatypes.JSON `json:"embedding,omitempty" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (Document) TableName() string {
	return "documents"
}
