package models

import "time"

// NewsletterSubscription ist eine einzelne Newsletter-Anmeldung, optional
// mit Referenz auf ein Profil.
type NewsletterSubscription struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Email     string  `json:"email" gorm:"uniqueIndex;not null"`
	ProfileID *string `json:"profile_id,omitempty" gorm:"type:uuid;index"`
}

// TableName gibt explizit den Tabellennamen an.
func (NewsletterSubscription) TableName() string {
	return "newsletter_subscriptions"
}
