package models

import (
	"time"

	"gorm.io/datatypes"
)

// Profile ist der Identitätsdatensatz eines Nutzers, geschlüsselt über die
// UUID des Auth-Providers. Das Löschen der Auth-Identität kaskadiert.
type Profile struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Anzeige-Felder, alle optional
	Username  *string `json:"username,omitempty" gorm:"uniqueIndex;check:chk_username_length,username IS NULL OR length(username) >= 3"`
	Email     *string `json:"email,omitempty" gorm:"uniqueIndex"`
	FullName  string  `json:"full_name,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Website   string  `json:"website,omitempty"`
	Location  string  `json:"location,omitempty"`
	Company   string  `json:"company,omitempty"`

	// IDs gemerkter Studien als JSON-Array
	SavedArticles datatypes.JSON `json:"saved_articles,omitempty" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (Profile) TableName() string {
	return "profiles"
}
