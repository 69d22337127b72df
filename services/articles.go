package services

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hbot-hub/models"
)

// ArticleView ist die Anzeige-Form einer Studie: alle nullbaren Felder sind
// auf definierte Defaults normalisiert (Text → "", Zahl → 0, Bool → false,
// Rating → "N/A"), damit die Präsentation nie null sieht.
type ArticleView struct {
	ID            uint       `json:"id"`
	Heading       string     `json:"heading"`
	ConditionID   uint       `json:"condition_id"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`

	Introduction        string `json:"introduction"`
	Outcomes            string `json:"outcomes"`
	Results             string `json:"results"`
	Conclusion          string `json:"conclusion"`
	ConflictsOfInterest string `json:"conflicts_of_interest"`
	Funding             string `json:"funding"`

	PressureUsed       string `json:"pressure_used"`
	NumberOfTreatments int    `json:"number_of_treatments"`
	PeerReviewed       bool   `json:"peer_reviewed"`
	PublicData         bool   `json:"public_data"`
	Funded             bool   `json:"funded"`
	OutcomeRating      string `json:"outcome_rating"`
}

// ArticleService ist der Read-Layer über der Study-Tabelle. Alle Listen-
// Operationen degradieren bei Store-Fehlern zu leeren Ergebnissen (fail
// open), der Fehler wird nur geloggt.
type ArticleService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewArticleService erstellt einen neuen ArticleService.
func NewArticleService(db *gorm.DB, logger *zap.Logger) *ArticleService {
	return &ArticleService{DB: db, Logger: logger}
}

// ByCondition liefert alle Artikel einer Condition, deterministisch nach ID
// aufsteigend.
func (s *ArticleService) ByCondition(conditionID uint) []ArticleView {
	var studies []models.Study
	if err := s.DB.Where("condition_id = ?", conditionID).Order("id ASC").Find(&studies).Error; err != nil {
		s.Logger.Error("Article query by condition failed", zap.Uint("condition_id", conditionID), zap.Error(err))
		return []ArticleView{}
	}
	return normalizeStudies(studies)
}

// Latest liefert die neuesten Artikel nach Publikationsdatum (nulls last),
// optional auf eine Condition-Menge eingeschränkt.
func (s *ArticleService) Latest(limit int, conditionIDs []uint) []ArticleView {
	query := s.DB.Model(&models.Study{}).Order("published_date DESC NULLS LAST, id DESC")
	if len(conditionIDs) > 0 {
		query = query.Where("condition_id IN ?", conditionIDs)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var studies []models.Study
	if err := query.Find(&studies).Error; err != nil {
		s.Logger.Error("Latest articles query failed", zap.Error(err))
		return []ArticleView{}
	}
	return normalizeStudies(studies)
}

// Random liefert N Artikel in nicht-deterministischer Reihenfolge, optional
// gefiltert. Kein Seeding: jeder Aufruf darf anders samplen.
func (s *ArticleService) Random(limit int, conditionIDs []uint) []ArticleView {
	query := s.DB.Model(&models.Study{}).Order("RANDOM()")
	if len(conditionIDs) > 0 {
		query = query.Where("condition_id IN ?", conditionIDs)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var studies []models.Study
	if err := query.Find(&studies).Error; err != nil {
		s.Logger.Error("Random articles query failed", zap.Error(err))
		return []ArticleView{}
	}
	return normalizeStudies(studies)
}

// CountsByCondition liefert die Artikelanzahl gruppiert nach Condition.
// Conditions ohne Artikel fehlen in der Map; der Baum defaulted auf 0.
func (s *ArticleService) CountsByCondition() map[uint]int64 {
	type countRow struct {
		ConditionID uint
		Total       int64
	}
	var rows []countRow
	err := s.DB.Model(&models.Study{}).
		Select("condition_id, COUNT(*) AS total").
		Group("condition_id").
		Scan(&rows).Error
	if err != nil {
		s.Logger.Error("Article count aggregation failed", zap.Error(err))
		return map[uint]int64{}
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.ConditionID] = row.Total
	}
	return counts
}

// Get liefert einen einzelnen Artikel. Not-found wird als
// gorm.ErrRecordNotFound durchgereicht, damit der Handler 404 rendern kann.
func (s *ArticleService) Get(id uint) (*ArticleView, error) {
	var study models.Study
	if err := s.DB.First(&study, id).Error; err != nil {
		return nil, err
	}
	view := normalizeStudy(study)
	return &view, nil
}

func normalizeStudies(studies []models.Study) []ArticleView {
	views := make([]ArticleView, 0, len(studies))
	for _, study := range studies {
		views = append(views, normalizeStudy(study))
	}
	return views
}

func normalizeStudy(study models.Study) ArticleView {
	return ArticleView{
		ID:                  study.ID,
		Heading:             study.Heading,
		ConditionID:         study.ConditionID,
		PublishedDate:       study.PublishedDate,
		CreatedAt:           study.CreatedAt,
		Introduction:        strOr(study.Introduction, ""),
		Outcomes:            strOr(study.Outcomes, ""),
		Results:             strOr(study.Results, ""),
		Conclusion:          strOr(study.Conclusion, ""),
		ConflictsOfInterest: strOr(study.ConflictsOfInterest, ""),
		Funding:             strOr(study.Funding, ""),
		PressureUsed:        strOr(study.PressureUsed, ""),
		NumberOfTreatments:  intOr(study.NumberOfTreatments, 0),
		PeerReviewed:        boolOr(study.PeerReviewed, false),
		PublicData:          boolOr(study.PublicData, false),
		Funded:              boolOr(study.Funded, false),
		OutcomeRating:       strOr(study.OutcomeRating, models.OutcomeNA),
	}
}

func strOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
