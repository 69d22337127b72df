package services

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"hbot-hub/models"
)

// ShapeError signalisiert, dass eine Upstream-Antwort nicht die erwartete
// Collection-Form hat (z.B. kein Array). Aufrufer rendern dann den leeren
// Zustand statt zu crashen.
type ShapeError struct {
	Got any
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected collection shape: %T", e.Got)
}

// CategoryConditionRow ist eine flache (Kategorie, Condition)-Zeile, wie sie
// aus dem Join oder aus Legacy-Sheet-Dumps kommt.
type CategoryConditionRow struct {
	CategoryID    uint   `json:"category_id"`
	CategoryName  string `json:"category_name"`
	ConditionID   uint   `json:"condition_id"`
	ConditionName string `json:"condition_name"`
}

// ConditionNode ist eine Condition im gruppierten Baum inklusive
// Artikelanzahl.
type ConditionNode struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	ArticleCount int64  `json:"article_count"`
}

// CategoryNode ist eine Kategorie mit ihren Conditions in Erst-Sichtung-
// Reihenfolge.
type CategoryNode struct {
	CategoryID   uint            `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Conditions   []ConditionNode `json:"conditions"`
}

// CatalogService baut den Category→Condition-Baum, den alle Research-Seiten
// konsumieren.
type CatalogService struct {
	DB       *gorm.DB
	Logger   *zap.Logger
	Articles *ArticleService
}

// NewCatalogService erstellt einen neuen CatalogService.
func NewCatalogService(db *gorm.DB, logger *zap.Logger, articles *ArticleService) *CatalogService {
	return &CatalogService{DB: db, Logger: logger, Articles: articles}
}

// BuildCategoryTree gruppiert flache Zeilen zu Kategorie-Knoten.
// Reihenfolge-Regeln:
//   - Kategorien erscheinen in Erst-Sichtung-Reihenfolge der Eingabe.
//   - Conditions innerhalb einer Kategorie ebenso, dedupliziert per ID.
//   - Weist die Eingabe dieselbe Condition mehreren Kategorien zu, gewinnt
//     die zuerst gesehene Zeile (first-writer-wins; fixiert das UI-Ordering).
//   - Fehlt ein Count-Eintrag, ist ArticleCount 0.
//
// Unvollständige Zeilen werden mit Warnung übersprungen, nie fatal.
func (s *CatalogService) BuildCategoryTree(rows []CategoryConditionRow, counts map[uint]int64) []CategoryNode {
	tree := make([]CategoryNode, 0)
	categoryIdx := make(map[uint]int)
	placedConditions := make(map[uint]bool)

	for i, row := range rows {
		if row.CategoryID == 0 || row.ConditionID == 0 || row.CategoryName == "" || row.ConditionName == "" {
			s.Logger.Warn("Skipping incomplete category/condition row",
				zap.Int("row", i),
				zap.Uint("category_id", row.CategoryID),
				zap.Uint("condition_id", row.ConditionID))
			continue
		}

		idx, seen := categoryIdx[row.CategoryID]
		if !seen {
			tree = append(tree, CategoryNode{
				CategoryID:   row.CategoryID,
				CategoryName: row.CategoryName,
				Conditions:   make([]ConditionNode, 0),
			})
			idx = len(tree) - 1
			categoryIdx[row.CategoryID] = idx
		}

		if placedConditions[row.ConditionID] {
			continue
		}
		placedConditions[row.ConditionID] = true

		tree[idx].Conditions = append(tree[idx].Conditions, ConditionNode{
			ID:           row.ConditionID,
			Name:         row.ConditionName,
			ArticleCount: counts[row.ConditionID],
		})
	}

	return tree
}

// DecodeCategoryRows koerziert einen dekodierten JSON-Payload (z.B. einen
// Legacy-Sheet-Dump) in Zeilen. Ist der Payload keine Liste, kommt ein
// *ShapeError zurück; unbrauchbare Elemente werden mit Warnung übersprungen.
func (s *CatalogService) DecodeCategoryRows(payload any) ([]CategoryConditionRow, error) {
	list, ok := payload.([]any)
	if !ok {
		return nil, &ShapeError{Got: payload}
	}

	rows := make([]CategoryConditionRow, 0, len(list))
	for i, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			s.Logger.Warn("Skipping non-object category row", zap.Int("row", i))
			continue
		}
		var row CategoryConditionRow
		var valid bool
		if row.CategoryID, valid = coerceUint(obj["category_id"]); !valid {
			s.Logger.Warn("Skipping category row without category_id", zap.Int("row", i))
			continue
		}
		if row.ConditionID, valid = coerceUint(obj["condition_id"]); !valid {
			s.Logger.Warn("Skipping category row without condition_id", zap.Int("row", i))
			continue
		}
		if row.CategoryName, valid = coerceString(obj["category_name"]); !valid {
			s.Logger.Warn("Skipping category row without category_name", zap.Int("row", i))
			continue
		}
		if row.ConditionName, valid = coerceString(obj["condition_name"]); !valid {
			s.Logger.Warn("Skipping category row without condition_name", zap.Int("row", i))
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CategoryTree liest die Join-Zeilen in deterministischer Reihenfolge
// (Join-Zeilen-ID aufsteigend = Erst-Sichtung) und baut den Baum. Ein
// Store-Fehler degradiert zum leeren Baum.
func (s *CatalogService) CategoryTree() []CategoryNode {
	var rows []CategoryConditionRow
	err := s.DB.Table("category_conditions").
		Select("category_conditions.category_id, categories.name AS category_name, category_conditions.condition_id, conditions.name AS condition_name").
		Joins("JOIN categories ON categories.id = category_conditions.category_id").
		Joins("JOIN conditions ON conditions.id = category_conditions.condition_id").
		Order("category_conditions.id ASC").
		Scan(&rows).Error
	if err != nil {
		s.Logger.Error("Category tree query failed", zap.Error(err))
		return []CategoryNode{}
	}
	return s.BuildCategoryTree(rows, s.Articles.CountsByCondition())
}

// ImportRows legt Kategorien, Conditions und Verknüpfungen aus koerzierten
// Zeilen an (idempotent, für den Admin-Import aus Legacy-Daten).
func (s *CatalogService) ImportRows(rows []CategoryConditionRow) (int, error) {
	linked := 0
	for _, row := range rows {
		var cat models.Category
		if err := s.DB.Where(models.Category{Name: row.CategoryName}).FirstOrCreate(&cat).Error; err != nil {
			return linked, err
		}
		var cond models.Condition
		if err := s.DB.Where(models.Condition{Name: row.ConditionName}).FirstOrCreate(&cond).Error; err != nil {
			return linked, err
		}
		join := models.CategoryCondition{CategoryID: cat.ID, ConditionID: cond.ID}
		res := s.DB.Where(models.CategoryCondition{CategoryID: cat.ID, ConditionID: cond.ID}).FirstOrCreate(&join)
		if res.Error != nil {
			return linked, res.Error
		}
		if res.RowsAffected > 0 {
			linked++
		}
	}
	return linked, nil
}
