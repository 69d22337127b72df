package services

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func newTestCatalog() *CatalogService {
	return &CatalogService{Logger: zap.NewNop()}
}

func TestBuildCategoryTree_GroupsInFirstSeenOrder(t *testing.T) {
	s := newTestCatalog()
	rows := []CategoryConditionRow{
		{CategoryID: 2, CategoryName: "Wound Care", ConditionID: 10, ConditionName: "Diabetic Foot Ulcer"},
		{CategoryID: 1, CategoryName: "Neurological", ConditionID: 11, ConditionName: "Stroke"},
		{CategoryID: 2, CategoryName: "Wound Care", ConditionID: 12, ConditionName: "Radiation Injury"},
		{CategoryID: 1, CategoryName: "Neurological", ConditionID: 13, ConditionName: "TBI"},
	}
	counts := map[uint]int64{10: 4, 11: 2, 13: 9}

	tree := s.BuildCategoryTree(rows, counts)

	if len(tree) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(tree))
	}
	if tree[0].CategoryName != "Wound Care" || tree[1].CategoryName != "Neurological" {
		t.Fatalf("categories not in first-seen order: %q, %q", tree[0].CategoryName, tree[1].CategoryName)
	}
	if tree[0].Conditions[0].ID != 10 || tree[0].Conditions[1].ID != 12 {
		t.Fatalf("conditions not in first-seen order: %+v", tree[0].Conditions)
	}
	if tree[0].Conditions[0].ArticleCount != 4 || tree[1].Conditions[1].ArticleCount != 9 {
		t.Fatalf("unexpected article counts: %+v", tree)
	}
}

func TestBuildCategoryTree_DeduplicatesConditions(t *testing.T) {
	s := newTestCatalog()
	rows := []CategoryConditionRow{
		{CategoryID: 1, CategoryName: "Neurological", ConditionID: 11, ConditionName: "Stroke"},
		{CategoryID: 1, CategoryName: "Neurological", ConditionID: 11, ConditionName: "Stroke"},
		{CategoryID: 1, CategoryName: "Neurological", ConditionID: 11, ConditionName: "Stroke"},
	}

	tree := s.BuildCategoryTree(rows, nil)

	if len(tree) != 1 || len(tree[0].Conditions) != 1 {
		t.Fatalf("expected single deduplicated condition, got %+v", tree)
	}
}

func TestBuildCategoryTree_FirstCategoryWinsOnConflict(t *testing.T) {
	s := newTestCatalog()
	rows := []CategoryConditionRow{
		{CategoryID: 1, CategoryName: "Neurological", ConditionID: 11, ConditionName: "Stroke"},
		{CategoryID: 2, CategoryName: "Wound Care", ConditionID: 11, ConditionName: "Stroke"},
	}

	tree := s.BuildCategoryTree(rows, nil)

	if len(tree[0].Conditions) != 1 {
		t.Fatalf("expected condition under first category, got %+v", tree[0])
	}
	// Die Kategorie selbst bleibt sichtbar, nur die Condition wandert nicht.
	if len(tree) != 2 || len(tree[1].Conditions) != 0 {
		t.Fatalf("expected second category without the condition, got %+v", tree)
	}
}

func TestBuildCategoryTree_MissingCountDefaultsToZero(t *testing.T) {
	s := newTestCatalog()
	rows := []CategoryConditionRow{
		{CategoryID: 1, CategoryName: "Neurological", ConditionID: 11, ConditionName: "Stroke"},
	}

	tree := s.BuildCategoryTree(rows, map[uint]int64{})

	if tree[0].Conditions[0].ArticleCount != 0 {
		t.Fatalf("expected count 0, got %d", tree[0].Conditions[0].ArticleCount)
	}
}

func TestBuildCategoryTree_SkipsIncompleteRows(t *testing.T) {
	s := newTestCatalog()
	rows := []CategoryConditionRow{
		{CategoryID: 1, CategoryName: "Neurological", ConditionID: 11, ConditionName: ""},
		{CategoryID: 1, CategoryName: "Neurological", ConditionID: 0, ConditionName: "Stroke"},
		{CategoryID: 1, CategoryName: "", ConditionID: 12, ConditionName: "TBI"},
		{CategoryID: 1, CategoryName: "Neurological", ConditionID: 13, ConditionName: "Cerebral Palsy"},
	}

	tree := s.BuildCategoryTree(rows, nil)

	if len(tree) != 1 || len(tree[0].Conditions) != 1 || tree[0].Conditions[0].ID != 13 {
		t.Fatalf("expected only the complete row to survive, got %+v", tree)
	}
}

func TestBuildCategoryTree_EmptyInput(t *testing.T) {
	s := newTestCatalog()

	tree := s.BuildCategoryTree(nil, nil)

	if tree == nil || len(tree) != 0 {
		t.Fatalf("expected empty non-nil tree, got %#v", tree)
	}
}

func TestBuildCategoryTree_Idempotent(t *testing.T) {
	s := newTestCatalog()
	rows := []CategoryConditionRow{
		{CategoryID: 3, CategoryName: "Performance", ConditionID: 30, ConditionName: "Athletic Recovery"},
		{CategoryID: 1, CategoryName: "Neurological", ConditionID: 11, ConditionName: "Stroke"},
		{CategoryID: 3, CategoryName: "Performance", ConditionID: 30, ConditionName: "Athletic Recovery"},
	}
	counts := map[uint]int64{30: 1}

	first := s.BuildCategoryTree(rows, counts)
	second := s.BuildCategoryTree(rows, counts)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregation is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestDecodeCategoryRows_RejectsNonList(t *testing.T) {
	s := newTestCatalog()

	for _, payload := range []any{nil, "rows", map[string]any{"category_id": 1}, 42.0} {
		_, err := s.DecodeCategoryRows(payload)
		var shapeErr *ShapeError
		if !errors.As(err, &shapeErr) {
			t.Fatalf("expected ShapeError for %#v, got %v", payload, err)
		}
	}
}

func TestDecodeCategoryRows_CoercesAndSkips(t *testing.T) {
	s := newTestCatalog()
	payload := []any{
		map[string]any{"category_id": 1.0, "category_name": "Neurological", "condition_id": "11", "condition_name": "Stroke"},
		map[string]any{"category_id": 1.0, "category_name": "Neurological", "condition_id": 12.0}, // condition_name fehlt
		"not an object",
		map[string]any{"category_id": "x", "category_name": "Neurological", "condition_id": 13.0, "condition_name": "TBI"},
	}

	rows, err := s.DecodeCategoryRows(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 usable row, got %d: %+v", len(rows), rows)
	}
	want := CategoryConditionRow{CategoryID: 1, CategoryName: "Neurological", ConditionID: 11, ConditionName: "Stroke"}
	if rows[0] != want {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}
