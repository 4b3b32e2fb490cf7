// Package services – CategorizeService
//
// Batch item categorization: every item gets exactly one assignment, unknown
// or duplicate identifiers reject the whole response, and low-confidence
// assignments are kept but left uncategorized.
package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pantryplan/ai-gateway/internal/domain"
	"github.com/pantryplan/ai-gateway/internal/llm"
)

// minAssignConfidence is the floor below which an assignment's category is
// discarded (the confidence itself is preserved so clients can show it).
const minAssignConfidence = 0.6

// CategorizeService assigns grocery items to categories from a caller-supplied
// catalog.
type CategorizeService struct {
	Gateway *Gateway
}

// CatalogItem is one item to categorize.
type CatalogItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category is one allowed target category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Assignment maps one item to at most one category. An empty CategoryID means
// the model was not confident enough to commit to one.
type Assignment struct {
	ItemID     string  `json:"item_id"`
	CategoryID string  `json:"category_id"`
	Confidence float64 `json:"confidence"`
}

// CategorizeResult carries the assignments plus invocation metadata.
type CategorizeResult struct {
	Assignments []Assignment
	Meta        *InvokeResult
}

type categorizePayload struct {
	Assignments []Assignment `json:"assignments"`
}

const categorizeSystem = "You categorize grocery items. Assign each item to exactly one of the given categories and report a confidence between 0 and 1. Use only the provided item and category ids."

const categorizeSchema = `{"assignments":[{"item_id":"string","category_id":"string","confidence":0.0}]}`

// Categorize assigns each item to a category. The response is validated
// structurally: every input item must appear exactly once and only known ids
// may be referenced; any violation rejects the whole batch with
// llm.ErrInvalidModelOutput.
func (s *CategorizeService) Categorize(ctx context.Context, userID string, items []CatalogItem, categories []Category) (*CategorizeResult, error) {
	itemsJSON, _ := json.Marshal(items)
	catsJSON, _ := json.Marshal(categories)
	prompt := fmt.Sprintf("Items:\n%s\n\nCategories:\n%s", itemsJSON, catsJSON)

	res, err := s.Gateway.Invoke(ctx, InvokeRequest{
		UserID:   userID,
		Action:   domain.ActionCategorizeItems,
		KeyParts: []any{items, categories},
		Call: llm.CallConfig{
			System:     categorizeSystem,
			Prompt:     prompt,
			SchemaHint: categorizeSchema,
		},
	})
	if err != nil {
		return nil, err
	}

	var payload categorizePayload
	if err := json.Unmarshal(res.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrInvalidModelOutput, err)
	}

	assignments, err := validateAssignments(items, categories, payload.Assignments)
	if err != nil {
		return nil, err
	}
	return &CategorizeResult{Assignments: assignments, Meta: res}, nil
}

// validateAssignments enforces the exactly-one-per-item contract and applies
// the confidence floor.
func validateAssignments(items []CatalogItem, categories []Category, in []Assignment) ([]Assignment, error) {
	knownItems := make(map[string]bool, len(items))
	for _, it := range items {
		knownItems[it.ID] = true
	}
	knownCats := make(map[string]bool, len(categories))
	for _, c := range categories {
		knownCats[c.ID] = true
	}

	seen := make(map[string]bool, len(in))
	out := make([]Assignment, 0, len(in))
	for _, a := range in {
		if !knownItems[a.ItemID] {
			return nil, fmt.Errorf("%w: unknown item id %q", llm.ErrInvalidModelOutput, a.ItemID)
		}
		if seen[a.ItemID] {
			return nil, fmt.Errorf("%w: duplicate assignment for item %q", llm.ErrInvalidModelOutput, a.ItemID)
		}
		seen[a.ItemID] = true

		if a.CategoryID != "" && !knownCats[a.CategoryID] {
			return nil, fmt.Errorf("%w: unknown category id %q", llm.ErrInvalidModelOutput, a.CategoryID)
		}
		if a.Confidence < minAssignConfidence {
			a.CategoryID = ""
		}
		out = append(out, a)
	}
	if len(seen) != len(items) {
		return nil, fmt.Errorf("%w: %d of %d items assigned", llm.ErrInvalidModelOutput, len(seen), len(items))
	}
	return out, nil
}
