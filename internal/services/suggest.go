// Package services – SuggestService
//
// Recipe suggestions from a list of pantry ingredients, routed through the
// gateway pipeline.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pantryplan/ai-gateway/internal/domain"
	"github.com/pantryplan/ai-gateway/internal/llm"
)

// SuggestService turns ingredient lists into recipe suggestions.
type SuggestService struct {
	Gateway *Gateway
}

// RecipeSuggestion is one suggested recipe.
type RecipeSuggestion struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	// MissingIngredients lists what the user would still need to buy.
	MissingIngredients []string `json:"missing_ingredients,omitempty"`
}

// SuggestResult carries the suggestions plus invocation metadata.
type SuggestResult struct {
	Suggestions []RecipeSuggestion
	Meta        *InvokeResult
}

type suggestPayload struct {
	Recipes []RecipeSuggestion `json:"recipes"`
}

const suggestSystem = "You are a cooking assistant. Given a list of pantry ingredients and optional dietary notes, suggest recipes the user can cook. Prefer recipes needing few extra ingredients."

const suggestSchema = `{"recipes":[{"name":"string","description":"string","ingredients":["string"],"steps":["string"],"missing_ingredients":["string"]}]}`

// Suggest asks the model for recipes using the given ingredients. The cache
// key is derived from the ingredient list and notes, so the same pantry asked
// twice (in any order, any casing) is served from cache.
func (s *SuggestService) Suggest(ctx context.Context, userID string, ingredients []string, notes string) (*SuggestResult, error) {
	prompt := fmt.Sprintf("Ingredients on hand: %s.", strings.Join(ingredients, ", "))
	if notes != "" {
		prompt += " Dietary notes: " + notes + "."
	}

	res, err := s.Gateway.Invoke(ctx, InvokeRequest{
		UserID:   userID,
		Action:   domain.ActionSuggestRecipes,
		KeyParts: []any{ingredients, notes},
		Call: llm.CallConfig{
			System:     suggestSystem,
			Prompt:     prompt,
			SchemaHint: suggestSchema,
		},
	})
	if err != nil {
		return nil, err
	}

	var payload suggestPayload
	if err := json.Unmarshal(res.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrInvalidModelOutput, err)
	}
	return &SuggestResult{Suggestions: payload.Recipes, Meta: res}, nil
}
