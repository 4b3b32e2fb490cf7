// Package services – ImportService
//
// Structured recipe extraction from pasted text or a photographed recipe
// (image URL), routed through the gateway pipeline.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pantryplan/ai-gateway/internal/domain"
	"github.com/pantryplan/ai-gateway/internal/llm"
)

// ErrEmptyImportSource is returned when neither text nor an image was given.
var ErrEmptyImportSource = errors.New("recipe import requires text or an image URL")

// ImportService extracts a structured recipe from unstructured input.
type ImportService struct {
	Gateway *Gateway
}

// ImportedRecipe is the structured form of an imported recipe.
type ImportedRecipe struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Servings    int      `json:"servings,omitempty"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
}

// ImportResult carries the recipe plus invocation metadata.
type ImportResult struct {
	Recipe *ImportedRecipe
	Meta   *InvokeResult
}

const importSystem = "You extract recipes from raw text or photos. Return the recipe exactly as written; do not invent ingredients or steps that are not present in the source."

const importSchema = `{"name":"string","description":"string","servings":0,"ingredients":["string"],"steps":["string"]}`

// Import extracts a recipe from text and/or an image. At least one source
// must be provided.
func (s *ImportService) Import(ctx context.Context, userID, text, imageURL string) (*ImportResult, error) {
	if text == "" && imageURL == "" {
		return nil, ErrEmptyImportSource
	}

	prompt := "Extract the recipe from the following source."
	if text != "" {
		prompt += "\n\n" + text
	}

	res, err := s.Gateway.Invoke(ctx, InvokeRequest{
		UserID:   userID,
		Action:   domain.ActionImportRecipe,
		KeyParts: []any{text, imageURL},
		Call: llm.CallConfig{
			System:     importSystem,
			Prompt:     prompt,
			ImageURL:   imageURL,
			SchemaHint: importSchema,
		},
	})
	if err != nil {
		return nil, err
	}

	var recipe ImportedRecipe
	if err := json.Unmarshal(res.Payload, &recipe); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrInvalidModelOutput, err)
	}
	return &ImportResult{Recipe: &recipe, Meta: res}, nil
}
