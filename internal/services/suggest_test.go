package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/pantryplan/ai-gateway/internal/cache"
)

func TestSuggest_EndToEnd(t *testing.T) {
	model := &countingClient{
		payload: `{"recipes":[{"name":"Omelette","description":"Quick","ingredients":["eggs","butter"],"steps":["whisk","fry"]}]}`,
	}
	gw, _ := newGateway(t, model, cache.NewMemory())
	svc := &SuggestService{Gateway: gw}

	res, err := svc.Suggest(context.Background(), "u1", []string{"eggs", "butter"}, "")
	if err != nil {
		t.Fatalf("Suggest error: %v", err)
	}
	if len(res.Suggestions) != 1 || res.Suggestions[0].Name != "Omelette" {
		t.Fatalf("unexpected suggestions: %+v", res.Suggestions)
	}
	if res.Meta.CacheHit {
		t.Fatalf("first call must miss")
	}
}

func TestSuggest_IngredientOrderHitsCache(t *testing.T) {
	model := &countingClient{payload: `{"recipes":[]}`}
	gw, _ := newGateway(t, model, cache.NewMemory())
	svc := &SuggestService{Gateway: gw}
	ctx := context.Background()

	if _, err := svc.Suggest(ctx, "u1", []string{"Eggs", "Milk"}, ""); err != nil {
		t.Fatalf("first call: %v", err)
	}
	res, err := svc.Suggest(ctx, "u1", []string{"milk", "eggs"}, "")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !res.Meta.CacheHit {
		t.Fatalf("reordered/recased ingredients should hit the cache")
	}
	if got := atomic.LoadInt64(&model.calls); got != 1 {
		t.Fatalf("model called %d times, want 1", got)
	}
}

func TestImport_RequiresSource(t *testing.T) {
	gw, _ := newGateway(t, &countingClient{payload: `{}`}, nil)
	svc := &ImportService{Gateway: gw}

	_, err := svc.Import(context.Background(), "u1", "", "")
	if !errors.Is(err, ErrEmptyImportSource) {
		t.Fatalf("expected ErrEmptyImportSource, got %v", err)
	}
}

func TestImport_EndToEnd(t *testing.T) {
	model := &countingClient{
		payload: `{"name":"Pancakes","description":"Fluffy","servings":4,"ingredients":["flour","milk","eggs"],"steps":["mix","cook"]}`,
	}
	gw, _ := newGateway(t, model, cache.NewMemory())
	svc := &ImportService{Gateway: gw}

	res, err := svc.Import(context.Background(), "u1", "Pancakes: flour, milk, eggs. Mix and cook.", "")
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if res.Recipe == nil || res.Recipe.Name != "Pancakes" || res.Recipe.Servings != 4 {
		t.Fatalf("unexpected recipe: %+v", res.Recipe)
	}
}
