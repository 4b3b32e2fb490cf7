// AI endpoint handlers.
//
// This file exposes the model-backed endpoints:
//   - POST /ai/suggest-recipes   (recipe suggestions from pantry ingredients)
//   - POST /ai/categorize        (batch item categorization)
//   - POST /ai/import-recipe     (structured recipe extraction)
//   - POST /ai/invoke            (generic gateway invocation, optional SSE)
//
// Handlers are transport-thin: they validate input, call the gateway
// services, and translate results into HTTP responses. All pipeline errors
// funnel through failErr for a consistent status/code mapping.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pantryplan/ai-gateway/internal/domain"
	"github.com/pantryplan/ai-gateway/internal/llm"
	"github.com/pantryplan/ai-gateway/internal/services"
)

// Handlers groups the HTTP endpoints of the gateway API.
type Handlers struct {
	Suggest    *services.SuggestService
	Categorize *services.CategorizeService
	Import     *services.ImportService
	Gateway    *services.Gateway
	Subs       *services.SubscriptionService
	Quota      *services.QuotaService
	Audit      *services.AuditService
}

// userID extracts the authenticated user id from the Gin context (set by
// upstream middleware). If absent, it falls back to the "X-User-ID" header
// (tests use it), and finally to "demo-user".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// InvokeMeta is the invocation metadata echoed on AI responses.
type InvokeMeta struct {
	CacheHit   bool       `json:"cache_hit"`
	Coalesced  bool       `json:"coalesced"`
	QuotaUsed  int        `json:"quota_used"`
	QuotaLimit int        `json:"quota_limit"` // 0 = unlimited
	Usage      *llm.Usage `json:"usage,omitempty"`
}

func meta(r *services.InvokeResult) InvokeMeta {
	return InvokeMeta{
		CacheHit:   r.CacheHit,
		Coalesced:  r.Coalesced,
		QuotaUsed:  r.QuotaUsed,
		QuotaLimit: r.QuotaLimit,
		Usage:      r.Usage,
	}
}

// SuggestRecipesRequest is the JSON payload for recipe suggestions.
type SuggestRecipesRequest struct {
	Ingredients []string `json:"ingredients" binding:"required,min=1"`
	Notes       string   `json:"notes"`
}

// SuggestRecipesResponse wraps the suggestions and invocation metadata.
type SuggestRecipesResponse struct {
	Recipes []services.RecipeSuggestion `json:"recipes"`
	Meta    InvokeMeta                  `json:"meta"`
}

// CategorizeRequest is the JSON payload for batch categorization.
type CategorizeRequest struct {
	Items      []services.CatalogItem `json:"items" binding:"required,min=1"`
	Categories []services.Category    `json:"categories" binding:"required,min=1"`
}

// CategorizeResponse wraps the assignments and invocation metadata.
type CategorizeResponse struct {
	Assignments []services.Assignment `json:"assignments"`
	Meta        InvokeMeta            `json:"meta"`
}

// ImportRecipeRequest is the JSON payload for recipe import. At least one of
// Text or ImageURL must be set.
type ImportRecipeRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
}

// ImportRecipeResponse wraps the extracted recipe and invocation metadata.
type ImportRecipeResponse struct {
	Recipe *services.ImportedRecipe `json:"recipe"`
	Meta   InvokeMeta               `json:"meta"`
}

// InvokeRequest is the generic gateway invocation payload.
type InvokeRequest struct {
	Action     string `json:"action" binding:"required"`
	System     string `json:"system"`
	Prompt     string `json:"prompt" binding:"required"`
	SchemaHint string `json:"schema_hint"`
	Stream     bool   `json:"stream"`
}

// InvokeResponse wraps the raw JSON payload and invocation metadata.
type InvokeResponse struct {
	Payload json.RawMessage `json:"payload"`
	Meta    InvokeMeta      `json:"meta"`
}

//
// Handlers
//

// SuggestRecipes handles POST /ai/suggest-recipes.
func (h *Handlers) SuggestRecipes(c *gin.Context) {
	var req SuggestRecipesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ingredients required")
		return
	}

	res, err := h.Suggest.Suggest(c.Request.Context(), userID(c), req.Ingredients, req.Notes)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SuggestRecipesResponse{Recipes: res.Suggestions, Meta: meta(res.Meta)})
}

// CategorizeItems handles POST /ai/categorize.
func (h *Handlers) CategorizeItems(c *gin.Context) {
	var req CategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "items and categories required")
		return
	}
	for _, it := range req.Items {
		if strings.TrimSpace(it.ID) == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "every item needs an id")
			return
		}
	}

	res, err := h.Categorize.Categorize(c.Request.Context(), userID(c), req.Items, req.Categories)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CategorizeResponse{Assignments: res.Assignments, Meta: meta(res.Meta)})
}

// ImportRecipe handles POST /ai/import-recipe.
func (h *Handlers) ImportRecipe(c *gin.Context) {
	var req ImportRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.ImageURL) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text or image_url required")
		return
	}

	res, err := h.Import.Import(c.Request.Context(), userID(c), req.Text, req.ImageURL)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ImportRecipeResponse{Recipe: res.Recipe, Meta: meta(res.Meta)})
}

// Invoke handles POST /ai/invoke: the generic gateway entry point for
// actions without a dedicated endpoint. With "stream": true, deltas are
// forwarded as SSE events and the final payload arrives as a terminal
// "result" event.
func (h *Handlers) Invoke(c *gin.Context) {
	var req InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "action and prompt required")
		return
	}

	action := domain.Action(req.Action)
	if _, known := domain.FeatureFor(action); !known {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown action")
		return
	}

	inv := services.InvokeRequest{
		UserID:   userID(c),
		Action:   action,
		KeyParts: []any{req.System, req.Prompt, req.SchemaHint},
		Call: llm.CallConfig{
			System:     req.System,
			Prompt:     req.Prompt,
			SchemaHint: req.SchemaHint,
		},
	}

	if req.Stream {
		h.invokeStream(c, inv)
		return
	}

	res, err := h.Gateway.Invoke(c.Request.Context(), inv)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, InvokeResponse{Payload: res.Payload, Meta: meta(res)})
}

// invokeStream writes the streaming variant as server-sent events: one
// "delta" event per text chunk, then a terminal "result" (or "error") event.
func (h *Handlers) invokeStream(c *gin.Context, inv services.InvokeRequest) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	writeEvent := func(event string, data any) {
		payload, err := json.Marshal(data)
		if err != nil {
			return
		}
		c.Writer.WriteString("event: " + event + "\n")
		c.Writer.WriteString("data: " + string(payload) + "\n\n")
		c.Writer.Flush()
	}

	res, err := h.Gateway.InvokeStream(c.Request.Context(), inv, func(delta string) {
		writeEvent("delta", gin.H{"text": delta})
	})
	if err != nil {
		writeEvent("error", gin.H{"code": streamErrCode(err), "message": err.Error()})
		return
	}
	writeEvent("result", InvokeResponse{Payload: res.Payload, Meta: meta(res)})
}

// streamErrCode mirrors failErr's code mapping for the SSE error event,
// where the HTTP status has already been committed.
func streamErrCode(err error) string {
	var q *services.QuotaExceededError
	switch {
	case errors.As(err, &q):
		return ErrCodeQuotaExceeded
	case services.IsDenial(err):
		return ErrCodeFeatureNotAvailable
	case errors.Is(err, llm.ErrEmptyResponse):
		return ErrCodeEmptyModelResponse
	case errors.Is(err, llm.ErrInvalidModelOutput):
		return ErrCodeInvalidModelOutput
	case errors.Is(err, services.ErrStoreUnavailable):
		return ErrCodeStoreUnavailable
	default:
		return ErrCodeModelFailed
	}
}
