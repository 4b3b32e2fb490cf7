package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pantryplan/ai-gateway/internal/cache"
	"github.com/pantryplan/ai-gateway/internal/clock"
	"github.com/pantryplan/ai-gateway/internal/config"
	"github.com/pantryplan/ai-gateway/internal/llm"
	"github.com/pantryplan/ai-gateway/internal/repo"
)

// stubModel returns a fixed JSON payload for every call.
type stubModel struct {
	payload string
	calls   int
}

func (s *stubModel) Send(_ context.Context, _ llm.Request) (*llm.Response, error) {
	s.calls++
	return &llm.Response{Text: s.payload, Usage: &llm.Usage{TotalTokens: 5}}, nil
}

func (s *stubModel) SendStream(ctx context.Context, req llm.Request, onDelta func(string)) (*llm.Response, error) {
	resp, err := s.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if onDelta != nil {
		onDelta(resp.Text)
	}
	return resp, nil
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		// High limits so the HTTP rate limiter never interferes with tests.
		RateRPS:   1000,
		RateBurst: 1000,
		Model:     config.ModelConfig{Timeout: 5 * time.Second},
		Cache: config.CacheConfig{
			SuggestTTL:    time.Hour,
			CategorizeTTL: time.Hour,
			DefaultTTL:    time.Hour,
		},
		Trial: config.TrialConfig{Duration: 14 * 24 * time.Hour, SweepInterval: time.Hour},
		OTEL:  config.OTELConfig{ServiceName: "ai-gateway-test"},
	}
}

func newRouter(t *testing.T, model llm.Client) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if err := repo.SeedPlans(context.Background(), db, repo.DefaultPlans()); err != nil {
		t.Fatalf("seed plans: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r, db, cache.NewMemory(), model, clock.System(), testConfig())
	return r, db
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r, _ := newRouter(t, &stubModel{payload: `{}`})
	w := doJSON(t, r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	r, _ := newRouter(t, &stubModel{payload: `{}`})
	w := doJSON(t, r, http.MethodGet, "/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"not_found"`) {
		t.Fatalf("missing error envelope: %s", w.Body.String())
	}
}

func TestRouter_SuggestRecipes(t *testing.T) {
	model := &stubModel{payload: `{"recipes":[{"name":"Toast","description":"d","ingredients":["bread"],"steps":["toast it"]}]}`}
	r, _ := newRouter(t, model)

	w := doJSON(t, r, http.MethodPost, "/api/v1/ai/suggest-recipes", "u1",
		`{"ingredients":["bread","butter"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Recipes []struct {
			Name string `json:"name"`
		} `json:"recipes"`
		Meta struct {
			CacheHit   bool `json:"cache_hit"`
			QuotaUsed  int  `json:"quota_used"`
			QuotaLimit int  `json:"quota_limit"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Recipes) != 1 || resp.Recipes[0].Name != "Toast" {
		t.Fatalf("unexpected recipes: %+v", resp.Recipes)
	}
	if resp.Meta.CacheHit || resp.Meta.QuotaUsed != 1 || resp.Meta.QuotaLimit != 5 {
		t.Fatalf("unexpected meta: %+v", resp.Meta)
	}

	// Identical request hits the cache.
	w2 := doJSON(t, r, http.MethodPost, "/api/v1/ai/suggest-recipes", "u1",
		`{"ingredients":["butter","BREAD"]}`)
	if w2.Code != http.StatusOK {
		t.Fatalf("second status = %d", w2.Code)
	}
	if !strings.Contains(w2.Body.String(), `"cache_hit":true`) {
		t.Fatalf("expected cache hit: %s", w2.Body.String())
	}
	if model.calls != 1 {
		t.Fatalf("model calls = %d, want 1", model.calls)
	}
}

func TestRouter_SuggestRecipes_BadRequest(t *testing.T) {
	r, _ := newRouter(t, &stubModel{payload: `{}`})
	w := doJSON(t, r, http.MethodPost, "/api/v1/ai/suggest-recipes", "u1", `{"ingredients":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRouter_QuotaExhaustion(t *testing.T) {
	model := &stubModel{payload: `{"recipes":[]}`}
	r, _ := newRouter(t, model)

	// Pro trial allows 5 suggestions/day; distinct bodies dodge the cache.
	for i := 0; i < 5; i++ {
		body := fmt.Sprintf(`{"ingredients":["item-%d"]}`, i)
		w := doJSON(t, r, http.MethodPost, "/api/v1/ai/suggest-recipes", "quota-user", body)
		if w.Code != http.StatusOK {
			t.Fatalf("call %d status = %d body = %s", i, w.Code, w.Body.String())
		}
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/ai/suggest-recipes", "quota-user",
		`{"ingredients":["item-final"]}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"quota_exceeded"`) {
		t.Fatalf("missing quota_exceeded code: %s", w.Body.String())
	}
}

func TestRouter_Categorize(t *testing.T) {
	model := &stubModel{payload: `{"assignments":[{"item_id":"i1","category_id":"c1","confidence":0.9}]}`}
	r, _ := newRouter(t, model)

	w := doJSON(t, r, http.MethodPost, "/api/v1/ai/categorize", "u1",
		`{"items":[{"id":"i1","name":"Milk"}],"categories":[{"id":"c1","name":"Dairy"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"category_id":"c1"`) {
		t.Fatalf("missing assignment: %s", w.Body.String())
	}
}

func TestRouter_Categorize_InvalidModelOutput(t *testing.T) {
	// Response references an item that was never sent.
	model := &stubModel{payload: `{"assignments":[{"item_id":"ghost","category_id":"c1","confidence":0.9}]}`}
	r, _ := newRouter(t, model)

	w := doJSON(t, r, http.MethodPost, "/api/v1/ai/categorize", "u1",
		`{"items":[{"id":"i1","name":"Milk"}],"categories":[{"id":"c1","name":"Dairy"}]}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"invalid_model_output"`) {
		t.Fatalf("missing code: %s", w.Body.String())
	}
}

func TestRouter_ImportRecipe_RequiresSource(t *testing.T) {
	r, _ := newRouter(t, &stubModel{payload: `{}`})
	w := doJSON(t, r, http.MethodPost, "/api/v1/ai/import-recipe", "u1", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRouter_GenericInvoke(t *testing.T) {
	model := &stubModel{payload: `{"anything":true}`}
	r, _ := newRouter(t, model)

	w := doJSON(t, r, http.MethodPost, "/api/v1/ai/invoke", "u1",
		`{"action":"import_recipe","prompt":"extract this"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"anything":true`) {
		t.Fatalf("payload not passed through: %s", w.Body.String())
	}

	// Unknown actions are rejected before the pipeline runs.
	w2 := doJSON(t, r, http.MethodPost, "/api/v1/ai/invoke", "u1",
		`{"action":"mine_bitcoin","prompt":"x"}`)
	if w2.Code != http.StatusBadRequest {
		t.Fatalf("unknown action status = %d", w2.Code)
	}
}

func TestRouter_UsageAndSubscription(t *testing.T) {
	r, _ := newRouter(t, &stubModel{payload: `{"recipes":[]}`})

	// First contact lazily creates a pro trial.
	w := doJSON(t, r, http.MethodGet, "/api/v1/subscription", "fresh-user", "")
	if w.Code != http.StatusOK {
		t.Fatalf("subscription status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"trial"`) {
		t.Fatalf("expected trial subscription: %s", w.Body.String())
	}

	w2 := doJSON(t, r, http.MethodGet, "/api/v1/usage", "fresh-user", "")
	if w2.Code != http.StatusOK {
		t.Fatalf("usage status = %d", w2.Code)
	}
	var usage struct {
		Actions []struct {
			Action string `json:"action"`
			Used   int    `json:"used"`
			Limit  int    `json:"limit"`
		} `json:"actions"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &usage); err != nil {
		t.Fatalf("decode usage: %v", err)
	}
	if len(usage.Actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(usage.Actions))
	}
}

func TestRouter_AuditTrail(t *testing.T) {
	model := &stubModel{payload: `{"recipes":[]}`}
	r, _ := newRouter(t, model)

	_ = doJSON(t, r, http.MethodPost, "/api/v1/ai/suggest-recipes", "audit-user",
		`{"ingredients":["rice"]}`)

	w := doJSON(t, r, http.MethodGet, "/api/v1/audit", "audit-user", "")
	if w.Code != http.StatusOK {
		t.Fatalf("audit status = %d", w.Code)
	}
	var page struct {
		Entries []struct {
			Action  string `json:"action"`
			Success bool   `json:"success"`
		} `json:"entries"`
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if page.Total != 1 || len(page.Entries) != 1 || !page.Entries[0].Success {
		t.Fatalf("unexpected audit page: %+v", page)
	}
}

func TestRouter_SweepTrials(t *testing.T) {
	r, db := newRouter(t, &stubModel{payload: `{}`})

	// Create a subscription and push its trial end into the past.
	_ = doJSON(t, r, http.MethodGet, "/api/v1/subscription", "old-user", "")
	past := time.Now().Add(-48 * time.Hour).UTC()
	if err := db.Exec(`UPDATE subscriptions SET trial_ends_at = ? WHERE user_id = ?`, past, "old-user").Error; err != nil {
		t.Fatalf("age trial: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/api/v1/admin/sweep-trials", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("sweep status = %d body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"expired":1`) {
		t.Fatalf("expected one expiry: %s", w.Body.String())
	}

	// The demoted user now gets a feature denial.
	w2 := doJSON(t, r, http.MethodPost, "/api/v1/ai/suggest-recipes", "old-user",
		`{"ingredients":["rice"]}`)
	if w2.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w2.Code)
	}
	if !strings.Contains(w2.Body.String(), `"feature_not_available"`) {
		t.Fatalf("missing code: %s", w2.Body.String())
	}
}

func TestRouter_RequestIDPropagated(t *testing.T) {
	r, _ := newRouter(t, &stubModel{payload: `{}`})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Fatalf("X-Request-ID = %q, want fixed-id", got)
	}
}
