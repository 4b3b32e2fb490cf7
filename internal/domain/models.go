// Package domain defines the persistence models for plans, subscriptions,
// usage records, and audit entries. These types are mapped with GORM and form
// the core data layer of the AI gateway.
package domain

import "time"

// Action identifies a quota-limited gateway operation.
type Action string

// Actions routed through the gateway. Each has its own daily quota column on
// the plan and its own cache TTL class.
const (
	ActionSuggestRecipes  Action = "suggest_recipes"
	ActionCategorizeItems Action = "categorize_items"
	ActionImportRecipe    Action = "import_recipe"
)

// Feature identifies a plan-gated capability.
type Feature string

// Plan feature flags.
const (
	FeatureSuggestRecipes  Feature = "can_suggest_recipes"
	FeatureCategorizeItems Feature = "can_categorize_items"
	FeatureImportRecipes   Feature = "can_import_recipes"
)

// PlanType identifies a subscription tier.
type PlanType string

// Subscription tiers. Free is the baseline tier trials fall back to; Pro is
// the mid tier new trials start on.
const (
	PlanFree   PlanType = "free"
	PlanPro    PlanType = "pro"
	PlanFamily PlanType = "family"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

// Subscription lifecycle states. Trial is the only state the system leaves
// automatically (via the expiry sweep); expired and cancelled are terminal
// for automatic logic.
const (
	StatusTrial     SubscriptionStatus = "trial"
	StatusActive    SubscriptionStatus = "active"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// Plan is an immutable catalog entry describing a tier's feature flags and
// per-action daily limits. A limit of 0 means unlimited. Plans are seeded
// once at startup and read-only at runtime.
type Plan struct {
	ID   string   `json:"id"   gorm:"type:char(36);primaryKey"`
	Type PlanType `json:"type" gorm:"type:varchar(16);not null;uniqueIndex"`

	CanSuggestRecipes  bool `json:"can_suggest_recipes"  gorm:"not null;default:false"`
	CanCategorizeItems bool `json:"can_categorize_items" gorm:"not null;default:false"`
	CanImportRecipes   bool `json:"can_import_recipes"   gorm:"not null;default:false"`

	MaxRecipeSuggestionsPerDay   int `json:"max_recipe_suggestions_per_day"   gorm:"not null;default:0"`
	MaxItemCategorizationsPerDay int `json:"max_item_categorizations_per_day" gorm:"not null;default:0"`
	MaxRecipeImportsPerDay       int `json:"max_recipe_imports_per_day"       gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Plan.
func (Plan) TableName() string { return "plans" }

// FeatureEnabled reports whether the plan grants the given feature.
func (p Plan) FeatureEnabled(f Feature) bool {
	switch f {
	case FeatureSuggestRecipes:
		return p.CanSuggestRecipes
	case FeatureCategorizeItems:
		return p.CanCategorizeItems
	case FeatureImportRecipes:
		return p.CanImportRecipes
	default:
		return false
	}
}

// DailyLimit returns the plan's daily limit for an action (0 = unlimited).
// Unknown actions are unlimited; the feature gate is the authoritative check.
func (p Plan) DailyLimit(a Action) int {
	switch a {
	case ActionSuggestRecipes:
		return p.MaxRecipeSuggestionsPerDay
	case ActionCategorizeItems:
		return p.MaxItemCategorizationsPerDay
	case ActionImportRecipe:
		return p.MaxRecipeImportsPerDay
	default:
		return 0
	}
}

// FeatureFor maps an action to the feature flag gating it.
func FeatureFor(a Action) (Feature, bool) {
	switch a {
	case ActionSuggestRecipes:
		return FeatureSuggestRecipes, true
	case ActionCategorizeItems:
		return FeatureCategorizeItems, true
	case ActionImportRecipe:
		return FeatureImportRecipes, true
	default:
		return "", false
	}
}

// Subscription links a user to a plan and carries the lifecycle state.
// Exactly one subscription exists per user (created lazily on first
// AI-gated operation).
//
// Invariant: status=trial implies TrialEndsAt is set. Once TrialEndsAt
// passes, the lifecycle sweep moves the row to expired on the free plan;
// that is the only automatic transition.
type Subscription struct {
	ID                 string             `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID             string             `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex"`
	PlanID             string             `json:"plan_id" gorm:"type:char(36);not null;index"`
	Status             SubscriptionStatus `json:"status"  gorm:"type:varchar(16);not null;index;check:status IN ('trial','active','expired','cancelled')"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at,omitempty" gorm:"index"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`

	// Plan is the catalog entry this subscription is on.
	Plan Plan `json:"-" gorm:"foreignKey:PlanID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// UsageRecord is the per-user, per-action, per-day quota ledger row.
// Date is the UTC calendar date ("2006-01-02"); the quota resets at the
// midnight boundary, not 24h after first use. Rows are never deleted and
// Count is monotonically non-decreasing within a day.
type UsageRecord struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_usage_user_action_date,priority:1"`
	Action    Action    `json:"action"  gorm:"type:varchar(32);not null;uniqueIndex:ux_usage_user_action_date,priority:2"`
	Date      string    `json:"date"    gorm:"type:char(10);not null;uniqueIndex:ux_usage_user_action_date,priority:3"`
	Count     int       `json:"count"   gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for UsageRecord.
func (UsageRecord) TableName() string { return "usage_records" }

// AuditEntry records one gateway invocation, success or failure. Entries are
// append-only; nothing in the system updates or deletes them.
type AuditEntry struct {
	ID         string  `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID     string  `json:"user_id" gorm:"type:varchar(64);not null;index:idx_audit_user_created,priority:1"`
	Action     Action  `json:"action"  gorm:"type:varchar(32);not null"`
	Input      string  `json:"input"   gorm:"type:text;not null"`
	Output     *string `json:"output,omitempty" gorm:"type:text"`
	Success    bool    `json:"success" gorm:"not null"`
	Error      *string `json:"error,omitempty" gorm:"type:text"`
	DurationMS int64   `json:"duration_ms" gorm:"not null"`
	CacheHit   bool    `json:"cache_hit" gorm:"not null;default:false"`

	// Token usage as reported by the provider. Nil means the provider did
	// not report usage, which is distinct from zero.
	PromptTokens     *int `json:"prompt_tokens,omitempty"`
	CompletionTokens *int `json:"completion_tokens,omitempty"`
	TotalTokens      *int `json:"total_tokens,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_audit_user_created,priority:2"`
}

// TableName returns the database table name for AuditEntry.
func (AuditEntry) TableName() string { return "audit_entries" }
