// Package services – Gateway
//
// The Gateway is the single entry point every AI action goes through. One
// Invoke runs the full pipeline:
//
//	subscription (lazy trial) → feature gate → quota → cache → single-flight
//	model call → cache write → audit
//
// Cache failures degrade to a model call; audit failures are swallowed; quota
// and feature denials stop the pipeline before any model spend.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pantryplan/ai-gateway/internal/cache"
	"github.com/pantryplan/ai-gateway/internal/clock"
	"github.com/pantryplan/ai-gateway/internal/domain"
	"github.com/pantryplan/ai-gateway/internal/llm"
)

// Gateway composes the subscription, quota, cache, model, and audit layers.
// All fields must be set before first use; TTLs and ModelTimeout have
// defaults applied by TTLFor / callTimeout when left zero.
type Gateway struct {
	Subs  *SubscriptionService
	Quota *QuotaService
	Audit *AuditService
	Cache cache.Store
	Model llm.Client
	Clock clock.Clock

	// ModelTimeout bounds one upstream model call (not the whole Invoke).
	ModelTimeout time.Duration
	// TTLs maps actions to cache lifetimes; DefaultTTL covers the rest.
	TTLs       map[domain.Action]time.Duration
	DefaultTTL time.Duration

	flight singleflight.Group
}

// InvokeRequest is one gateway invocation.
type InvokeRequest struct {
	UserID string
	Action domain.Action

	// KeyParts are the logical inputs the cache key is derived from. They
	// must capture everything that affects the model output for this call.
	KeyParts []any

	// Call is the model invocation to run on a cache miss.
	Call llm.CallConfig
}

// InvokeResult is the outcome of a successful invocation.
type InvokeResult struct {
	// Payload is the validated JSON the model (or cache) produced.
	Payload json.RawMessage
	// Usage is nil on cache hits and when the provider reported nothing.
	Usage *llm.Usage
	// CacheHit is true when Payload came from the cache.
	CacheHit bool
	// Coalesced is true when this invocation joined another caller's
	// in-flight model call instead of issuing its own.
	Coalesced bool
	// QuotaUsed / QuotaLimit describe today's counter after this call
	// (limit 0 = unlimited).
	QuotaUsed  int
	QuotaLimit int
}

// flightResult is what one winner of the single-flight group hands to every
// joined caller.
type flightResult struct {
	payload json.RawMessage
	usage   *llm.Usage
}

const (
	defaultModelTimeout = 60 * time.Second
	fallbackTTL         = 6 * time.Hour
)

// TTLFor returns the cache lifetime for an action.
func (g *Gateway) TTLFor(a domain.Action) time.Duration {
	if ttl, ok := g.TTLs[a]; ok && ttl > 0 {
		return ttl
	}
	if g.DefaultTTL > 0 {
		return g.DefaultTTL
	}
	return fallbackTTL
}

func (g *Gateway) callTimeout() time.Duration {
	if g.ModelTimeout > 0 {
		return g.ModelTimeout
	}
	return defaultModelTimeout
}

// Invoke runs the full gateway pipeline for one action.
//
// Error contract: *FeatureNotAvailableError and *QuotaExceededError are
// denials before any model spend; ErrStoreUnavailable means the ledger could
// not be consulted; llm.ErrEmptyResponse, llm.ErrInvalidModelOutput, and
// transport errors come from the model path. Quota consumed by a failed model
// call is not refunded.
func (g *Gateway) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	tr := otel.Tracer("services/Gateway")
	ctx, span := tr.Start(ctx, "Invoke",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("action", string(req.Action)),
		),
	)
	defer span.End()

	start := g.Clock.Now()

	sub, err := g.Subs.GetOrCreate(ctx, req.UserID)
	if err != nil {
		gatewayRequests.WithLabelValues(string(req.Action), outcomeStoreError).Inc()
		return nil, err
	}

	if feature, ok := domain.FeatureFor(req.Action); ok && !sub.Plan.FeatureEnabled(feature) {
		gatewayRequests.WithLabelValues(string(req.Action), outcomeFeatureDenied).Inc()
		return nil, &FeatureNotAvailableError{Feature: feature}
	}

	limit := sub.Plan.DailyLimit(req.Action)
	allowed, current, err := g.Quota.CheckAndIncrement(ctx, req.UserID, req.Action, limit)
	if err != nil {
		gatewayRequests.WithLabelValues(string(req.Action), outcomeStoreError).Inc()
		return nil, err
	}
	if !allowed {
		gatewayRequests.WithLabelValues(string(req.Action), outcomeQuotaExceeded).Inc()
		return nil, &QuotaExceededError{Action: req.Action, Current: current, Limit: limit}
	}

	key := cache.DeriveKey(string(req.Action), req.KeyParts...)
	span.SetAttributes(attribute.String("cache.key", key))

	if payload, ok := g.cacheGet(ctx, key); ok {
		gatewayCacheHits.WithLabelValues(string(req.Action)).Inc()
		gatewayRequests.WithLabelValues(string(req.Action), outcomeCacheHit).Inc()
		res := &InvokeResult{
			Payload:    payload,
			CacheHit:   true,
			QuotaUsed:  current,
			QuotaLimit: limit,
		}
		g.audit(ctx, req, res, start, nil)
		return res, nil
	}
	gatewayCacheMisses.WithLabelValues(string(req.Action)).Inc()

	v, err, shared := g.flight.Do(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout())
		defer cancel()

		callStart := time.Now()
		payload, usage, err := llm.CallStructured(callCtx, g.Model, req.Call)
		gatewayModelDuration.WithLabelValues(string(req.Action)).Observe(time.Since(callStart).Seconds())
		if err != nil {
			return nil, err
		}

		g.cacheSet(ctx, key, payload, g.TTLFor(req.Action))
		return &flightResult{payload: payload, usage: usage}, nil
	})
	if err != nil {
		gatewayRequests.WithLabelValues(string(req.Action), outcomeModelError).Inc()
		res := &InvokeResult{QuotaUsed: current, QuotaLimit: limit, Coalesced: shared}
		g.audit(ctx, req, res, start, err)
		return nil, err
	}

	fr := v.(*flightResult)
	if shared {
		gatewayCoalesced.WithLabelValues(string(req.Action)).Inc()
	}
	gatewayRequests.WithLabelValues(string(req.Action), outcomeSuccess).Inc()

	res := &InvokeResult{
		Payload:    fr.payload,
		Usage:      fr.usage,
		Coalesced:  shared,
		QuotaUsed:  current,
		QuotaLimit: limit,
	}
	g.audit(ctx, req, res, start, nil)
	return res, nil
}

// InvokeStream is the streaming variant: deltas go to sink as they arrive.
// Streaming responses bypass the cache and single-flight group: deltas are
// delivered live per caller and cannot be replayed to a joiner.
func (g *Gateway) InvokeStream(ctx context.Context, req InvokeRequest, sink func(delta string)) (*InvokeResult, error) {
	tr := otel.Tracer("services/Gateway")
	ctx, span := tr.Start(ctx, "InvokeStream",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.String("action", string(req.Action)),
		),
	)
	defer span.End()

	start := g.Clock.Now()

	sub, err := g.Subs.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if feature, ok := domain.FeatureFor(req.Action); ok && !sub.Plan.FeatureEnabled(feature) {
		return nil, &FeatureNotAvailableError{Feature: feature}
	}

	limit := sub.Plan.DailyLimit(req.Action)
	allowed, current, err := g.Quota.CheckAndIncrement(ctx, req.UserID, req.Action, limit)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, &QuotaExceededError{Action: req.Action, Current: current, Limit: limit}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout())
	defer cancel()

	payload, usage, err := llm.CallStructuredStream(callCtx, g.Model, req.Call, sink)
	res := &InvokeResult{
		Payload:    payload,
		Usage:      usage,
		QuotaUsed:  current,
		QuotaLimit: limit,
	}
	g.audit(ctx, req, res, start, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// cacheGet reads the cache, treating any store error as a miss. A broken
// cache must never block a model call.
func (g *Gateway) cacheGet(ctx context.Context, key string) (json.RawMessage, bool) {
	if g.Cache == nil {
		return nil, false
	}
	val, found, err := g.Cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return nil, false
	}
	if !found {
		return nil, false
	}
	return json.RawMessage(val), true
}

// cacheSet writes the cache, logging and swallowing failures.
func (g *Gateway) cacheSet(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if g.Cache == nil {
		return
	}
	if err := g.Cache.Set(ctx, key, payload, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// audit writes the invocation record; one entry per Invoke, hit or miss,
// success or failure.
func (g *Gateway) audit(ctx context.Context, req InvokeRequest, res *InvokeResult, start time.Time, callErr error) {
	if g.Audit == nil {
		return
	}

	e := &domain.AuditEntry{
		UserID:     req.UserID,
		Action:     req.Action,
		Input:      req.Call.Prompt,
		Success:    callErr == nil,
		DurationMS: g.Clock.Now().Sub(start).Milliseconds(),
		CacheHit:   res.CacheHit,
	}
	if callErr == nil && res.Payload != nil {
		out := string(res.Payload)
		e.Output = &out
	}
	if callErr != nil {
		msg := callErr.Error()
		e.Error = &msg
	}
	if u := res.Usage; u != nil {
		e.PromptTokens = intPtr(u.PromptTokens)
		e.CompletionTokens = intPtr(u.CompletionTokens)
		e.TotalTokens = intPtr(u.TotalTokens)
	}
	g.Audit.Record(ctx, e)
}

func intPtr(v int) *int { return &v }

// IsDenial reports whether err is a policy denial (feature gate or quota)
// rather than a system failure.
func IsDenial(err error) bool {
	var fe *FeatureNotAvailableError
	var qe *QuotaExceededError
	return errors.As(err, &fe) || errors.As(err, &qe)
}
