// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the classification pipeline over HTTP. The service
// layer composes the orchestrator, the router, and the trace collector into
// one request flow; the server layer is a thin gin wrapper around it.
package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tenantry/triage/internal/classify"
	"github.com/tenantry/triage/internal/router"
	"github.com/tenantry/triage/internal/tenant"
	"github.com/tenantry/triage/internal/trace"
)

// retryBaseDelay is the first wait between classification attempts; each
// further attempt doubles it.
const retryBaseDelay = 200 * time.Millisecond

// Service runs one message end to end: classify, decide escalation, route,
// and persist the trace.
type Service struct {
	store        *tenant.Store
	orchestrator *classify.Orchestrator
	router       *router.Router
	traces       *trace.Collector
	maxRetries   int
}

// NewService wires the request flow. The trace collector is optional;
// maxRetries bounds how many times a classification whose model path failed
// is re-run before the rule-based result is accepted.
func NewService(store *tenant.Store, orchestrator *classify.Orchestrator, r *router.Router, traces *trace.Collector, maxRetries int) *Service {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Service{
		store:        store,
		orchestrator: orchestrator,
		router:       r,
		traces:       traces,
		maxRetries:   maxRetries,
	}
}

// ProcessResponse is the full outcome of one processed message.
type ProcessResponse struct {
	EnquiryID  string                      `json:"enquiry_id"`
	TenantID   string                      `json:"tenant_id"`
	Result     classify.Result             `json:"result"`
	Escalation classify.EscalationDecision `json:"escalation"`
	Handler    string                      `json:"handler"`
	Fallback   bool                        `json:"fallback"`
	LatencyMs  int64                       `json:"latency_ms"`
}

// Process classifies and routes one message. The returned error is a tenant
// resolution or validation failure; a degraded model path is not an error.
func (s *Service) Process(ctx context.Context, req classify.Request) (*ProcessResponse, error) {
	if req.EnquiryID == "" {
		req.EnquiryID = "ENQ-" + uuid.New().String()[:8]
	}
	started := time.Now()

	outcome, decision, err := s.orchestrator.Classify(ctx, req)
	if err != nil {
		return nil, err
	}

	// Re-run while the model path keeps failing, within the configured
	// budget. The last outcome always stands: the rule-based floor means a
	// degraded answer, never no answer.
	backoff := retryBaseDelay
	for attempt := 0; outcome.Fallback && attempt < s.maxRetries; attempt++ {
		if err := sleepContext(ctx, backoff); err != nil {
			break
		}
		backoff *= 2

		log.WithField("enquiry_id", req.EnquiryID).
			Infof("Retrying after model-path failure | attempt=%d/%d", attempt+1, s.maxRetries)
		retried, retriedDecision, err := s.orchestrator.Classify(ctx, req)
		if err != nil {
			break
		}
		outcome, decision = retried, retriedDecision
	}

	profile, err := s.store.Get(req.TenantID)
	if err != nil {
		return nil, err
	}
	handler := s.router.Route(req, outcome.Result, profile)
	latency := time.Since(started)

	s.recordTrace(req, outcome, decision, handler, latency)

	return &ProcessResponse{
		EnquiryID:  req.EnquiryID,
		TenantID:   req.TenantID,
		Result:     outcome.Result,
		Escalation: decision,
		Handler:    handler,
		Fallback:   outcome.Fallback,
		LatencyMs:  latency.Milliseconds(),
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// recordTrace persists the outcome best-effort: a trace failure is logged and
// never surfaces to the caller.
func (s *Service) recordTrace(req classify.Request, outcome classify.Outcome, decision classify.EscalationDecision, handler string, latency time.Duration) {
	if s.traces == nil || !s.traces.IsEnabled() {
		return
	}

	record := &trace.Record{
		EnquiryID:        req.EnquiryID,
		TenantID:         req.TenantID,
		Domain:           outcome.Result.Domain,
		Intent:           outcome.Result.Intent,
		Priority:         string(outcome.Result.Priority),
		Sentiment:        string(outcome.Result.Sentiment),
		Method:           string(outcome.Result.Method),
		Confidence:       outcome.Result.Confidence,
		Handler:          handler,
		Escalated:        decision.Escalate,
		EscalationReason: decision.Reason,
		Fallback:         outcome.Fallback,
		LatencyMs:        latency.Milliseconds(),
		Entities:         outcome.Result.Entities,
		CustomerPhone:    req.CustomerPhone,
		PriorTurns:       req.PriorTurns,
	}

	// Detached context: the trace must not be lost to a cancelled request.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.traces.Record(ctx, record); err != nil {
		log.WithField("enquiry_id", req.EnquiryID).Warnf("Failed to record trace: %v", err)
	}
}

// ReloadTenants re-reads every tenant profile from disk. A successful reload
// fires the same notification hook as a watcher-triggered one.
func (s *Service) ReloadTenants() ([]string, error) {
	if err := s.store.Reload(); err != nil {
		return nil, err
	}
	if s.store.OnReload != nil {
		s.store.OnReload()
	}
	return s.store.IDs(), nil
}

// TenantIDs lists the loaded tenant identifiers.
func (s *Service) TenantIDs() []string {
	return s.store.IDs()
}
