// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classify

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tenantry/triage/internal/hooks"
	"github.com/tenantry/triage/internal/tenant"
)

// ProfileProvider resolves a tenant id to its current profile snapshot. The
// tenant store satisfies this.
type ProfileProvider interface {
	Get(tenantID string) (*tenant.TenantProfile, error)
}

// Orchestrator runs one message through the full pipeline: tenant resolution,
// classification with fallback, and escalation evaluation. It is stateless
// across requests and safe for concurrent use.
type Orchestrator struct {
	profiles   ProfileProvider
	classifier *ModelClassifier
	bus        *hooks.EventBus
}

// NewOrchestrator wires the pipeline. The event bus is optional; a nil bus
// disables event publication.
func NewOrchestrator(profiles ProfileProvider, classifier *ModelClassifier, bus *hooks.EventBus) *Orchestrator {
	return &Orchestrator{
		profiles:   profiles,
		classifier: classifier,
		bus:        bus,
	}
}

// Classify processes one request end to end. The only error it returns is an
// unresolvable tenant; classification itself never fails thanks to the
// rule-based floor.
func (o *Orchestrator) Classify(ctx context.Context, req Request) (Outcome, EscalationDecision, error) {
	profile, err := o.profiles.Get(req.TenantID)
	if err != nil {
		return Outcome{}, EscalationDecision{}, err
	}

	started := time.Now()
	outcome := o.classifier.Classify(ctx, req.Message, profile)

	logger := log.WithField("enquiry_id", req.EnquiryID)
	if outcome.Fallback {
		logger.Warnf("Model path failed, served rule-based result | tenant=%s domain=%s error=%v",
			req.TenantID, outcome.Result.Domain, outcome.Err)
	} else {
		logger.Infof("Classified message | tenant=%s domain=%s intent=%s confidence=%.2f",
			req.TenantID, outcome.Result.Domain, outcome.Result.Intent, outcome.Result.Confidence)
	}

	decision := EvaluateEscalation(req, outcome.Result, profile)
	if decision.Escalate {
		logger.Infof("Escalation triggered | tenant=%s reason=%s", req.TenantID, decision.Reason)
	}

	o.publishEvents(req, outcome, decision, time.Since(started))

	return outcome, decision, nil
}

// EvaluateEscalation applies the tenant's escalation policy to a classified
// message. Conditions are checked in a fixed order and the first hit wins, so
// the recorded reason is deterministic. Expression rules come last, after the
// built-in conditions, in their configured order.
func EvaluateEscalation(req Request, result Result, profile *tenant.TenantProfile) EscalationDecision {
	policy := profile.Escalation

	if result.Sentiment == SentimentVeryNegative {
		return EscalationDecision{Escalate: true, Reason: EscalationReasonSentiment}
	}

	lower := strings.ToLower(req.Message)
	for _, keyword := range policy.Keywords {
		if keyword != "" && strings.Contains(lower, strings.ToLower(keyword)) {
			return EscalationDecision{Escalate: true, Reason: EscalationReasonKeyword}
		}
	}

	for _, pair := range policy.AlwaysEscalate {
		if strings.EqualFold(pair.Domain, result.Domain) && strings.EqualFold(pair.Intent, result.Intent) {
			return EscalationDecision{Escalate: true, Reason: EscalationReasonAlwaysPair}
		}
	}

	if result.Priority == PriorityCritical {
		return EscalationDecision{Escalate: true, Reason: EscalationReasonPriority}
	}

	env := &tenant.EscalationContext{
		Domain:        result.Domain,
		Intent:        result.Intent,
		Priority:      string(result.Priority),
		Sentiment:     string(result.Sentiment),
		Confidence:    result.Confidence,
		MessageLength: len(req.Message),
	}
	for _, rule := range policy.Rules {
		matched, err := rule.Matches(env)
		if err != nil {
			// Compiled at load time, so a runtime failure is unexpected.
			// The rule is skipped rather than failing the request.
			log.WithField("enquiry_id", req.EnquiryID).
				Warnf("Escalation rule evaluation failed | tenant=%s rule=%s error=%v", profile.ID, rule.Name, err)
			continue
		}
		if matched {
			return EscalationDecision{Escalate: true, Reason: EscalationReasonPolicyRulePfx + rule.Name}
		}
	}

	return EscalationDecision{}
}

func (o *Orchestrator) publishEvents(req Request, outcome Outcome, decision EscalationDecision, elapsed time.Duration) {
	if o.bus == nil {
		return
	}

	o.bus.PublishAsync(&hooks.EventContext{
		Event:     hooks.EventClassificationCompleted,
		Timestamp: time.Now(),
		TenantID:  req.TenantID,
		EnquiryID: req.EnquiryID,
		Data: map[string]interface{}{
			"domain":     outcome.Result.Domain,
			"intent":     outcome.Result.Intent,
			"priority":   string(outcome.Result.Priority),
			"sentiment":  string(outcome.Result.Sentiment),
			"method":     string(outcome.Result.Method),
			"confidence": outcome.Result.Confidence,
			"fallback":   outcome.Fallback,
			"latency_ms": elapsed.Milliseconds(),
		},
	})

	if decision.Escalate {
		o.bus.PublishAsync(&hooks.EventContext{
			Event:     hooks.EventEscalationTriggered,
			Timestamp: time.Now(),
			TenantID:  req.TenantID,
			EnquiryID: req.EnquiryID,
			Data: map[string]interface{}{
				"reason": decision.Reason,
				"domain": outcome.Result.Domain,
			},
		})
	}
}
