// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package classify implements the classification core: the entity extractor,
// the deterministic rule-based classifier, the model-based classifier with
// its defensive response parsing, and the orchestrator that ties them
// together with escalation evaluation.
package classify

// Priority is the urgency level assigned to a classified message.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Sentiment is one of four ordered levels from very-negative to positive.
type Sentiment string

const (
	SentimentVeryNegative Sentiment = "VERY_NEGATIVE"
	SentimentNegative     Sentiment = "NEGATIVE"
	SentimentNeutral      Sentiment = "NEUTRAL"
	SentimentPositive     Sentiment = "POSITIVE"
)

// Method records which path produced a classification. Downstream logic
// treats RULE_BASED results as definitionally less trustworthy.
type Method string

const (
	MethodModel     Method = "MODEL"
	MethodRuleBased Method = "RULE_BASED"
)

// Rule-based confidence levels. RuleBasedConfidenceCeiling is the hard upper
// bound for any RULE_BASED result; it is strictly below every successful
// model confidence band so callers can order trust by method.
const (
	RuleBasedConfidenceCeiling  = 0.6
	RuleBasedConfidenceNoSignal = 0.3
)

// Request is the unit of work: one incoming customer message. Conversation
// metadata is passed through untouched by the core.
type Request struct {
	Message  string `json:"message"`
	TenantID string `json:"tenant_id"`

	CustomerPhone string `json:"customer_phone,omitempty"`
	PriorTurns    int    `json:"prior_turns,omitempty"`

	// EnquiryID is the correlation id assigned by the composing caller. It is
	// carried into logs and events, never into the classification itself.
	EnquiryID string `json:"-"`
}

// Result is the classification output contract. It is created once per
// request and immutable thereafter.
type Result struct {
	// Domain is one of the tenant's defined domains or the literal OTHER.
	Domain string `json:"domain"`

	Intent    string    `json:"intent"`
	Priority  Priority  `json:"priority"`
	Sentiment Sentiment `json:"sentiment"`

	// Entities maps entity type name to extracted values in order of
	// appearance. A type with no matches is absent, never an empty list.
	Entities map[string][]string `json:"entities,omitempty"`

	// Confidence is in [0,1]. RULE_BASED results never exceed
	// RuleBasedConfidenceCeiling.
	Confidence float64 `json:"confidence"`

	Method Method `json:"method"`

	// Reasoning is diagnostic only and never user-facing.
	Reasoning string `json:"reasoning,omitempty"`
}

// Outcome makes the resolution path a typed fact instead of something
// inferred from a caught error: either the model path produced Result, or
// the rule-based path did and Err carries the cause.
type Outcome struct {
	Result Result

	// Fallback is true when the rule-based path produced Result.
	Fallback bool

	// Err is the model-path failure that forced the fallback; nil when
	// Fallback is false.
	Err error
}

// Escalation reasons, recorded in the fixed evaluation order so diagnostics
// are deterministic.
const (
	EscalationReasonSentiment     = "sentiment_very_negative"
	EscalationReasonKeyword       = "escalation_keyword"
	EscalationReasonAlwaysPair    = "always_escalate_pair"
	EscalationReasonPriority      = "priority_critical"
	EscalationReasonPolicyRulePfx = "policy_rule:"
)

// EscalationDecision is derived per request from the classification and the
// tenant's escalation policy; it is never stored by the core.
type EscalationDecision struct {
	Escalate bool   `json:"escalate"`
	Reason   string `json:"reason,omitempty"`
}
