// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classify

import (
	"fmt"
	"strings"

	"github.com/tenantry/triage/internal/tenant"
)

// Fixed sentiment word lists for the fallback path. Intentionally crude: the
// rule-based sentiment exists as a safety net, not a quality classifier.
var (
	veryNegativeWords = []string{"scam", "fraud", "terrible", "worst", "useless", "never again", "hate", "disgusting"}
	negativeWords     = []string{"disappointed", "frustrated", "poor", "bad", "not happy", "not working", "failed", "unhappy"}
	positiveWords     = []string{"thanks", "thank you", "great", "excellent", "appreciate", "happy", "love", "helpful"}
)

// ClassifyFallback is the deterministic rule-based classifier. It always
// succeeds, never calls an external service, and yields bit-identical results
// for the same (text, profile) pair.
func ClassifyFallback(text string, profile *tenant.TenantProfile) Result {
	lower := strings.ToLower(text)

	domain, bestScore := scoreDomains(lower, profile)

	confidence := RuleBasedConfidenceNoSignal
	if bestScore > 0 {
		confidence = RuleBasedConfidenceCeiling
	}

	return Result{
		Domain:     domain,
		Intent:     detectIntent(lower, profile),
		Priority:   detectPriority(lower, profile),
		Sentiment:  detectSentiment(lower),
		Entities:   ExtractEntities(text, profile.Entities),
		Confidence: confidence,
		Method:     MethodRuleBased,
		Reasoning:  fmt.Sprintf("rule-based classification: domain %s (score %d)", domain, bestScore),
	}
}

// scoreDomains counts case-insensitive substring hits of each domain's
// trigger terms. The strictly highest score wins; an exact tie between two or
// more domains yields OTHER — flagging ambiguity beats silently guessing
// wrong. All-zero scores also yield OTHER.
func scoreDomains(lower string, profile *tenant.TenantProfile) (string, int) {
	best := ""
	bestScore := 0
	tied := false

	for _, domain := range profile.Domains {
		score := 0
		for _, term := range domain.Triggers {
			if term == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(term)) {
				score++
			}
		}
		switch {
		case score > bestScore:
			best = domain.Name
			bestScore = score
			tied = false
		case score == bestScore && score > 0:
			tied = true
		}
	}

	if bestScore == 0 || tied {
		return tenant.DomainOther, 0
	}
	return best, bestScore
}

// detectIntent walks the tenant's intent triggers in configuration order and
// returns the first with a term hit, defaulting to the tenant default intent.
func detectIntent(lower string, profile *tenant.TenantProfile) string {
	for _, trigger := range profile.IntentTriggers {
		for _, term := range trigger.Terms {
			if term != "" && strings.Contains(lower, strings.ToLower(term)) {
				return trigger.Name
			}
		}
	}
	return profile.DefaultIntent
}

// detectPriority defaults to MEDIUM, lifted only by the tenant's escalation
// keyword lists.
func detectPriority(lower string, profile *tenant.TenantProfile) Priority {
	if containsAny(lower, profile.Escalation.CriticalKeywords) {
		return PriorityCritical
	}
	if containsAny(lower, profile.Escalation.HighKeywords) {
		return PriorityHigh
	}
	return PriorityMedium
}

func detectSentiment(lower string) Sentiment {
	if containsAny(lower, veryNegativeWords) {
		return SentimentVeryNegative
	}
	neg := countHits(lower, negativeWords)
	pos := countHits(lower, positiveWords)
	switch {
	case neg > pos:
		return SentimentNegative
	case pos > neg:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

func containsAny(lower string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func countHits(lower string, terms []string) int {
	n := 0
	for _, term := range terms {
		if term != "" && strings.Contains(lower, term) {
			n++
		}
	}
	return n
}
