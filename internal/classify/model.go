// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tenantry/triage/internal/tenant"
	"github.com/tidwall/gjson"
)

// Invoker is the opaque language-understanding call: instruction payload in,
// raw text out. It is treated as untrusted — it may fail, time out, or return
// malformed output.
type Invoker interface {
	Invoke(ctx context.Context, payload string) (string, error)
}

// ModelClassifier builds a tenant-parameterized instruction payload, invokes
// the language-understanding call once, and parses its response defensively.
// It never fails: any internal failure degrades to the rule-based result.
type ModelClassifier struct {
	invoker Invoker
	timeout time.Duration
}

// NewModelClassifier creates a classifier around the given invoker. A zero
// timeout disables the per-call deadline.
func NewModelClassifier(invoker Invoker, timeout time.Duration) *ModelClassifier {
	return &ModelClassifier{invoker: invoker, timeout: timeout}
}

// Classify resolves text against the tenant profile. The returned Outcome
// records which path produced the result; on the fallback branch Err carries
// the model-path failure and Result.Method is RULE_BASED, no matter where the
// fallback physically ran.
func (c *ModelClassifier) Classify(ctx context.Context, text string, profile *tenant.TenantProfile) Outcome {
	fallback := func(cause error) Outcome {
		return Outcome{
			Result:   ClassifyFallback(text, profile),
			Fallback: true,
			Err:      cause,
		}
	}

	if c.invoker == nil {
		return fallback(errors.New("no model invoker configured"))
	}

	payload := BuildInstructionPayload(profile, text)

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.invoker.Invoke(callCtx, payload)
	if err != nil {
		// No retry here: retry policy, if any, belongs to the caller.
		return fallback(fmt.Errorf("model call failed: %w", err))
	}

	result, err := parseModelResponse(raw, profile)
	if err != nil {
		return fallback(err)
	}

	if len(result.Entities) == 0 {
		result.Entities = ExtractEntities(text, profile.Entities)
	}
	result.Method = MethodModel
	return Outcome{Result: result}
}

// BuildInstructionPayload renders the classification instruction for a tenant
// snapshot. The output is deterministic for a given (profile, text) pair: no
// randomness, no wall-clock content.
func BuildInstructionPayload(profile *tenant.TenantProfile, text string) string {
	var b strings.Builder

	company := profile.CompanyName
	if company == "" {
		company = profile.ID
	}
	fmt.Fprintf(&b, "You are classifying customer messages for tenant: %s.\n\n", company)

	b.WriteString("Supported service domains:\n")
	for _, d := range profile.Domains {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
		if len(d.Intents) > 0 {
			fmt.Fprintf(&b, "  intents: %s\n", strings.Join(d.Intents, ", "))
		}
		for _, example := range d.Examples {
			fmt.Fprintf(&b, "  example: %q\n", example)
		}
	}
	fmt.Fprintf(&b, "- %s: does not fit any domain above\n", tenant.DomainOther)

	if len(profile.Entities) > 0 {
		b.WriteString("\nEntity types to extract (when present):\n")
		names := make([]string, 0, len(profile.Entities))
		for name := range profile.Entities {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %s\n", name, profile.Entities[name].Description)
		}
	}

	b.WriteString(`
Respond with a single JSON object and nothing else:
{
  "domain": "<one of the domain names above>",
  "intent": "<specific intent>",
  "priority": "LOW" | "MEDIUM" | "HIGH" | "CRITICAL",
  "sentiment": "VERY_NEGATIVE" | "NEGATIVE" | "NEUTRAL" | "POSITIVE",
  "entities": {"<entity type>": ["<literal value>"]},
  "confidence": 0.0-1.0,
  "reasoning": "<brief explanation>"
}

Classify this customer message:
`)
	fmt.Fprintf(&b, "%q\n", text)

	return b.String()
}

type wireResult struct {
	Domain     string                   `json:"domain"`
	Intent     string                   `json:"intent"`
	Priority   string                   `json:"priority"`
	Sentiment  string                   `json:"sentiment"`
	Entities   map[string][]interface{} `json:"entities"`
	Confidence float64                  `json:"confidence"`
	Reasoning  string                   `json:"reasoning"`
}

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseModelResponse recovers a classification from the raw model response in
// three stages: parse the whole body, then the first well-formed embedded
// JSON object, then give up. Validation failures (unknown domain, non-finite
// confidence) count as parse failures so malformed output never routes to a
// non-existent handler.
func parseModelResponse(raw string, profile *tenant.TenantProfile) (Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{}, errors.New("empty model response")
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(trimmed), &wire); err != nil {
		candidate := extractJSONObject(trimmed)
		if candidate == "" {
			return Result{}, errors.New("no JSON object found in model response")
		}
		if err := json.Unmarshal([]byte(candidate), &wire); err != nil {
			return Result{}, fmt.Errorf("invalid JSON in model response: %w", err)
		}
	}

	return validateWire(wire, profile)
}

// extractJSONObject pulls the first well-formed JSON object out of
// surrounding text: fenced code blocks first, then a balanced-brace scan.
func extractJSONObject(text string) string {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil && gjson.Valid(m[1]) {
		return m[1]
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if gjson.Valid(candidate) {
					return candidate
				}
				return ""
			}
		}
	}
	return ""
}

func validateWire(wire wireResult, profile *tenant.TenantProfile) (Result, error) {
	domain := strings.ToUpper(strings.TrimSpace(wire.Domain))
	if domain == "" {
		return Result{}, errors.New("model response missing domain")
	}
	if !profile.HasDomain(domain) {
		return Result{}, fmt.Errorf("model response domain %q is not defined for tenant %s", domain, profile.ID)
	}

	if math.IsNaN(wire.Confidence) || math.IsInf(wire.Confidence, 0) {
		return Result{}, errors.New("model response confidence is not finite")
	}
	confidence := wire.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	intent := strings.TrimSpace(wire.Intent)
	if intent == "" {
		intent = profile.DefaultIntent
	}

	return Result{
		Domain:     domain,
		Intent:     intent,
		Priority:   normalizePriority(wire.Priority),
		Sentiment:  normalizeSentiment(wire.Sentiment),
		Entities:   normalizeEntities(wire.Entities),
		Confidence: confidence,
		Reasoning:  wire.Reasoning,
	}, nil
}

func normalizePriority(raw string) Priority {
	switch Priority(strings.ToUpper(strings.TrimSpace(raw))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	case PriorityCritical:
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

func normalizeSentiment(raw string) Sentiment {
	normalized := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), " ", "_")
	switch Sentiment(normalized) {
	case SentimentVeryNegative:
		return SentimentVeryNegative
	case SentimentNegative:
		return SentimentNegative
	case SentimentPositive:
		return SentimentPositive
	default:
		return SentimentNeutral
	}
}

// normalizeEntities converts model-reported entity values to strings. Numbers
// keep their shortest decimal form; other value types are dropped. Types with
// no usable values are absent from the result.
func normalizeEntities(raw map[string][]interface{}) map[string][]string {
	if len(raw) == 0 {
		return nil
	}
	var entities map[string][]string
	for typeName, values := range raw {
		var converted []string
		for _, v := range values {
			switch val := v.(type) {
			case string:
				if val != "" {
					converted = append(converted, val)
				}
			case float64:
				converted = append(converted, strconv.FormatFloat(val, 'f', -1, 64))
			}
		}
		if len(converted) == 0 {
			continue
		}
		if entities == nil {
			entities = make(map[string][]string)
		}
		entities[typeName] = converted
	}
	return entities
}
