// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tenant provides typed, validated tenant profiles for the
// classification core. A profile describes everything tenant-specific:
// service domains, entity extraction patterns, intent and priority trigger
// terms, the escalation policy, and the domain-to-handler routing table.
// Profiles are immutable after loading; reloads swap whole profile objects.
package tenant

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DomainOther is the reserved domain for messages that fit no configured
// domain. It is always valid and never appears in a profile's domain list.
const DomainOther = "OTHER"

// TenantProfile is the full configuration for one tenant. All fields are
// read-only after Validate succeeds; request processing never mutates a
// profile.
type TenantProfile struct {
	ID          string `yaml:"tenant_id"`
	CompanyName string `yaml:"company_name"`

	// DefaultIntent is assigned by the rule-based classifier when no intent
	// trigger matches. Defaults to "inquiry".
	DefaultIntent string `yaml:"default_intent"`

	// DefaultHandler receives OTHER and unmapped domains.
	DefaultHandler string `yaml:"default_handler"`

	Domains []DomainDefinition `yaml:"domains"`

	// Entities maps entity type name to its extraction patterns.
	Entities map[string]*EntityPattern `yaml:"entities"`

	// IntentTriggers are checked in order; the first with a term hit wins.
	IntentTriggers []IntentTrigger `yaml:"intent_triggers"`

	Escalation EscalationPolicy `yaml:"escalation"`

	// Handlers maps a domain name to the handler identifier dispatched for it.
	Handlers map[string]string `yaml:"handlers"`

	// FilePath is the source file of the profile (not in YAML).
	FilePath string `yaml:"-"`

	domainNames map[string]struct{}
}

// DomainDefinition describes one tenant service domain.
type DomainDefinition struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Intents     []string `yaml:"intents"`

	// Triggers are the keyword/phrase terms the rule-based classifier scores
	// against, matched case-insensitively as substrings.
	Triggers []string `yaml:"triggers"`

	// Examples bias the model-based classifier; optional.
	Examples []string `yaml:"examples"`
}

// EntityPattern holds one or more extraction patterns for an entity type.
type EntityPattern struct {
	Description string   `yaml:"description"`
	Patterns    []string `yaml:"patterns"`

	regexps []*regexp.Regexp
}

// Regexps returns the compiled patterns. Empty until the owning profile has
// been validated.
func (p *EntityPattern) Regexps() []*regexp.Regexp {
	return p.regexps
}

// IntentTrigger names an intent and the terms that select it.
type IntentTrigger struct {
	Name  string   `yaml:"name"`
	Terms []string `yaml:"terms"`
}

// EscalationPolicy configures when a classified message is flagged for human
// handling.
type EscalationPolicy struct {
	// Keywords escalate on a case-insensitive substring hit in the message.
	Keywords []string `yaml:"keywords"`

	// CriticalKeywords and HighKeywords lift the rule-based priority.
	CriticalKeywords []string `yaml:"critical_keywords"`
	HighKeywords     []string `yaml:"high_keywords"`

	// AlwaysEscalate lists (domain, intent) pairs that escalate regardless of
	// message content.
	AlwaysEscalate []DomainIntent `yaml:"always_escalate"`

	// Rules are optional named expression conditions evaluated against the
	// classification, after the built-in conditions.
	Rules []*EscalationRule `yaml:"rules"`
}

// DomainIntent is a (domain, intent) pair on the always-escalate list.
type DomainIntent struct {
	Domain string `yaml:"domain"`
	Intent string `yaml:"intent"`
}

// EscalationRule is a named expression condition, e.g.
// "Priority == 'HIGH' && Domain == 'PAYMENTS_BILLING'".
type EscalationRule struct {
	Name      string `yaml:"name"`
	Condition string `yaml:"condition"`

	program *vm.Program
}

// EscalationContext is the environment an EscalationRule condition is
// evaluated against.
type EscalationContext struct {
	Domain        string
	Intent        string
	Priority      string
	Sentiment     string
	Confidence    float64
	MessageLength int
}

// Matches evaluates the rule against the given context. Rules must have been
// compiled via profile validation first.
func (r *EscalationRule) Matches(env *EscalationContext) (bool, error) {
	if r.program == nil {
		return false, fmt.Errorf("escalation rule %q not compiled", r.Name)
	}
	output, err := expr.Run(r.program, env)
	if err != nil {
		return false, fmt.Errorf("failed to run escalation rule %q: %w", r.Name, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("escalation rule %q did not return a boolean", r.Name)
	}
	return result, nil
}

// Validate checks the profile for configuration errors and compiles entity
// patterns and escalation rule programs. Any error here is fatal at load
// time; request processing never sees an unvalidated profile.
func (p *TenantProfile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("tenant profile missing tenant_id")
	}
	if len(p.Domains) == 0 {
		return fmt.Errorf("tenant %s: no domains defined", p.ID)
	}
	if p.DefaultHandler == "" {
		return fmt.Errorf("tenant %s: default_handler is required", p.ID)
	}
	if p.DefaultIntent == "" {
		p.DefaultIntent = "inquiry"
	}

	p.domainNames = make(map[string]struct{}, len(p.Domains))
	for i := range p.Domains {
		name := strings.ToUpper(strings.TrimSpace(p.Domains[i].Name))
		if name == "" {
			return fmt.Errorf("tenant %s: domain %d has empty name", p.ID, i)
		}
		if name == DomainOther {
			return fmt.Errorf("tenant %s: domain name %s is reserved", p.ID, DomainOther)
		}
		if _, dup := p.domainNames[name]; dup {
			return fmt.Errorf("tenant %s: duplicate domain %s", p.ID, name)
		}
		p.Domains[i].Name = name
		p.domainNames[name] = struct{}{}
	}

	for typeName, pattern := range p.Entities {
		if pattern == nil {
			continue
		}
		pattern.regexps = pattern.regexps[:0]
		for _, raw := range pattern.Patterns {
			re, err := regexp.Compile(raw)
			if err != nil {
				return fmt.Errorf("tenant %s: entity %s: invalid pattern %q: %w", p.ID, typeName, raw, err)
			}
			pattern.regexps = append(pattern.regexps, re)
		}
	}

	for _, rule := range p.Escalation.Rules {
		if rule.Name == "" {
			return fmt.Errorf("tenant %s: escalation rule missing name", p.ID)
		}
		program, err := expr.Compile(rule.Condition, expr.Env(&EscalationContext{}), expr.AsBool())
		if err != nil {
			return fmt.Errorf("tenant %s: escalation rule %q: %w", p.ID, rule.Name, err)
		}
		rule.program = program
	}

	return nil
}

// HasDomain reports whether name is one of the tenant's defined domains.
// OTHER is always accepted.
func (p *TenantProfile) HasDomain(name string) bool {
	if name == DomainOther {
		return true
	}
	_, ok := p.domainNames[name]
	return ok
}

// DomainNames returns the defined domain names in configuration order.
func (p *TenantProfile) DomainNames() []string {
	names := make([]string, len(p.Domains))
	for i, d := range p.Domains {
		names[i] = d.Name
	}
	return names
}

// HandlerFor resolves the handler identifier for a domain. The second return
// is false when the domain has no explicit mapping, in which case the first
// return is the tenant's default handler.
func (p *TenantProfile) HandlerFor(domain string) (string, bool) {
	if id, ok := p.Handlers[domain]; ok && id != "" {
		return id, true
	}
	return p.DefaultHandler, false
}
