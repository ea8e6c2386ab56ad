// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classify

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tenantry/triage/internal/tenant"
)

// testProfile is an e-commerce tenant with two domains, two entity types, and
// a full escalation policy. Validated, so patterns and rules are compiled.
func testProfile(t *testing.T) *tenant.TenantProfile {
	t.Helper()

	profile := &tenant.TenantProfile{
		ID:             "acme-ecommerce",
		CompanyName:    "Acme Online Store",
		DefaultHandler: "generic_support",
		Domains: []tenant.DomainDefinition{
			{
				Name:        "PRODUCT_INQUIRY",
				Description: "Questions about products and availability",
				Intents:     []string{"purchase", "inquiry"},
				Triggers:    []string{"need", "price", "how much", "product", "units"},
			},
			{
				Name:        "ORDER_SUPPORT",
				Description: "Order status, delivery, returns",
				Intents:     []string{"status_check", "complaint"},
				Triggers:    []string{"order", "delivery", "refund"},
			},
		},
		Entities: map[string]*tenant.EntityPattern{
			"order_numbers": {
				Description: "Order reference",
				Patterns:    []string{`\bORD-[0-9]{6,10}\b`},
			},
			"amounts": {
				Description: "Currency amount",
				Patterns:    []string{`\d{1,3}(?:,\d{3})+(?:\.\d{2})?`, `\d+\.\d{2}`},
			},
		},
		IntentTriggers: []tenant.IntentTrigger{
			{Name: "purchase", Terms: []string{"buy", "purchase", "need", "want"}},
			{Name: "complaint", Terms: []string{"complain", "not happy", "disappointed"}},
		},
		Escalation: tenant.EscalationPolicy{
			Keywords:         []string{"lawyer", "sue"},
			CriticalKeywords: []string{"urgent", "emergency"},
			HighKeywords:     []string{"failed", "deducted"},
			AlwaysEscalate: []tenant.DomainIntent{
				{Domain: "ORDER_SUPPORT", Intent: "complaint"},
			},
			Rules: []*tenant.EscalationRule{
				{Name: "low-confidence-order", Condition: "Domain == 'ORDER_SUPPORT' && Confidence < 0.4"},
			},
		},
		Handlers: map[string]string{
			"PRODUCT_INQUIRY": "product_inquiry_agent",
			"ORDER_SUPPORT":   "transaction_guidance_agent",
		},
	}
	require.NoError(t, profile.Validate())
	return profile
}
