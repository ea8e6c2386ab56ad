// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantry/triage/internal/classify"
	"github.com/tenantry/triage/internal/hooks"
	"github.com/tenantry/triage/internal/tenant"
)

func routerProfile(t *testing.T) *tenant.TenantProfile {
	t.Helper()
	profile := &tenant.TenantProfile{
		ID:             "acme-ecommerce",
		DefaultHandler: "generic_support",
		Domains: []tenant.DomainDefinition{
			{Name: "PRODUCT_INQUIRY"},
			{Name: "ORDER_SUPPORT"},
			{Name: "RETURNS"},
		},
		Handlers: map[string]string{
			"PRODUCT_INQUIRY": "product_inquiry_agent",
			"ORDER_SUPPORT":   "transaction_guidance_agent",
		},
	}
	require.NoError(t, profile.Validate())
	return profile
}

func TestRoute_MappedDomain(t *testing.T) {
	r := New(nil)
	profile := routerProfile(t)

	handler := r.Route(classify.Request{}, classify.Result{Domain: "PRODUCT_INQUIRY"}, profile)
	assert.Equal(t, "product_inquiry_agent", handler)
}

func TestRoute_OtherGoesToDefault(t *testing.T) {
	r := New(nil)
	profile := routerProfile(t)

	handler := r.Route(classify.Request{}, classify.Result{Domain: tenant.DomainOther}, profile)
	assert.Equal(t, "generic_support", handler)
}

func TestRoute_UnmappedDomainFallsBackAndReports(t *testing.T) {
	bus := hooks.NewEventBus()
	defer bus.Shutdown()

	events := make(chan *hooks.EventContext, 1)
	bus.Subscribe(hooks.EventUnmappedDomain, func(ctx *hooks.EventContext) {
		events <- ctx
	})

	r := New(bus)
	profile := routerProfile(t)

	handler := r.Route(
		classify.Request{EnquiryID: "enq-1"},
		classify.Result{Domain: "RETURNS"},
		profile,
	)
	assert.Equal(t, "generic_support", handler)

	select {
	case ctx := <-events:
		assert.Equal(t, "acme-ecommerce", ctx.TenantID)
		assert.Equal(t, "RETURNS", ctx.Data["domain"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unmapped-domain event")
	}
}
