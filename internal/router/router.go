// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package router dispatches classified messages to tenant handler
// identifiers. Routing is a pure table lookup; the interesting part is what
// happens when the table has a hole.
package router

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tenantry/triage/internal/classify"
	"github.com/tenantry/triage/internal/hooks"
	"github.com/tenantry/triage/internal/tenant"
)

// Router resolves a classification result to a handler identifier.
type Router struct {
	bus *hooks.EventBus
}

// New creates a router. The event bus is optional.
func New(bus *hooks.EventBus) *Router {
	return &Router{bus: bus}
}

// Route returns the handler identifier for the classified message. OTHER and
// unmapped domains land on the tenant's default handler; a defined domain
// missing from the routing table is a configuration gap and is reported, but
// the message is still served.
func (r *Router) Route(req classify.Request, result classify.Result, profile *tenant.TenantProfile) string {
	handler, mapped := profile.HandlerFor(result.Domain)
	if mapped || result.Domain == tenant.DomainOther {
		return handler
	}

	log.WithField("enquiry_id", req.EnquiryID).
		Warnf("No handler mapped for domain, using default | tenant=%s domain=%s handler=%s",
			profile.ID, result.Domain, handler)

	if r.bus != nil {
		r.bus.PublishAsync(&hooks.EventContext{
			Event:     hooks.EventUnmappedDomain,
			Timestamp: time.Now(),
			TenantID:  profile.ID,
			EnquiryID: req.EnquiryID,
			Data: map[string]interface{}{
				"domain":  result.Domain,
				"handler": handler,
			},
		})
	}

	return handler
}
