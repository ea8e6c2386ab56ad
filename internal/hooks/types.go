package hooks

import "time"

// Event identifies a lifecycle event published on the bus.
type Event string

const (
	// EventClassificationCompleted fires after the orchestrator resolves a
	// classification, regardless of which path produced it.
	EventClassificationCompleted Event = "classification.completed"

	// EventEscalationTriggered fires when an escalation decision comes back
	// positive.
	EventEscalationTriggered Event = "escalation.triggered"

	// EventUnmappedDomain fires when the router sees a non-OTHER domain with
	// no handler entry, indicating a tenant configuration inconsistency.
	EventUnmappedDomain Event = "router.unmapped_domain"

	// EventTenantReloaded fires after a successful tenant profile reload.
	EventTenantReloaded Event = "tenant.reloaded"
)

// EventContext carries an event and its payload to subscribers.
type EventContext struct {
	Event     Event
	Timestamp time.Time
	TenantID  string
	EnquiryID string
	Data      map[string]interface{}
}
