package hooks

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishSync(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var received []*EventContext
	bus.Subscribe(EventClassificationCompleted, func(ec *EventContext) {
		received = append(received, ec)
	})

	bus.Publish(&EventContext{
		Event:     EventClassificationCompleted,
		Timestamp: time.Now(),
		TenantID:  "acme",
	})

	require.Len(t, received, 1)
	assert.Equal(t, "acme", received[0].TenantID)
}

func TestEventBus_PublishAsync(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	done := make(chan *EventContext, 1)
	bus.Subscribe(EventEscalationTriggered, func(ec *EventContext) {
		done <- ec
	})

	bus.PublishAsync(&EventContext{Event: EventEscalationTriggered, EnquiryID: "ENQ-1"})

	select {
	case ec := <-done:
		assert.Equal(t, "ENQ-1", ec.EnquiryID)
	case <-time.After(2 * time.Second):
		t.Fatal("async event never delivered")
	}
}

func TestEventBus_Filter(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var count int
	bus.SubscribeWithFilter(EventUnmappedDomain,
		func(ec *EventContext) { count++ },
		func(ec *EventContext) bool { return ec.TenantID == "acme" })

	bus.Publish(&EventContext{Event: EventUnmappedDomain, TenantID: "acme"})
	bus.Publish(&EventContext{Event: EventUnmappedDomain, TenantID: "other"})

	assert.Equal(t, 1, count)
}

func TestEventBus_PanicRecovery(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var secondRan bool
	bus.Subscribe(EventTenantReloaded, func(ec *EventContext) { panic("boom") })
	bus.Subscribe(EventTenantReloaded, func(ec *EventContext) { secondRan = true })

	// Must not panic and must still deliver to the second subscriber.
	bus.Publish(&EventContext{Event: EventTenantReloaded})
	assert.True(t, secondRan)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var count int
	sub := bus.Subscribe(EventClassificationCompleted, func(ec *EventContext) { count++ })

	bus.Publish(&EventContext{Event: EventClassificationCompleted})
	sub.Unsubscribe()
	bus.Publish(&EventContext{Event: EventClassificationCompleted})

	assert.Equal(t, 1, count)
}

func TestEventBus_PublishAfterShutdown(t *testing.T) {
	bus := NewEventBus()

	bus.Subscribe(EventClassificationCompleted, func(ec *EventContext) {
		t.Error("subscriber should not run after shutdown")
	})
	bus.Shutdown()

	// Must not panic on a closed queue.
	bus.PublishAsync(&EventContext{Event: EventClassificationCompleted})
	time.Sleep(50 * time.Millisecond)
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(EventClassificationCompleted, func(ec *EventContext) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(&EventContext{Event: EventClassificationCompleted})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, count)
}
