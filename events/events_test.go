package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var got []Event
	sub := bus.Subscribe(func(ev Event) {
		got = append(got, ev)
	}, Finished)
	defer sub.Cancel()

	bus.Publish(Event{Kind: Finished, Builder: "linux", Number: 12})
	bus.Publish(Event{Kind: Started, Builder: "linux", Number: 13})

	assert.Len(t, got, 1, "only subscribed kinds should be delivered")
	assert.Equal(t, "linux", got[0].Builder)
	assert.Equal(t, 12, got[0].Number)
	assert.NotZero(t, got[0].ID, "publish should assign an event ID")
	assert.False(t, got[0].Time.IsZero())
}

func TestSubscribeAllKinds(t *testing.T) {
	bus := NewBus()

	count := 0
	sub := bus.Subscribe(func(ev Event) { count++ })
	defer sub.Cancel()

	for _, k := range Kinds() {
		bus.Publish(Event{Kind: k})
	}
	assert.Equal(t, len(Kinds()), count)
}

func TestCancel(t *testing.T) {
	bus := NewBus()

	count := 0
	sub := bus.Subscribe(func(ev Event) { count++ }, Started)
	assert.Equal(t, 1, bus.Count())

	sub.Cancel()
	assert.Equal(t, 0, bus.Count())

	bus.Publish(Event{Kind: Started})
	assert.Equal(t, 0, count)

	// Cancel is safe to call twice
	sub.Cancel()
}

func TestPanickingHandlerDoesNotBreakDelivery(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(func(ev Event) { panic("boom") }, Failure)

	delivered := false
	bus.Subscribe(func(ev Event) { delivered = true }, Failure)

	bus.Publish(Event{Kind: Failure})
	assert.True(t, delivered, "a panicking subscriber must not block others")
}

func TestValidKind(t *testing.T) {
	assert.True(t, ValidKind(Started))
	assert.True(t, ValidKind(Exception))
	assert.False(t, ValidKind(Kind("bogus")))
}
