package events

import "github.com/kelindar/event"

// Forward subscribes to events of type T and copies each one into ch.
// The SSE publisher drains a single channel in its select loop, so every
// event type it streams gets forwarded into the same channel. Sends never
// block; when ch is full the event is dropped, since a stalled client must
// not back-pressure the bus.
func Forward[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
