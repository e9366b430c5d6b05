package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan HealthSampleEvent, 1)

	unsub := bus.Subscribe(func(e HealthSampleEvent) {
		received <- e
	})
	defer unsub()

	event := HealthSampleEvent{
		Live:        true,
		Width:       1920,
		Height:      1080,
		FrameRate:   30,
		SourceLabel: "USB Microscope",
		Timestamp:   "2026-08-31T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.SourceLabel != event.SourceLabel {
		t.Errorf("Expected source_label %s, got %s", event.SourceLabel, got.SourceLabel)
	}
	if got.Width != 1920 {
		t.Errorf("Expected width 1920, got %d", got.Width)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan FaultEvent, 1)

	unsub := bus.Subscribe(func(e FaultEvent) {
		received <- e
	})

	bus.Publish(FaultEvent{Code: "ACQUISITION"})
	<-received

	unsub()

	bus.Publish(FaultEvent{Code: "RECORDING"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	healthReceived := make(chan bool, 1)
	stateReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ HealthSampleEvent) {
		healthReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ StreamStateChangedEvent) {
		stateReceived <- true
	})
	defer unsub2()

	bus.Publish(HealthSampleEvent{Live: true})
	<-healthReceived

	select {
	case <-stateReceived:
		t.Fatal("State subscriber should NOT have received HealthSampleEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}

	bus.Publish(StreamStateChangedEvent{State: "active"})
	<-stateReceived
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ DeviceDiscoveryEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(DeviceDiscoveryEvent{
					Action:    "hotplug",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"DeviceDiscovery", DeviceDiscoveryEvent{Action: "startup"}},
		{"StreamStateChanged", StreamStateChangedEvent{State: "requesting"}},
		{"HealthSample", HealthSampleEvent{Live: true}},
		{"Fault", FaultEvent{Code: "SAMPLING"}},
		{"ArtifactCreated", ArtifactCreatedEvent{Kind: "still"}},
		{"TransformChanged", TransformChangedEvent{Revision: 1, Scale: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case DeviceDiscoveryEvent:
				unsub = bus.Subscribe(func(e DeviceDiscoveryEvent) { received <- e })
			case StreamStateChangedEvent:
				unsub = bus.Subscribe(func(e StreamStateChangedEvent) { received <- e })
			case HealthSampleEvent:
				unsub = bus.Subscribe(func(e HealthSampleEvent) { received <- e })
			case FaultEvent:
				unsub = bus.Subscribe(func(e FaultEvent) { received <- e })
			case ArtifactCreatedEvent:
				unsub = bus.Subscribe(func(e ArtifactCreatedEvent) { received <- e })
			case TransformChangedEvent:
				unsub = bus.Subscribe(func(e TransformChangedEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestForward(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := Forward[HealthSampleEvent](bus, ch)
	defer unsub()

	event := HealthSampleEvent{Live: true, SourceLabel: "cam"}
	bus.Publish(event)

	received := <-ch
	healthEvent, ok := received.(HealthSampleEvent)
	if !ok {
		t.Fatalf("Expected HealthSampleEvent, got %T", received)
	}
	if healthEvent.SourceLabel != event.SourceLabel {
		t.Errorf("Expected source_label %s, got %s", event.SourceLabel, healthEvent.SourceLabel)
	}
}

func TestForward_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := Forward[StreamStateChangedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(StreamStateChangedEvent{State: "active"})
		done <- true
	}()

	<-done // Should complete without blocking
}
