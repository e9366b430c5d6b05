package prefs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/scopeview/internal/transform"
)

func waitForPhase(t *testing.T, svc *Service, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.Phase() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("phase = %v, want %v", svc.Phase(), want)
}

func TestSaveDroppedWhileSettling(t *testing.T) {
	store := NewTOML(filepath.Join(t.TempDir(), "preferences.toml"))
	svc := NewService(store, WithSettleWindow(time.Hour))

	svc.BeginLoad("cam-a")
	if svc.Phase() != PhaseSettling {
		t.Fatalf("phase after BeginLoad = %v, want %v", svc.Phase(), PhaseSettling)
	}

	if svc.Save("cam-a", State{Profile: "compat"}) {
		t.Error("Save() accepted during settle window")
	}
	if _, exists := store.Get("cam-a"); exists {
		t.Error("store received a write during settle window")
	}
}

func TestSaveAcceptedAfterSettle(t *testing.T) {
	store := NewTOML(filepath.Join(t.TempDir(), "preferences.toml"))
	svc := NewService(store, WithSettleWindow(5*time.Millisecond))

	svc.BeginLoad("cam-a")
	waitForPhase(t, svc, PhaseReady)

	want := State{Filters: transform.FilterParams{Sharpen: 25}}
	if !svc.Save("cam-a", want) {
		t.Fatal("Save() rejected after settle window")
	}
	got, exists := store.Get("cam-a")
	if !exists || got != want {
		t.Errorf("store state = %+v (exists=%v), want %+v", got, exists, want)
	}
}

func TestSaveForOtherDeviceDropped(t *testing.T) {
	store := NewTOML(filepath.Join(t.TempDir(), "preferences.toml"))
	svc := NewService(store, WithSettleWindow(5*time.Millisecond))

	svc.BeginLoad("cam-a")
	waitForPhase(t, svc, PhaseReady)

	if svc.Save("cam-b", State{Profile: "standard"}) {
		t.Error("Save() accepted for a device that was never loaded")
	}
}

func TestReselectRestartsGating(t *testing.T) {
	store := NewTOML(filepath.Join(t.TempDir(), "preferences.toml"))
	svc := NewService(store, WithSettleWindow(5*time.Millisecond))

	svc.BeginLoad("cam-a")
	waitForPhase(t, svc, PhaseReady)

	svc.BeginLoad("cam-b")
	if svc.Save("cam-a", State{Profile: "compat"}) {
		t.Error("Save() for previous device accepted after reselect")
	}
	if svc.Save("cam-b", State{Profile: "compat"}) {
		t.Error("Save() accepted before new device settled")
	}

	waitForPhase(t, svc, PhaseReady)
	if !svc.Save("cam-b", State{Profile: "compat"}) {
		t.Error("Save() rejected after new device settled")
	}
}

func TestBeginLoadReturnsStoredState(t *testing.T) {
	store := NewTOML(filepath.Join(t.TempDir(), "preferences.toml"))
	want := State{Filters: transform.FilterParams{Emboss: 60}, AspectRatio: "4:3"}
	if err := store.Put("cam-a", want); err != nil {
		t.Fatal(err)
	}

	svc := NewService(store, WithSettleWindow(time.Hour))
	got, exists := svc.BeginLoad("cam-a")
	if !exists {
		t.Fatal("BeginLoad() reported no stored state")
	}
	if got != want {
		t.Errorf("BeginLoad() = %+v, want %+v", got, want)
	}

	if _, exists := svc.BeginLoad("cam-unknown"); exists {
		t.Error("BeginLoad() reported stored state for unknown device")
	}
}
