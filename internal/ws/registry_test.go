package ws

import (
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestRegisterControllerAssignsLowestFree(t *testing.T) {
	reg := NewRegistry(true)
	reg.RegisterScreen("screen-1", &Client{})

	for i, id := range []string{"pad-a", "pad-b", "pad-c"} {
		slot, _, err := reg.RegisterController(id, "screen-1", nil, false, &Client{})
		if err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
		if slot != i {
			t.Fatalf("slot for %s = %d, want %d", id, slot, i)
		}
	}
}

func TestRegisterControllerRequestedSlotConflict(t *testing.T) {
	reg := NewRegistry(true)
	reg.RegisterScreen("screen-1", &Client{})

	if _, _, err := reg.RegisterController("pad-a", "screen-1", intPtr(0), false, &Client{}); err != nil {
		t.Fatalf("register pad-a: %v", err)
	}
	_, _, err := reg.RegisterController("pad-b", "screen-1", intPtr(0), false, &Client{})
	var taken *SlotTakenError
	if !errors.As(err, &taken) {
		t.Fatalf("expected SlotTakenError, got %v", err)
	}
	if taken.Requested != 0 {
		t.Fatalf("Requested = %d, want 0", taken.Requested)
	}

	slot, _, err := reg.RegisterController("pad-b", "screen-1", intPtr(2), false, &Client{})
	if err != nil {
		t.Fatalf("register pad-b slot 2: %v", err)
	}
	if slot != 2 {
		t.Fatalf("slot = %d, want 2", slot)
	}
}

func TestRequestedSlotGrantedAfterHolderDisconnects(t *testing.T) {
	reg := NewRegistry(true)
	c1 := &Client{}
	reg.RegisterScreen("screen-1", &Client{})

	slot, _, err := reg.RegisterController("pad-1", "screen-1", nil, false, c1)
	if err != nil || slot != 0 {
		t.Fatalf("pad-1 slot = %d, err = %v, want 0", slot, err)
	}

	_, _, err = reg.RegisterController("pad-2", "screen-1", intPtr(0), false, &Client{})
	var taken *SlotTakenError
	if !errors.As(err, &taken) || taken.Requested != 0 {
		t.Fatalf("pad-2 err = %v, want SlotTakenError for slot 0", err)
	}

	if _, ok := reg.UnregisterController("pad-1", c1); !ok {
		t.Fatal("unregister pad-1 failed")
	}
	slot, _, err = reg.RegisterController("pad-2", "screen-1", intPtr(0), false, &Client{})
	if err != nil || slot != 0 {
		t.Fatalf("pad-2 retry slot = %d, err = %v, want 0", slot, err)
	}
}

func TestRequestedSlotOutOfRangeFallsBackToAuto(t *testing.T) {
	reg := NewRegistry(true)
	reg.RegisterScreen("screen-1", &Client{})

	slot, _, err := reg.RegisterController("pad-a", "screen-1", intPtr(9), false, &Client{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if slot != 0 {
		t.Fatalf("slot = %d, want 0", slot)
	}
}

func TestFreedSlotGoesToNextController(t *testing.T) {
	reg := NewRegistry(true)
	c1 := &Client{}
	reg.RegisterScreen("screen-1", &Client{})

	if _, _, err := reg.RegisterController("pad-1", "screen-1", nil, false, c1); err != nil {
		t.Fatalf("register pad-1: %v", err)
	}
	if _, ok := reg.UnregisterController("pad-1", c1); !ok {
		t.Fatal("unregister pad-1 failed")
	}
	slot, _, err := reg.RegisterController("pad-2", "screen-1", nil, false, &Client{})
	if err != nil {
		t.Fatalf("register pad-2: %v", err)
	}
	if slot != 0 {
		t.Fatalf("slot = %d, want 0", slot)
	}
}

func TestReconnectReusesRememberedSlot(t *testing.T) {
	reg := NewRegistry(true)
	c1 := &Client{}
	c2 := &Client{}
	reg.RegisterScreen("screen-1", &Client{})

	if _, _, err := reg.RegisterController("pad-1", "screen-1", nil, false, c1); err != nil {
		t.Fatalf("register pad-1: %v", err)
	}
	if slot, _, err := reg.RegisterController("pad-2", "screen-1", nil, false, c2); err != nil || slot != 1 {
		t.Fatalf("register pad-2: slot=%d err=%v", slot, err)
	}
	reg.UnregisterController("pad-2", c2)
	reg.UnregisterController("pad-1", c1)

	// Both slots are free; pad-2 should land back on 1, not on the
	// lowest free slot.
	slot, _, err := reg.RegisterController("pad-2", "screen-1", nil, false, &Client{})
	if err != nil {
		t.Fatalf("re-register pad-2: %v", err)
	}
	if slot != 1 {
		t.Fatalf("slot = %d, want remembered 1", slot)
	}
}

func TestRememberedSlotSkippedWhenTaken(t *testing.T) {
	reg := NewRegistry(true)
	c1 := &Client{}
	reg.RegisterScreen("screen-1", &Client{})

	reg.RegisterController("pad-1", "screen-1", nil, false, c1)
	reg.UnregisterController("pad-1", c1)
	if slot, _, err := reg.RegisterController("pad-2", "screen-1", nil, false, &Client{}); err != nil || slot != 0 {
		t.Fatalf("register pad-2: slot=%d err=%v", slot, err)
	}

	// pad-1 remembers slot 0 but pad-2 holds it now.
	slot, _, err := reg.RegisterController("pad-1", "screen-1", nil, false, &Client{})
	if err != nil {
		t.Fatalf("re-register pad-1: %v", err)
	}
	if slot != 1 {
		t.Fatalf("slot = %d, want 1", slot)
	}
}

func TestOverflowSlotIsSessionCount(t *testing.T) {
	reg := NewRegistry(true)
	reg.RegisterScreen("screen-1", &Client{})

	for i := 0; i < 4; i++ {
		id := string(rune('a' + i))
		if _, _, err := reg.RegisterController("pad-"+id, "screen-1", nil, false, &Client{}); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	slot, _, err := reg.RegisterController("pad-extra", "screen-1", nil, false, &Client{})
	if err != nil {
		t.Fatalf("register overflow: %v", err)
	}
	if slot != 4 {
		t.Fatalf("slot = %d, want 4", slot)
	}
	slot, _, err = reg.RegisterController("pad-extra-2", "screen-1", nil, false, &Client{})
	if err != nil {
		t.Fatalf("register second overflow: %v", err)
	}
	if slot != 5 {
		t.Fatalf("slot = %d, want 5", slot)
	}
}

func TestOverflowDisabledRejectsFifth(t *testing.T) {
	reg := NewRegistry(false)
	reg.RegisterScreen("screen-1", &Client{})

	for i := 0; i < 4; i++ {
		id := string(rune('a' + i))
		if _, _, err := reg.RegisterController("pad-"+id, "screen-1", nil, false, &Client{}); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	if _, _, err := reg.RegisterController("pad-extra", "screen-1", nil, false, &Client{}); !errors.Is(err, ErrSlotsFull) {
		t.Fatalf("expected ErrSlotsFull, got %v", err)
	}
}

func TestScreenlessRegistration(t *testing.T) {
	reg := NewRegistry(true)

	if _, _, err := reg.RegisterController("pad-1", "screen-1", nil, false, &Client{}); !errors.Is(err, ErrScreenNotFound) {
		t.Fatalf("expected ErrScreenNotFound, got %v", err)
	}
	slot, _, err := reg.RegisterController("pad-1", "screen-1", nil, true, &Client{})
	if err != nil {
		t.Fatalf("screenless register: %v", err)
	}
	if slot != 0 {
		t.Fatalf("slot = %d, want 0", slot)
	}
}

func TestDuplicateControllerKeepsSlot(t *testing.T) {
	reg := NewRegistry(true)
	first := &Client{}
	reg.RegisterScreen("screen-1", &Client{})

	if _, _, err := reg.RegisterController("pad-1", "screen-1", nil, false, first); err != nil {
		t.Fatalf("register: %v", err)
	}
	slot, prev, err := reg.RegisterController("pad-1", "screen-1", intPtr(2), false, &Client{})
	if err != nil {
		t.Fatalf("duplicate register: %v", err)
	}
	if slot != 0 {
		t.Fatalf("slot = %d, want kept 0", slot)
	}
	if prev == nil || prev.Client != first {
		t.Fatal("expected displaced session for first connection")
	}
}

func TestDuplicateRequestingOccupiedSlotRejected(t *testing.T) {
	reg := NewRegistry(true)
	reg.RegisterScreen("screen-1", &Client{})

	reg.RegisterController("pad-1", "screen-1", nil, false, &Client{})
	reg.RegisterController("pad-2", "screen-1", nil, false, &Client{})

	// pad-1 reconnects asking for pad-2's slot; the conflict wins over
	// the reuse rule.
	_, _, err := reg.RegisterController("pad-1", "screen-1", intPtr(1), false, &Client{})
	var taken *SlotTakenError
	if !errors.As(err, &taken) {
		t.Fatalf("expected SlotTakenError, got %v", err)
	}
	sess, ok := reg.Controller("pad-1")
	if !ok || sess.PlayerNum != 0 {
		t.Fatal("original pad-1 session must survive the rejected reconnect")
	}
}

func TestUnregisterControllerIdentityGuard(t *testing.T) {
	reg := NewRegistry(true)
	first := &Client{}
	second := &Client{}
	reg.RegisterScreen("screen-1", &Client{})

	reg.RegisterController("pad-1", "screen-1", nil, false, first)
	reg.RegisterController("pad-1", "screen-1", nil, false, second)

	if _, ok := reg.UnregisterController("pad-1", first); ok {
		t.Fatal("displaced connection must not remove the live session")
	}
	sess, ok := reg.Controller("pad-1")
	if !ok || sess.Client != second {
		t.Fatal("live session lost after stale unregister")
	}
}

func TestControllerMovesScreens(t *testing.T) {
	reg := NewRegistry(true)
	reg.RegisterScreen("screen-a", &Client{})
	reg.RegisterScreen("screen-b", &Client{})

	reg.RegisterController("pad-1", "screen-a", nil, false, &Client{})
	slot, prev, err := reg.RegisterController("pad-1", "screen-b", nil, false, &Client{})
	if err != nil {
		t.Fatalf("move register: %v", err)
	}
	if slot != 0 {
		t.Fatalf("slot = %d, want 0 on new screen", slot)
	}
	if prev == nil || prev.ScreenID != "screen-a" {
		t.Fatalf("expected displaced session on screen-a, got %+v", prev)
	}
	if got := len(reg.ControllersFor("screen-a")); got != 0 {
		t.Fatalf("screen-a controllers = %d, want 0", got)
	}
}

func TestControllersForSortedByslot(t *testing.T) {
	reg := NewRegistry(true)
	reg.RegisterScreen("screen-1", &Client{})

	reg.RegisterController("pad-c", "screen-1", intPtr(2), false, &Client{})
	reg.RegisterController("pad-a", "screen-1", intPtr(0), false, &Client{})
	reg.RegisterController("pad-b", "screen-1", intPtr(1), false, &Client{})

	got := reg.ControllersFor("screen-1")
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, sess := range got {
		if sess.PlayerNum != i {
			t.Fatalf("position %d has playerNum %d", i, sess.PlayerNum)
		}
	}
}

func TestRegisterScreenReplaces(t *testing.T) {
	reg := NewRegistry(true)
	first := &Client{}
	second := &Client{}

	if prev := reg.RegisterScreen("screen-1", first); prev != nil {
		t.Fatalf("expected no displaced session, got %+v", prev)
	}
	prev := reg.RegisterScreen("screen-1", second)
	if prev == nil || prev.Client != first {
		t.Fatal("expected first connection displaced")
	}
	if ok := reg.UnregisterScreen("screen-1", first); ok {
		t.Fatal("stale connection must not unregister the screen")
	}
	sess, ok := reg.Screen("screen-1")
	if !ok || sess.Client != second {
		t.Fatal("screen session lost")
	}
}
