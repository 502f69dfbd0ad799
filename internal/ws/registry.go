package ws

import (
	"errors"
	"fmt"
	"sort"
)

// maxSlots is the number of regular player slots per screen. Slots are
// 0-indexed on the wire and in storage; user-facing text is 1-indexed.
const maxSlots = 4

var (
	ErrScreenNotFound = errors.New("screen not found")
	ErrSlotsFull      = errors.New("all player slots are taken")
)

// SlotTakenError reports a requested slot already held by another live
// controller. Requested is 0-indexed.
type SlotTakenError struct {
	Requested int
}

func (e *SlotTakenError) Error() string {
	return fmt.Sprintf("player %d slot is already taken", e.Requested+1)
}

type ScreenSession struct {
	ScreenID string
	Client   *Client
}

type ControllerSession struct {
	ControllerID string
	ScreenID     string
	PlayerNum    int
	Client       *Client

	// pairingID is the open pairing row in the store, closed on
	// unregister. Empty when the insert failed.
	pairingID string
}

// Registry tracks connected screens and controllers and assigns player
// slots. It carries no lock of its own; the owning server serializes
// every call behind its mutex.
type Registry struct {
	screens     map[string]*ScreenSession
	controllers map[string]*ControllerSession

	// prevSlots remembers the last slot a controller held on a screen
	// so a quick reconnect lands on the same player number.
	prevSlots map[string]int

	allowOverflow bool
}

func NewRegistry(allowOverflow bool) *Registry {
	return &Registry{
		screens:       make(map[string]*ScreenSession),
		controllers:   make(map[string]*ControllerSession),
		prevSlots:     make(map[string]int),
		allowOverflow: allowOverflow,
	}
}

func slotKey(screenID, controllerID string) string {
	return screenID + "\x00" + controllerID
}

// RegisterScreen records a screen session. A second connection for the
// same screenId wins; the displaced session is returned so the caller
// can close it.
func (r *Registry) RegisterScreen(screenID string, c *Client) *ScreenSession {
	prev := r.screens[screenID]
	r.screens[screenID] = &ScreenSession{ScreenID: screenID, Client: c}
	return prev
}

// UnregisterScreen removes the screen only if it is still owned by c,
// so a displaced connection cannot tear down its replacement.
func (r *Registry) UnregisterScreen(screenID string, c *Client) bool {
	sess, ok := r.screens[screenID]
	if !ok || sess.Client != c {
		return false
	}
	delete(r.screens, screenID)
	return true
}

func (r *Registry) Screen(screenID string) (*ScreenSession, bool) {
	sess, ok := r.screens[screenID]
	return sess, ok
}

// RegisterController pairs a controller with a screen and assigns a
// player slot. The screen session must be live unless allowScreenless
// is set (native playback keeps working with no browser screen). A
// live duplicate controllerId on the same screen keeps its slot and
// the old connection is returned for closing. The slot rules, in
// order: a valid requested slot is granted when free and rejected
// with SlotTakenError when held by someone else; otherwise the
// controller's previous slot on that screen is reused when free;
// otherwise the lowest free slot wins. When all regular slots are
// held, the current session count becomes an overflow slot if
// enabled, else ErrSlotsFull.
func (r *Registry) RegisterController(controllerID, screenID string, requested *int, allowScreenless bool, c *Client) (int, *ControllerSession, error) {
	if _, ok := r.screens[screenID]; !ok && !allowScreenless {
		return 0, nil, ErrScreenNotFound
	}

	prev := r.controllers[controllerID]

	// Slots held by other controllers on the target screen. The
	// caller's own live slot never conflicts with itself.
	taken := make(map[int]bool)
	for id, sess := range r.controllers {
		if sess.ScreenID == screenID && id != controllerID {
			taken[sess.PlayerNum] = true
		}
	}

	if requested != nil && *requested >= 0 && *requested < maxSlots && taken[*requested] {
		return 0, nil, &SlotTakenError{Requested: *requested}
	}

	if prev != nil && prev.ScreenID == screenID {
		// Same controller reconnecting to the same screen takes over
		// its existing slot regardless of what it asked for.
		r.controllers[controllerID] = &ControllerSession{
			ControllerID: controllerID,
			ScreenID:     screenID,
			PlayerNum:    prev.PlayerNum,
			Client:       c,
		}
		return prev.PlayerNum, prev, nil
	}
	if prev != nil {
		// Moving to another screen frees the old slot first.
		r.prevSlots[slotKey(prev.ScreenID, controllerID)] = prev.PlayerNum
		delete(r.controllers, controllerID)
	}

	slot := -1
	if requested != nil && *requested >= 0 && *requested < maxSlots {
		slot = *requested
	}
	if slot < 0 {
		if remembered, ok := r.prevSlots[slotKey(screenID, controllerID)]; ok && remembered < maxSlots && !taken[remembered] {
			slot = remembered
		}
	}
	if slot < 0 {
		for s := 0; s < maxSlots; s++ {
			if !taken[s] {
				slot = s
				break
			}
		}
	}
	if slot < 0 {
		if !r.allowOverflow {
			if prev != nil {
				r.controllers[controllerID] = prev
				delete(r.prevSlots, slotKey(prev.ScreenID, controllerID))
			}
			return 0, nil, ErrSlotsFull
		}
		// Overflow slot is the current session count for the screen,
		// bumped past any survivor from earlier churn so slots stay
		// unique.
		slot = len(taken)
		for taken[slot] {
			slot++
		}
	}

	r.controllers[controllerID] = &ControllerSession{
		ControllerID: controllerID,
		ScreenID:     screenID,
		PlayerNum:    slot,
		Client:       c,
	}
	return slot, prev, nil
}

// UnregisterController removes the controller only if still owned by c
// and remembers its slot for reconnect.
func (r *Registry) UnregisterController(controllerID string, c *Client) (*ControllerSession, bool) {
	sess, ok := r.controllers[controllerID]
	if !ok || sess.Client != c {
		return nil, false
	}
	delete(r.controllers, controllerID)
	r.prevSlots[slotKey(sess.ScreenID, controllerID)] = sess.PlayerNum
	return sess, true
}

func (r *Registry) Controller(controllerID string) (*ControllerSession, bool) {
	sess, ok := r.controllers[controllerID]
	return sess, ok
}

// ControllersFor lists the controllers paired with a screen ordered by
// player number.
func (r *Registry) ControllersFor(screenID string) []*ControllerSession {
	var out []*ControllerSession
	for _, sess := range r.controllers {
		if sess.ScreenID == screenID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerNum < out[j].PlayerNum })
	return out
}

func (r *Registry) Counts() (screens, controllers int) {
	return len(r.screens), len(r.controllers)
}
