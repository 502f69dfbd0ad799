// Package ws implements the kiosk control channel: a WebSocket endpoint
// that registers screens and controllers, assigns player slots, relays
// WebRTC signaling and input between paired peers, and drives native
// emulator playback through the orchestrator.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"retrocade/internal/catalog"
	"retrocade/internal/eventfeed"
	"retrocade/internal/metrics"
	"retrocade/internal/nativerun"
	"retrocade/internal/presence"
	"retrocade/internal/store"
)

// NativeController is the slice of the orchestrator the router needs.
type NativeController interface {
	Launch(ctx context.Context, systemID, contentPath string, options map[string]string) (<-chan nativerun.ExitResult, error)
	Quit(ctx context.Context) error
	Status(ctx context.Context) nativerun.Status
}

// Client is one WebSocket connection. role is written only by the
// connection's own read loop; the remaining fields mirror the session
// it registered as.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	role         string
	screenID     string
	controllerID string
	playerNum    int
}

type Options struct {
	AllowOverflowSlots bool
	RomsDir            string
}

// Server owns the registry and serializes every mutation and every
// registry-driven send behind mu. The mutex is never held across
// blocking work: orchestrator calls, store writes and feed appends
// happen outside it, and sends are non-blocking channel pushes.
type Server struct {
	registry *Registry
	native   NativeController
	store    *store.Store
	metrics  *metrics.Metrics
	feed     *eventfeed.Buffer
	romsDir  string

	upgrader websocket.Upgrader

	mu           sync.Mutex
	lastPresence []byte
	lastDevices  []presence.Device
}

func NewServer(native NativeController, st *store.Store, m *metrics.Metrics, feed *eventfeed.Buffer, opts Options) *Server {
	return &Server{
		registry: NewRegistry(opts.AllowOverflowSlots),
		native:   native,
		store:    st,
		metrics:  m,
		feed:     feed,
		romsDir:  opts.RomsDir,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 8), role: ""}

	go s.writeLoop(client)
	s.readLoop(client)
}

func (s *Server) readLoop(c *Client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil || base.Type == "" {
			continue
		}
		s.metrics.IncWSMessage(messageLabel(base.Type))

		switch base.Type {
		case "register-screen":
			s.handleRegisterScreen(c, msg)
		case "register-controller":
			s.handleRegisterController(c, msg)
		case "heartbeat":
			s.handleHeartbeat(c, msg)
		case "webrtc-offer":
			s.handleWebRTCOffer(c, msg)
		case "webrtc-answer":
			s.handleWebRTCAnswer(c, msg)
		case "ice-candidate":
			s.handleICECandidate(c, msg)
		case "launchNative":
			s.handleLaunchNative(c, msg)
		case "getNativeState":
			s.handleGetNativeState(c)
		case "quitNative":
			s.handleQuitNative(c)
		default:
			s.handleForward(c, base.Type, msg)
		}
	}
}

func (s *Server) writeLoop(c *Client) {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *Server) handleRegisterScreen(c *Client, data []byte) {
	if c.role != "" {
		s.sendError(c, "connection already registered as "+c.role, "already-registered")
		return
	}
	var msg RegisterScreenMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.ScreenID == "" {
		s.sendError(c, "screenId is required", "invalid-register")
		return
	}

	s.mu.Lock()
	prev := s.registry.RegisterScreen(msg.ScreenID, c)
	c.role = "screen"
	c.screenID = msg.ScreenID
	if prev != nil {
		safeClose(prev.Client.send)
		_ = prev.Client.conn.Close()
	}
	reply, _ := json.Marshal(RegisteredMessage{Type: "registered", Role: "screen", ScreenID: msg.ScreenID})
	safeSend(c.send, reply)
	if s.lastPresence != nil {
		safeSend(c.send, s.lastPresence)
	}
	s.broadcastPlayerList(msg.ScreenID)
	s.mu.Unlock()

	s.metrics.IncRegistration("screen")
	s.feed.Append("screen-connected", map[string]any{"screen_id": msg.ScreenID})
	log.Info().Str("screen_id", msg.ScreenID).Bool("replaced", prev != nil).Msg("screen_registered")
}

func (s *Server) handleRegisterController(c *Client, data []byte) {
	if c.role != "" {
		s.sendError(c, "connection already registered as "+c.role, "already-registered")
		return
	}
	var msg RegisterControllerMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.ControllerID == "" || msg.ScreenID == "" {
		s.sendError(c, "controllerId and screenId are required", "invalid-register")
		return
	}

	// Native playback tolerates pairing against a screen that has no
	// live browser session, so the orchestrator state decides whether
	// a missing screen is fatal.
	status := s.native.Status(context.Background())
	nativeActive := status.State != nativerun.StateIdle

	s.mu.Lock()
	slot, prev, err := s.registry.RegisterController(msg.ControllerID, msg.ScreenID, msg.RequestedSlot, nativeActive, c)
	if err != nil {
		s.mu.Unlock()
		var taken *SlotTakenError
		switch {
		case errors.As(err, &taken):
			b, _ := json.Marshal(ErrorMessage{Type: "error", Error: err.Error(), Code: "slot-taken", RequestedPlayer: taken.Requested + 1})
			safeSend(c.send, b)
		case errors.Is(err, ErrScreenNotFound):
			s.sendError(c, "screen not found: "+msg.ScreenID, "screen-not-found")
		default:
			s.sendError(c, err.Error(), "slots-full")
		}
		return
	}
	c.role = "controller"
	c.controllerID = msg.ControllerID
	c.screenID = msg.ScreenID
	c.playerNum = slot
	if prev != nil {
		safeClose(prev.Client.send)
		_ = prev.Client.conn.Close()
		if prev.ScreenID != msg.ScreenID {
			s.notifyControllerGone(prev)
		}
	}
	reply, _ := json.Marshal(RegisteredMessage{
		Type: "registered", Role: "controller",
		ScreenID: msg.ScreenID, ControllerID: msg.ControllerID, PlayerNum: &slot,
	})
	safeSend(c.send, reply)
	if scr, ok := s.registry.Screen(msg.ScreenID); ok {
		b, _ := json.Marshal(ControllerConnectedMessage{Type: "controller-connected", ControllerID: msg.ControllerID, PlayerNum: slot})
		safeSend(scr.Client.send, b)
	}
	s.broadcastPlayerList(msg.ScreenID)
	if nativeActive {
		b, _ := json.Marshal(NativeStateMessage{Type: "nativeState", Status: status})
		safeSend(c.send, b)
	}
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.store.CloseOpenPairings(ctx, msg.ControllerID); err != nil {
		log.Warn().Err(err).Str("controller_id", msg.ControllerID).Msg("pairing_close_stale_failed")
	}
	rec, err := s.store.OpenPairing(ctx, store.Pairing{ControllerID: msg.ControllerID, ScreenID: msg.ScreenID, PlayerNum: slot})
	if err != nil {
		log.Warn().Err(err).Str("controller_id", msg.ControllerID).Msg("pairing_open_failed")
	} else {
		s.mu.Lock()
		if sess, ok := s.registry.Controller(msg.ControllerID); ok && sess.Client == c {
			sess.pairingID = rec.ID
		}
		s.mu.Unlock()
	}

	s.metrics.IncRegistration("controller")
	s.feed.Append("controller-paired", map[string]any{
		"controller_id": msg.ControllerID,
		"screen_id":     msg.ScreenID,
		"player_num":    slot,
	})
	log.Info().
		Str("controller_id", msg.ControllerID).
		Str("screen_id", msg.ScreenID).
		Int("player_num", slot).
		Msg("controller_registered")
}

func (s *Server) handleHeartbeat(c *Client, data []byte) {
	var msg HeartbeatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	b, _ := json.Marshal(HeartbeatAck{Type: "heartbeat-ack", Timestamp: msg.Timestamp, ServerTime: time.Now().UnixMilli()})
	safeSend(c.send, b)
}

func validSDP(sdp *SDP) bool {
	return sdp != nil && sdp.Type != "" && sdp.SDP != ""
}

func (s *Server) handleWebRTCOffer(c *Client, data []byte) {
	if c.role != "controller" {
		return
	}
	var msg WebRTCOfferMessage
	if err := json.Unmarshal(data, &msg); err != nil || !validSDP(msg.SDP) {
		s.sendError(c, "offer requires an sdp with type and sdp fields", "invalid-offer")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.registry.Controller(c.controllerID)
	if !ok || sess.Client != c {
		return
	}
	scr, ok := s.registry.Screen(sess.ScreenID)
	if !ok {
		s.sendError(c, "screen not found: "+sess.ScreenID, "screen-not-found")
		return
	}
	b, _ := json.Marshal(WebRTCOfferMessage{Type: "webrtc-offer", ControllerID: c.controllerID, SDP: msg.SDP})
	safeSend(scr.Client.send, b)
}

func (s *Server) handleWebRTCAnswer(c *Client, data []byte) {
	if c.role != "screen" {
		return
	}
	var msg WebRTCAnswerMessage
	if err := json.Unmarshal(data, &msg); err != nil || !validSDP(msg.SDP) {
		s.sendError(c, "answer requires an sdp with type and sdp fields", "invalid-answer")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.registry.Controller(msg.TargetController)
	if !ok || sess.ScreenID != c.screenID {
		s.sendError(c, "unknown controller: "+msg.TargetController, "unknown-controller")
		return
	}
	b, _ := json.Marshal(WebRTCAnswerMessage{Type: "webrtc-answer", SDP: msg.SDP})
	safeSend(sess.Client.send, b)
}

func (s *Server) handleICECandidate(c *Client, data []byte) {
	if c.role == "" {
		return
	}
	var msg ICECandidateMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Candidate == nil || msg.Candidate.Candidate == "" {
		s.sendError(c, "candidate payload is malformed", "invalid-candidate")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch c.role {
	case "controller":
		sess, ok := s.registry.Controller(c.controllerID)
		if !ok || sess.Client != c {
			return
		}
		scr, ok := s.registry.Screen(sess.ScreenID)
		if !ok {
			return
		}
		b, _ := json.Marshal(ICECandidateMessage{Type: "ice-candidate", ControllerID: c.controllerID, Candidate: msg.Candidate})
		safeSend(scr.Client.send, b)
	case "screen":
		sess, ok := s.registry.Controller(msg.TargetController)
		if !ok || sess.ScreenID != c.screenID {
			s.sendError(c, "unknown controller: "+msg.TargetController, "unknown-controller")
			return
		}
		b, _ := json.Marshal(ICECandidateMessage{Type: "ice-candidate", Candidate: msg.Candidate})
		safeSend(sess.Client.send, b)
	}
}

func (s *Server) handleLaunchNative(c *Client, data []byte) {
	if c.role == "" {
		return
	}
	var msg LaunchNativeMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.System == "" || msg.Rom == "" {
		s.sendNativeResult(c, "launch-result", false, "system and rom are required", "invalid-launch")
		return
	}

	l, err := s.startNative(context.Background(), msg.System, msg.Rom, msg.Options)
	if err != nil {
		s.sendNativeResult(c, "launch-result", false, err.Error(), nativerun.ErrorCode(err))
		return
	}
	s.sendNativeResult(c, "launch-result", true, "", "")
	s.announceLaunch(msg.System, l)
}

// launched carries what a successful start produced: the open play
// session row and the exit channel to watch.
type launched struct {
	sessionID   string
	contentPath string
	core        string
	exitCh      <-chan nativerun.ExitResult
}

// startNative resolves content and asks the orchestrator to run it,
// opening the play session row. Resolution failures surface as
// ErrContentNotFound so every control surface reports them the same
// way.
func (s *Server) startNative(ctx context.Context, systemID, rom string, options map[string]string) (launched, error) {
	contentPath := rom
	if !filepath.IsAbs(contentPath) {
		resolved, err := catalog.Resolve(s.romsDir, systemID, rom)
		if err != nil {
			s.metrics.IncNativeLaunch("error")
			if errors.Is(err, catalog.ErrNotFound) {
				return launched{}, fmt.Errorf("%w: %s", nativerun.ErrContentNotFound, rom)
			}
			return launched{}, fmt.Errorf("%w: %v", nativerun.ErrContentNotFound, err)
		}
		contentPath = resolved
	}

	exitCh, err := s.native.Launch(ctx, systemID, contentPath, options)
	if err != nil {
		s.metrics.IncNativeLaunch("error")
		log.Warn().Err(err).Str("system", systemID).Str("rom", rom).Msg("native_launch_rejected")
		return launched{}, err
	}

	var sessionID string
	sys, _ := nativerun.SystemByID(systemID)
	rec, err := s.store.StartSession(ctx, store.PlaySession{System: systemID, Core: sys.Core, Rom: contentPath})
	if err != nil {
		log.Warn().Err(err).Msg("play_session_start_failed")
	} else {
		sessionID = rec.ID
	}

	s.metrics.IncNativeLaunch("ok")
	return launched{sessionID: sessionID, contentPath: contentPath, core: sys.Core, exitCh: exitCh}, nil
}

// announceLaunch broadcasts the new state, records the feed event and
// starts the exit watcher.
func (s *Server) announceLaunch(systemID string, l launched) {
	s.broadcastNativeState()
	s.feed.Append("native-launched", map[string]any{"system": systemID, "rom": l.contentPath, "core": l.core})
	go s.watchExit(l.sessionID, l.exitCh)
}

// LaunchNative starts native playback on behalf of the REST and MCP
// control surfaces. Connected ws clients still hear the state
// broadcast and the exit notification.
func (s *Server) LaunchNative(ctx context.Context, systemID, rom string, options map[string]string) error {
	l, err := s.startNative(ctx, systemID, rom, options)
	if err != nil {
		return err
	}
	s.announceLaunch(systemID, l)
	return nil
}

// QuitNative stops playback and broadcasts the resulting state.
func (s *Server) QuitNative(ctx context.Context) error {
	if err := s.native.Quit(ctx); err != nil {
		return err
	}
	s.broadcastNativeState()
	return nil
}

// NativeStatus reports the orchestrator's current probe.
func (s *Server) NativeStatus(ctx context.Context) nativerun.Status {
	return s.native.Status(ctx)
}

func (s *Server) handleGetNativeState(c *Client) {
	if c.role == "" {
		return
	}
	status := s.native.Status(context.Background())
	b, _ := json.Marshal(NativeStateMessage{Type: "nativeState", Status: status})
	safeSend(c.send, b)
}

func (s *Server) handleQuitNative(c *Client) {
	if c.role == "" {
		return
	}
	if err := s.native.Quit(context.Background()); err != nil {
		s.sendNativeResult(c, "quit-result", false, err.Error(), nativerun.ErrorCode(err))
		return
	}
	s.sendNativeResult(c, "quit-result", true, "", "")
	s.broadcastNativeState()
}

// watchExit waits for the emulator to finish, closes the play session
// row and tells every client playback ended.
func (s *Server) watchExit(sessionID string, exitCh <-chan nativerun.ExitResult) {
	res, ok := <-exitCh
	if !ok {
		return
	}
	if sessionID != "" {
		code := res.Code
		var sig *string
		if res.Signal != "" {
			sig = &res.Signal
		}
		if err := s.store.FinishSession(context.Background(), sessionID, &code, sig); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("play_session_finish_failed")
		}
	}

	exitMsg, _ := json.Marshal(NativeExitMessage{Type: "nativeExit", Code: res.Code, Signal: res.Signal})
	status := s.native.Status(context.Background())
	stateMsg, _ := json.Marshal(NativeStateMessage{Type: "nativeState", Status: status})

	s.mu.Lock()
	s.broadcastAll(exitMsg)
	s.broadcastAll(stateMsg)
	s.mu.Unlock()

	s.feed.Append("native-exited", map[string]any{"code": res.Code, "signal": res.Signal})
}

// handleForward relays unrecognized message types between paired
// peers. Controller messages are stamped with the sender's identity
// and slot before delivery; screen messages go to one controller when
// targetController names one of its own, otherwise to all of them.
func (s *Server) handleForward(c *Client, msgType string, data []byte) {
	switch c.role {
	case "controller":
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		m["controllerId"] = c.controllerID
		m["playerNum"] = c.playerNum
		if msgType == "input.simulate" || m["method"] == "input.simulate" {
			params, ok := m["params"].(map[string]any)
			if !ok {
				params = map[string]any{}
				m["params"] = params
			}
			params["player"] = c.playerNum
		}
		b, _ := json.Marshal(m)

		s.mu.Lock()
		defer s.mu.Unlock()
		sess, ok := s.registry.Controller(c.controllerID)
		if !ok || sess.Client != c {
			return
		}
		if scr, ok := s.registry.Screen(sess.ScreenID); ok {
			safeSend(scr.Client.send, b)
		}
	case "screen":
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		target, _ := m["targetController"].(string)

		s.mu.Lock()
		defer s.mu.Unlock()
		if sess, ok := s.registry.Controller(target); ok && sess.ScreenID == c.screenID {
			safeSend(sess.Client.send, data)
			return
		}
		for _, sess := range s.registry.ControllersFor(c.screenID) {
			safeSend(sess.Client.send, data)
		}
	}
}

func (s *Server) unregister(c *Client) {
	var (
		closedPairing string
		feedKind      string
		feedData      map[string]any
	)

	s.mu.Lock()
	switch c.role {
	case "screen":
		if s.registry.UnregisterScreen(c.screenID, c) {
			b, _ := json.Marshal(ScreenDisconnectedMessage{Type: "screen-disconnected", ScreenID: c.screenID})
			for _, sess := range s.registry.ControllersFor(c.screenID) {
				safeSend(sess.Client.send, b)
			}
			feedKind = "screen-lost"
			feedData = map[string]any{"screen_id": c.screenID}
		}
	case "controller":
		if sess, ok := s.registry.UnregisterController(c.controllerID, c); ok {
			closedPairing = sess.pairingID
			s.notifyControllerGone(sess)
			feedKind = "controller-lost"
			feedData = map[string]any{
				"controller_id": sess.ControllerID,
				"screen_id":     sess.ScreenID,
				"player_num":    sess.PlayerNum,
			}
		}
	}
	safeClose(c.send)
	s.mu.Unlock()

	if closedPairing != "" {
		if err := s.store.ClosePairing(context.Background(), closedPairing); err != nil {
			log.Warn().Err(err).Str("pairing_id", closedPairing).Msg("pairing_close_failed")
		}
	}
	if feedKind != "" {
		s.feed.Append(feedKind, feedData)
		log.Info().Str("event", feedKind).Str("screen_id", c.screenID).Str("controller_id", c.controllerID).Msg("ws_session_closed")
	}
}

// notifyControllerGone tells a controller's screen it left and
// refreshes the player list. Caller holds s.mu.
func (s *Server) notifyControllerGone(sess *ControllerSession) {
	if scr, ok := s.registry.Screen(sess.ScreenID); ok {
		b, _ := json.Marshal(ControllerDisconnectedMessage{Type: "controller-disconnected", ControllerID: sess.ControllerID, PlayerNum: sess.PlayerNum})
		safeSend(scr.Client.send, b)
	}
	s.broadcastPlayerList(sess.ScreenID)
}

// broadcastPlayerList sends the current roster for a screen to the
// screen itself and to each of its controllers. Caller holds s.mu.
func (s *Server) broadcastPlayerList(screenID string) {
	sessions := s.registry.ControllersFor(screenID)
	players := make([]PlayerInfo, 0, len(sessions))
	for _, sess := range sessions {
		players = append(players, PlayerInfo{ControllerID: sess.ControllerID, PlayerNum: sess.PlayerNum})
	}
	b, _ := json.Marshal(PlayerListMessage{Type: "player-list", ScreenID: screenID, Players: players})
	if scr, ok := s.registry.Screen(screenID); ok {
		safeSend(scr.Client.send, b)
	}
	for _, sess := range sessions {
		safeSend(sess.Client.send, b)
	}
}

// broadcastAll sends to every registered screen and controller. Caller
// holds s.mu.
func (s *Server) broadcastAll(b []byte) {
	for _, sess := range s.registry.screens {
		safeSend(sess.Client.send, b)
	}
	for _, sess := range s.registry.controllers {
		safeSend(sess.Client.send, b)
	}
}

func (s *Server) broadcastNativeState() {
	status := s.native.Status(context.Background())
	b, _ := json.Marshal(NativeStateMessage{Type: "nativeState", Status: status})
	s.mu.Lock()
	s.broadcastAll(b)
	s.mu.Unlock()
}

// UpdatePresence broadcasts a device snapshot to every screen when it
// differs from the last one sent. The marshaled form is cached so a
// screen registering later still gets the current picture.
func (s *Server) UpdatePresence(devices []presence.Device) {
	b, _ := json.Marshal(PresenceMessage{Type: "presence", Devices: devices})
	s.mu.Lock()
	defer s.mu.Unlock()
	if bytes.Equal(b, s.lastPresence) {
		return
	}
	s.lastPresence = b
	s.lastDevices = devices
	for _, sess := range s.registry.screens {
		safeSend(sess.Client.send, b)
	}
	s.metrics.IncPresenceBroadcast()
}

// PresenceSnapshot returns the most recently published device list.
func (s *Server) PresenceSnapshot() []presence.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]presence.Device, len(s.lastDevices))
	copy(out, s.lastDevices)
	return out
}

// Counts reports live session totals for the metrics gauges.
func (s *Server) Counts() (screens, controllers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Counts()
}

func (s *Server) sendError(c *Client, errMsg, code string) {
	b, _ := json.Marshal(ErrorMessage{Type: "error", Error: errMsg, Code: code})
	safeSend(c.send, b)
}

func (s *Server) sendNativeResult(c *Client, msgType string, ok bool, errMsg, code string) {
	b, _ := json.Marshal(NativeResultMessage{Type: msgType, OK: ok, Error: errMsg, Code: code})
	safeSend(c.send, b)
}

// messageLabel keeps the ws message counter's label set bounded.
func messageLabel(t string) string {
	switch t {
	case "register-screen", "register-controller", "heartbeat",
		"webrtc-offer", "webrtc-answer", "ice-candidate",
		"launchNative", "getNativeState", "quitNative":
		return t
	}
	return "other"
}

// safeSend drops the message when the client's buffer is full or its
// channel already closed, so one stuck connection cannot stall the
// router.
func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}
