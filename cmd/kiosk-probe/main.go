// kiosk-probe is a headless websocket client for poking a running
// kiosk: it registers as a screen (or as a controller against a known
// screen), heartbeats, and prints everything the server pushes.
package main

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type register struct {
	Type         string `json:"type"`
	ScreenID     string `json:"screenId,omitempty"`
	ControllerID string `json:"controllerId,omitempty"`
}

type heartbeat struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func main() {
	wsURL := getenv("WS_URL", "ws://localhost:8080/ws")
	role := getenv("ROLE", "screen")
	screenID := getenv("SCREEN_ID", "probe-screen")
	controllerID := getenv("CONTROLLER_ID", "probe-controller")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	var reg register
	if role == "controller" {
		reg = register{Type: "register-controller", ControllerID: controllerID, ScreenID: screenID}
	} else {
		reg = register{Type: "register-screen", ScreenID: screenID}
	}
	msg, _ := json.Marshal(reg)
	_ = conn.WriteMessage(websocket.TextMessage, msg)

	// Sole writer after registration; the read loop below never writes.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			hb, _ := json.Marshal(heartbeat{Type: "heartbeat", Timestamp: time.Now().UnixMilli()})
			if err := conn.WriteMessage(websocket.TextMessage, hb); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &base); err != nil {
			continue
		}
		if base.Type == "heartbeat-ack" {
			var ack struct {
				Timestamp int64 `json:"timestamp"`
			}
			if err := json.Unmarshal(data, &ack); err == nil && ack.Timestamp > 0 {
				log.Printf("heartbeat rtt %dms", time.Now().UnixMilli()-ack.Timestamp)
			}
			continue
		}
		log.Printf("%s %s", base.Type, data)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
