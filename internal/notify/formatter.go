package notify

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	colorInfo     = 0x5865F2
	colorOK       = 0x57F287
	colorWarn     = 0xFEE75C
	colorCritical = 0xED4245

	shortIDLimit  = 12
	defaultFooter = "retrocade kiosk"
)

func FormatMessage(ev KioskEvent) (FormattedMessage, bool) {
	screenShort := shortID(fallback(ev.ScreenID, "kiosk"), shortIDLimit)
	fields := make([]MessageField, 0, 6)
	base := FormattedMessage{
		Timestamp: eventTimestamp(ev.ServerTS),
		Footer:    defaultFooter,
	}

	switch ev.Kind {
	case "screen-connected":
		base.Title = "Screen Online · " + screenShort
		base.Content = fmt.Sprintf("screen %s connected", fallback(ev.ScreenID, "-"))
		base.Description = fmt.Sprintf("Screen %s is online.", fallback(ev.ScreenID, "-"))
		base.Color = colorOK
		fields = append(fields, MessageField{Name: "Screen", Value: fallback(ev.ScreenID, "-"), Inline: true})
	case "screen-lost":
		base.Title = "Screen Offline · " + screenShort
		base.Content = fmt.Sprintf("screen %s disconnected", fallback(ev.ScreenID, "-"))
		base.Description = fmt.Sprintf("Screen %s dropped off.", fallback(ev.ScreenID, "-"))
		base.Color = colorWarn
		fields = append(fields, MessageField{Name: "Screen", Value: fallback(ev.ScreenID, "-"), Inline: true})
	case "controller-paired":
		base.Title = "Controller Paired · " + screenShort
		base.Content = fmt.Sprintf("controller %s joined as player %s", fallback(ev.ControllerID, "-"), playerText(ev.PlayerNum))
		base.Description = fmt.Sprintf("Controller %s joined as player %s.", fallback(ev.ControllerID, "-"), playerText(ev.PlayerNum))
		base.Color = colorOK
		fields = append(fields,
			MessageField{Name: "Controller", Value: fallback(ev.ControllerID, "-"), Inline: true},
			MessageField{Name: "Player", Value: playerText(ev.PlayerNum), Inline: true},
			MessageField{Name: "Screen", Value: fallback(ev.ScreenID, "-"), Inline: true},
		)
	case "controller-lost":
		base.Title = "Controller Left · " + screenShort
		base.Content = fmt.Sprintf("controller %s left player %s", fallback(ev.ControllerID, "-"), playerText(ev.PlayerNum))
		base.Description = fmt.Sprintf("Controller %s left player slot %s.", fallback(ev.ControllerID, "-"), playerText(ev.PlayerNum))
		base.Color = colorWarn
		fields = append(fields,
			MessageField{Name: "Controller", Value: fallback(ev.ControllerID, "-"), Inline: true},
			MessageField{Name: "Player", Value: playerText(ev.PlayerNum), Inline: true},
			MessageField{Name: "Screen", Value: fallback(ev.ScreenID, "-"), Inline: true},
		)
	case "native-launched":
		romName := romText(ev.Rom)
		base.Title = "Game Launched"
		base.Content = fmt.Sprintf("%s on %s", romName, fallback(ev.System, "-"))
		base.Description = fmt.Sprintf("Now playing %s (%s).", romName, fallback(ev.System, "-"))
		base.Color = colorInfo
		fields = append(fields,
			MessageField{Name: "System", Value: fallback(ev.System, "-"), Inline: true},
			MessageField{Name: "ROM", Value: romName, Inline: true},
		)
		if ev.Core != "" {
			fields = append(fields, MessageField{Name: "Core", Value: ev.Core, Inline: true})
		}
	case "native-exited":
		base.Title = "Game Over"
		base.Content = fmt.Sprintf("game exited with code %s", exitText(ev.ExitCode))
		base.Description = fmt.Sprintf("Native session ended with exit code %s.", exitText(ev.ExitCode))
		base.Color = colorInfo
		if ev.ExitCode != nil && *ev.ExitCode != 0 {
			base.Color = colorCritical
		}
		fields = append(fields, MessageField{Name: "Exit Code", Value: exitText(ev.ExitCode), Inline: true})
		if ev.ExitSignal != "" {
			fields = append(fields, MessageField{Name: "Signal", Value: ev.ExitSignal, Inline: true})
		}
	default:
		return FormattedMessage{}, false
	}

	base.Fields = fields
	return base, true
}

// playerText renders the one-indexed player label people see on the
// machine.
func playerText(slot *int) string {
	if slot == nil {
		return "-"
	}
	return strconv.Itoa(*slot + 1)
}

func exitText(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}

func romText(rom string) string {
	if strings.TrimSpace(rom) == "" {
		return "-"
	}
	return filepath.Base(rom)
}

func shortID(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	return v[:max]
}

func eventTimestamp(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func fallback(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
