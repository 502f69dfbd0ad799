package notify

import "strings"

type Router struct{}

func (r Router) MatchTargets(targets []Target, ev KioskEvent) []Target {
	if len(targets) == 0 {
		return nil
	}
	out := make([]Target, 0, len(targets))
	for _, target := range targets {
		if !target.Enabled {
			continue
		}
		if !scopeMatches(target, ev) {
			continue
		}
		if !eventAllowed(target.EventAllowlist, ev.Kind) {
			continue
		}
		out = append(out, target)
	}
	return out
}

// Native launch and exit events carry no screen, so they only reach
// "all"-scoped targets; screen-scoped targets follow one screen's
// pairing lifecycle.
func scopeMatches(target Target, ev KioskEvent) bool {
	switch target.ScopeType {
	case "all":
		return true
	case "screen":
		return target.ScopeValue != "" && target.ScopeValue == ev.ScreenID
	default:
		return false
	}
}

func eventAllowed(allowlist []string, kind string) bool {
	if len(allowlist) == 0 {
		return true
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	for _, v := range allowlist {
		if v == "" {
			continue
		}
		if strings.ToLower(strings.TrimSpace(v)) == kind {
			return true
		}
	}
	return false
}
