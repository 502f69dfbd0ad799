package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"retrocade/internal/config"
)

func ConfigFromServer(cfg config.ServerConfig) (Config, error) {
	out := Config{
		Enabled:             cfg.NotifyEnabled,
		ConfigPath:          strings.TrimSpace(cfg.NotifyConfigPath),
		ConfigReload:        time.Duration(cfg.NotifyReloadMS) * time.Millisecond,
		Workers:             cfg.NotifyWorkers,
		RetryMax:            cfg.NotifyRetryMax,
		RetryBase:           time.Duration(cfg.NotifyRetryBaseMS) * time.Millisecond,
		FailureThreshold:    3,
		CircuitOpenDuration: 30 * time.Second,
		RequestTimeout:      5 * time.Second,
		DispatchBuffer:      1024,
	}
	if !out.Enabled {
		return out, nil
	}

	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.RetryMax < 0 {
		out.RetryMax = 0
	}
	if out.RetryBase <= 0 {
		out.RetryBase = 500 * time.Millisecond
	}
	if out.ConfigReload <= 0 {
		out.ConfigReload = time.Second
	}

	jsonRaw, err := loadTargetsJSON(cfg)
	if err != nil {
		return Config{}, err
	}
	if jsonRaw == "" {
		return out, nil
	}
	targets, err := parseTargetsJSON(jsonRaw)
	if err != nil {
		return Config{}, err
	}
	out.Targets = targets
	return out, nil
}

func loadTargetsJSON(cfg config.ServerConfig) (string, error) {
	path := strings.TrimSpace(cfg.NotifyConfigPath)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read notify config path %q: %w", path, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return strings.TrimSpace(cfg.NotifyConfigJSON), nil
}

func parseTargetsJSON(jsonRaw string) ([]Target, error) {
	var targets []Target
	if err := json.Unmarshal([]byte(jsonRaw), &targets); err != nil {
		return nil, fmt.Errorf("parse notify targets: %w", err)
	}
	filtered := make([]Target, 0, len(targets))
	for _, target := range targets {
		target.Platform = strings.ToLower(strings.TrimSpace(target.Platform))
		target.ScopeType = strings.ToLower(strings.TrimSpace(target.ScopeType))
		if target.ScopeType == "" {
			target.ScopeType = "all"
		}
		if target.ScopeType != "all" && target.ScopeType != "screen" {
			continue
		}
		target.Endpoint = strings.TrimSpace(target.Endpoint)
		if target.Endpoint == "" {
			continue
		}
		if !target.Enabled {
			continue
		}
		for i := range target.EventAllowlist {
			target.EventAllowlist[i] = strings.TrimSpace(strings.ToLower(target.EventAllowlist[i]))
		}
		filtered = append(filtered, target)
	}
	return filtered, nil
}
