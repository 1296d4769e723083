package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"avatarworld/movement"
	"avatarworld/world"
)

type Settings struct {
	Server        string  `json:"server"`
	Username      string  `json:"username"`
	AssetDir      string  `json:"assetDir"`
	WorldImage    string  `json:"worldImage"`
	WorldSize     float64 `json:"worldSize"`
	Speed         float64 `json:"speed"`
	TPS           int     `json:"tps"`
	ReconcileMS   int     `json:"reconcileGraceMs"`
	JoinTimeoutMS int     `json:"joinTimeoutMs"`
	ViewWidth     int     `json:"viewWidth"`
	ViewHeight    int     `json:"viewHeight"`
	AvatarSize    float64 `json:"avatarSize"`
	LabelGap      float64 `json:"labelGap"`
	DecodeWorkers int     `json:"decodeWorkers"`
	ShowStats     bool    `json:"showStats"`
	Debug         bool    `json:"debug"`
	LogFile       string  `json:"logFile"`
	Theme         string  `json:"theme"`
}

var gs = defaultSettings()

func defaultSettings() Settings {
	return Settings{
		Server:        "ws://localhost:8080/ws",
		Username:      "guest",
		AssetDir:      "assets",
		WorldImage:    "world.png",
		WorldSize:     world.DefaultSize,
		Speed:         movement.DefaultSpeed,
		TPS:           20,
		ReconcileMS:   int(movement.DefaultGrace / time.Millisecond),
		JoinTimeoutMS: 5000,
		ViewWidth:     960,
		ViewHeight:    640,
		AvatarSize:    64,
		LabelGap:      4,
		DecodeWorkers: 4,
		LogFile:       "client.log",
	}
}

// applyDefaults fills zero values left by an older or partial settings file.
func (s *Settings) applyDefaults() {
	d := defaultSettings()
	if s.Server == "" {
		s.Server = d.Server
	}
	if s.Username == "" {
		s.Username = d.Username
	}
	if s.AssetDir == "" {
		s.AssetDir = d.AssetDir
	}
	if s.WorldImage == "" {
		s.WorldImage = d.WorldImage
	}
	if s.WorldSize <= 0 {
		s.WorldSize = d.WorldSize
	}
	if s.Speed <= 0 {
		s.Speed = d.Speed
	}
	if s.TPS <= 0 {
		s.TPS = d.TPS
	}
	if s.ReconcileMS <= 0 {
		s.ReconcileMS = d.ReconcileMS
	}
	if s.JoinTimeoutMS <= 0 {
		s.JoinTimeoutMS = d.JoinTimeoutMS
	}
	if s.ViewWidth <= 0 || s.ViewHeight <= 0 {
		s.ViewWidth, s.ViewHeight = d.ViewWidth, d.ViewHeight
	}
	if s.AvatarSize <= 0 {
		s.AvatarSize = d.AvatarSize
	}
	if s.LabelGap <= 0 {
		s.LabelGap = d.LabelGap
	}
	if s.DecodeWorkers <= 0 {
		s.DecodeWorkers = d.DecodeWorkers
	}
	if s.LogFile == "" {
		s.LogFile = d.LogFile
	}
}

func (s Settings) ReconcileGrace() time.Duration {
	return time.Duration(s.ReconcileMS) * time.Millisecond
}

func (s Settings) JoinTimeout() time.Duration {
	return time.Duration(s.JoinTimeoutMS) * time.Millisecond
}

// loadSettings reads dir/settings.json. A missing file yields the defaults
// and ok == false.
func loadSettings(dir string) (Settings, bool, error) {
	s := defaultSettings()
	data, err := os.ReadFile(filepath.Join(dir, "settings.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return s, false, nil
		}
		return s, false, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return defaultSettings(), false, fmt.Errorf("parse settings: %w", err)
	}
	s.applyDefaults()
	return s, true, nil
}

func saveSettings(dir string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
