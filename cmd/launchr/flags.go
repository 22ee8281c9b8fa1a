package main

import "time"

// GlobalFlags are the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
	// Remote server connection; empty runs the command in-process.
	APIUrl     string
	APITimeout time.Duration
}

type LaunchFlags struct {
	Modpack     string
	Username    string
	RuntimeArgs []string
	AppArgs     []string
}

type VersionsFlags struct {
	Available bool
	Refresh   bool
}

type InstallFlags struct {
	NoWait bool
}

// SettingsFlags mirror LaunchSettings; only flags set on the command line are
// applied.
type SettingsFlags struct {
	MaxMemoryMB     uint32
	MinMemoryMB     uint32
	JavaPath        string
	JavaArgs        []string
	GameArgs        []string
	Width           uint32
	Height          uint32
	Fullscreen      bool
	VSync           bool
	RenderDistance  uint8
	GraphicsQuality string
}
