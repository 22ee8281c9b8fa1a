package launcher

import (
	"github.com/loykin/launchr/internal/install"
	"github.com/loykin/launchr/internal/javaruntime"
	"github.com/loykin/launchr/internal/manager"
	"github.com/loykin/launchr/internal/settings"
	"github.com/loykin/launchr/internal/store"
)

type (
	VersionRecord  = store.VersionRecord
	RuntimeRecord  = javaruntime.Record
	InstallState   = install.State
	LaunchSettings = settings.LaunchSettings
	Session        = manager.Session
)

// LaunchSpec is a launch request. RuntimeArgs and AppArgs are appended after the
// settings' own arguments. Without a Modpack the game runs with versions/<id> as
// both its working directory and --gameDir. With Modpack set, both move to
// modpacks/<modpack> so saves and configs stay with the pack; the version jar and
// libraries still come from versions/ and libraries/.
type LaunchSpec struct {
	Version     string   `json:"version"`
	RuntimeArgs []string `json:"runtime_args,omitempty"`
	AppArgs     []string `json:"app_args,omitempty"`
	Modpack     string   `json:"modpack,omitempty"`
	Username    string   `json:"username,omitempty"`
}

// LaunchOutcome reports a launch attempt.
type LaunchOutcome struct {
	Success bool   `json:"success"`
	PID     int    `json:"pid,omitempty"`
	Session string `json:"session,omitempty"`
	Error   string `json:"error,omitempty"`
}
