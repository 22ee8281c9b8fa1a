package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"github.com/loykin/launchr/internal/apperr"
)

type GraphicsQuality string

const (
	GraphicsFast     GraphicsQuality = "fast"
	GraphicsFancy    GraphicsQuality = "fancy"
	GraphicsFabulous GraphicsQuality = "fabulous"
)

type Resolution struct {
	Width  uint32 `json:"width" validate:"min=320"`
	Height uint32 `json:"height" validate:"min=240"`
}

// LaunchSettings is persisted as a whole; Save replaces the previous record.
type LaunchSettings struct {
	MaxMemoryMB     uint32          `json:"max_memory_mb" validate:"required,min=256"`
	MinMemoryMB     uint32          `json:"min_memory_mb" validate:"required,min=128,ltefield=MaxMemoryMB"`
	JavaPath        string          `json:"java_path,omitempty"`
	JavaArgs        []string        `json:"java_args"`
	GameArgs        []string        `json:"game_args"`
	Resolution      Resolution      `json:"resolution"`
	Fullscreen      bool            `json:"fullscreen"`
	VSync           bool            `json:"vsync"`
	RenderDistance  uint8           `json:"render_distance" validate:"min=2,max=32"`
	GraphicsQuality GraphicsQuality `json:"graphics_quality" validate:"oneof=fast fancy fabulous"`
}

// Default returns the built-in settings used when nothing is persisted.
func Default() LaunchSettings {
	return LaunchSettings{
		MaxMemoryMB: 4096,
		MinMemoryMB: 512,
		JavaArgs: []string{
			"-XX:+UseG1GC",
			"-XX:+ParallelRefProcEnabled",
			"-XX:MaxGCPauseMillis=200",
			"-XX:+UnlockExperimentalVMOptions",
			"-XX:+DisableExplicitGC",
			"-XX:+AlwaysPreTouch",
			"-XX:G1NewSizePercent=30",
			"-XX:G1MaxNewSizePercent=40",
			"-XX:G1HeapRegionSize=8M",
			"-XX:G1ReservePercent=20",
			"-XX:G1HeapWastePercent=5",
		},
		GameArgs:        []string{},
		Resolution:      Resolution{Width: 1920, Height: 1080},
		VSync:           true,
		RenderDistance:  12,
		GraphicsQuality: GraphicsFancy,
	}
}

// Clone returns a deep copy so callers can't mutate stored slices.
func (s LaunchSettings) Clone() LaunchSettings {
	s.JavaArgs = slices.Clone(s.JavaArgs)
	s.GameArgs = slices.Clone(s.GameArgs)
	return s
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field bounds (memory ordering, render distance, quality enum).
func (s LaunchSettings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return apperr.Invalid(fmt.Sprintf("invalid setting %s (%s)", f.Field(), f.Tag()), err)
		}
		return apperr.Invalid("invalid settings", err)
	}
	return nil
}

// Store reads and writes the settings record at a fixed path.
type Store struct {
	fs   afero.Fs
	path string
}

func NewStore(fs afero.Fs, path string) *Store { return &Store{fs: fs, path: path} }

func (s *Store) Path() string { return s.path }

// Load returns Default when no record exists.
func (s *Store) Load() (LaunchSettings, error) {
	b, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return LaunchSettings{}, apperr.Filesystem("read settings", err)
	}
	var out LaunchSettings
	if err := json.Unmarshal(b, &out); err != nil {
		return LaunchSettings{}, apperr.Serialization("decode "+filepath.Base(s.path), err)
	}
	if out.JavaArgs == nil {
		out.JavaArgs = []string{}
	}
	if out.GameArgs == nil {
		out.GameArgs = []string{}
	}
	return out, nil
}

// Save validates and writes the record through a temp file renamed over the target,
// so readers never observe a truncated file.
func (s *Store) Save(ls LaunchSettings) error {
	if err := ls.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(ls, "", "  ")
	if err != nil {
		return apperr.Serialization("encode settings", err)
	}
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return apperr.Filesystem("create settings dir", err)
	}
	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return apperr.Filesystem("create temp settings file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = s.fs.Remove(tmpName) }
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		cleanup()
		return apperr.Filesystem("write settings", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return apperr.Filesystem("sync settings", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return apperr.Filesystem("close settings", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		cleanup()
		return apperr.Filesystem("replace settings", err)
	}
	return nil
}
