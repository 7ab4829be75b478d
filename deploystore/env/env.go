// Package env tells the store which execution context it runs in and where the
// project tree and the writable data directory live.
package env

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvMode selects the mode explicitly: "authoring", "packaged" or "auto".
	EnvMode = "DEPLOYSTORE_MODE"
	// EnvProjectRoot overrides the project (or bundle) root.
	EnvProjectRoot = "DEPLOYSTORE_PROJECT_ROOT"
	// EnvDataRoot overrides the writable per-installation data root.
	EnvDataRoot = "DEPLOYSTORE_DATA_ROOT"

	// ProjectMarker is the file whose presence in the project root marks a
	// writable authoring tree when the mode is "auto".
	ProjectMarker = ".deployproject"
)

type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeAuthoring Mode = "authoring"
	ModePackaged  Mode = "packaged"
)

// ParseMode accepts the Mode constants case-insensitively; "" is ModeAuto.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, true
	case ModeAuthoring, "editor":
		return ModeAuthoring, true
	case ModePackaged, "build":
		return ModePackaged, true
	}
	return ModeAuto, false
}

// Resolver answers environment queries. Implementations must not cache: every
// call reflects the environment at the time of the call.
type Resolver interface {
	IsAuthoringMode() bool
	ProjectRoot() string
	WritableDataRoot() string
}

// Static is a Resolver with fixed answers, used by tests and by callers that
// already know their context.
type Static struct {
	Authoring bool
	Project   string
	Data      string
}

var _ Resolver = Static{}

func (s Static) IsAuthoringMode() bool    { return s.Authoring }
func (s Static) ProjectRoot() string      { return s.Project }
func (s Static) WritableDataRoot() string { return s.Data }

// OS resolves the environment from process environment variables, the working
// directory and the user's config directory.
type OS struct {
	// AppName names the directory created under the user config dir.
	AppName string
	// Mode, when not ModeAuto, wins over EnvMode.
	Mode Mode
	// Project and Data, when set, win over EnvProjectRoot and EnvDataRoot.
	Project string
	Data    string
}

var _ Resolver = OS{}

func (o OS) IsAuthoringMode() bool {
	mode := o.Mode
	if mode == "" || mode == ModeAuto {
		mode, _ = ParseMode(os.Getenv(EnvMode))
	}
	switch mode {
	case ModeAuthoring:
		return true
	case ModePackaged:
		return false
	}
	_, err := os.Stat(filepath.Join(o.ProjectRoot(), ProjectMarker))
	return err == nil
}

func (o OS) ProjectRoot() string {
	if o.Project != "" {
		return o.Project
	}
	if root := os.Getenv(EnvProjectRoot); root != "" {
		return root
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func (o OS) WritableDataRoot() string {
	if o.Data != "" {
		return o.Data
	}
	if root := os.Getenv(EnvDataRoot); root != "" {
		return root
	}
	app := o.AppName
	if app == "" {
		app = "deploystore"
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), app)
	}
	return filepath.Join(dir, app)
}
