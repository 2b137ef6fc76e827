// Package dirs provides standard directory resolution for confpush.
// It handles XDG base directories with appropriate fallbacks for
// platforms where XDG isn't fully supported.
package dirs

import (
	"os"
	"path/filepath"
)

// StateDir returns the directory for persistent state data (the profile
// snapshot file).
// Priority: $CONFPUSH_STATE_DIR > $XDG_STATE_HOME/confpush > ~/.local/state/confpush
func StateDir() string {
	if v := os.Getenv("CONFPUSH_STATE_DIR"); v != "" {
		return v
	}
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, "confpush")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".local", "state", "confpush")
	}
	return filepath.Join(os.TempDir(), "confpush-state")
}

// LogDir returns the directory the launcher redirects child output into.
// Priority: $CONFPUSH_LOG_DIR > ./logs (the original deployment keeps logs
// next to the working directory).
func LogDir() string {
	if v := os.Getenv("CONFPUSH_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}
