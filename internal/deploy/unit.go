package deploy

import (
	"fmt"
	"io"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
)

// UnitSpec describes the persistent service unit written by deploy.
type UnitSpec struct {
	Name        string
	Description string
	ExecStart   string
	WorkingDir  string
	Environment []string

	// User installs under the user manager (WantedBy=default.target)
	// instead of the system one.
	User bool
}

// Render serializes the unit file content.
func (s UnitSpec) Render() (string, error) {
	wantedBy := "multi-user.target"
	if s.User {
		wantedBy = "default.target"
	}

	opts := []*unit.UnitOption{
		unit.NewUnitOption("Unit", "Description", s.Description),
		unit.NewUnitOption("Unit", "After", "network.target"),
		unit.NewUnitOption("Service", "ExecStart", s.ExecStart),
		unit.NewUnitOption("Service", "Restart", "always"),
		unit.NewUnitOption("Service", "RestartSec", "2"),
	}
	if s.WorkingDir != "" {
		opts = append(opts, unit.NewUnitOption("Service", "WorkingDirectory", s.WorkingDir))
	}
	for _, env := range s.Environment {
		opts = append(opts, unit.NewUnitOption("Service", "Environment", env))
	}
	opts = append(opts, unit.NewUnitOption("Install", "WantedBy", wantedBy))

	var b strings.Builder
	if _, err := io.Copy(&b, unit.Serialize(opts)); err != nil {
		return "", fmt.Errorf("serializing unit: %w", err)
	}
	return b.String(), nil
}
