// Package deploy installs confpushd as a systemd service: it writes the
// unit file, reloads the daemon, enables and starts the unit over D-Bus.
// It can also run the backend as a transient unit without touching disk.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"
)

// Manager wraps a systemd D-Bus connection.
type Manager struct {
	conn *dbus.Conn
	user bool
}

// Connect opens a connection to the system manager, or the user manager
// when user is true.
func Connect(ctx context.Context, user bool) (*Manager, error) {
	var conn *dbus.Conn
	var err error
	if user {
		conn, err = dbus.NewUserConnectionContext(ctx)
	} else {
		conn, err = dbus.NewSystemConnectionContext(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to systemd: %w", err)
	}
	return &Manager{conn: conn, user: user}, nil
}

func (m *Manager) Close() {
	m.conn.Close()
}

// UnitDir returns where unit files are installed for this manager.
func (m *Manager) UnitDir() (string, error) {
	if !m.user {
		return "/etc/systemd/system", nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("finding config dir: %w", err)
	}
	return filepath.Join(configDir, "systemd", "user"), nil
}

// Install writes the unit file, reloads systemd, enables the unit, and
// starts it. The returned path is where the unit file landed.
func (m *Manager) Install(ctx context.Context, spec UnitSpec) (string, error) {
	content, err := spec.Render()
	if err != nil {
		return "", err
	}

	unitDir, err := m.UnitDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(unitDir, 0o755); err != nil {
		return "", fmt.Errorf("creating unit dir: %w", err)
	}
	unitPath := filepath.Join(unitDir, spec.Name)
	if err := os.WriteFile(unitPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing unit file: %w", err)
	}

	if err := m.Reload(ctx); err != nil {
		return unitPath, err
	}
	if err := m.Enable(ctx, spec.Name); err != nil {
		return unitPath, err
	}
	if err := m.Start(ctx, spec.Name); err != nil {
		return unitPath, err
	}
	return unitPath, nil
}

// Uninstall stops and disables the unit, removes its file, and reloads
// systemd. Stop and disable failures are ignored so a half-installed unit
// can still be removed.
func (m *Manager) Uninstall(ctx context.Context, name string) error {
	m.Stop(ctx, name)
	m.conn.DisableUnitFilesContext(ctx, []string{name}, false)

	unitDir, err := m.UnitDir()
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(unitDir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing unit file: %w", err)
	}

	return m.Reload(ctx)
}

// Reload tells systemd to reload its configuration (daemon-reload).
func (m *Manager) Reload(ctx context.Context) error {
	if err := m.conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}
	return nil
}

// Enable enables the unit file so it starts on boot.
func (m *Manager) Enable(ctx context.Context, name string) error {
	if _, _, err := m.conn.EnableUnitFilesContext(ctx, []string{name}, false, true); err != nil {
		return fmt.Errorf("enabling %s: %w", name, err)
	}
	return nil
}

// Start starts the unit and blocks until the job completes.
func (m *Manager) Start(ctx context.Context, name string) error {
	resultChan := make(chan string, 1)
	if _, err := m.conn.StartUnitContext(ctx, name, "replace", resultChan); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	return waitJob(ctx, resultChan, "start")
}

// Stop stops the unit and blocks until the job completes.
func (m *Manager) Stop(ctx context.Context, name string) error {
	resultChan := make(chan string, 1)
	if _, err := m.conn.StopUnitContext(ctx, name, "replace", resultChan); err != nil {
		return fmt.Errorf("stopping %s: %w", name, err)
	}
	return waitJob(ctx, resultChan, "stop")
}

func waitJob(ctx context.Context, resultChan <-chan string, verb string) error {
	select {
	case result := <-resultChan:
		if result != "done" {
			return fmt.Errorf("%s job failed: %s", verb, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UnitStatus is a subset of a unit's properties.
type UnitStatus struct {
	ActiveState string
	SubState    string
	MainPID     uint32
}

// Status queries the unit's current state.
func (m *Manager) Status(ctx context.Context, name string) (UnitStatus, error) {
	props, err := m.conn.GetUnitPropertiesContext(ctx, name)
	if err != nil {
		return UnitStatus{}, fmt.Errorf("querying %s: %w", name, err)
	}

	var st UnitStatus
	if s, ok := props["ActiveState"].(string); ok {
		st.ActiveState = s
	}
	if s, ok := props["SubState"].(string); ok {
		st.SubState = s
	}

	serviceProps, err := m.conn.GetUnitTypePropertiesContext(ctx, name, "Service")
	if err == nil {
		if pid, ok := serviceProps["MainPID"].(uint32); ok {
			st.MainPID = pid
		}
	}
	return st, nil
}

// StartTransient runs the command as a transient service unit. The unit
// vanishes when it stops; nothing is written under the unit directories.
func (m *Manager) StartTransient(ctx context.Context, name, description string, command []string, env []string) error {
	props := []dbus.Property{
		dbus.PropExecStart(command, false),
		dbus.PropDescription(description),
		{Name: "Restart", Value: godbus.MakeVariant("always")},
		{Name: "CollectMode", Value: godbus.MakeVariant("inactive-or-failed")},
	}
	if len(env) > 0 {
		props = append(props, dbus.Property{
			Name:  "Environment",
			Value: godbus.MakeVariant(env),
		})
	}

	resultChan := make(chan string, 1)
	if _, err := m.conn.StartTransientUnitContext(ctx, name, "replace", props, resultChan); err != nil {
		return fmt.Errorf("starting transient unit: %w", err)
	}
	return waitJob(ctx, resultChan, "start")
}
