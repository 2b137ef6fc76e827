package launch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStartRedirectsOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "child.log")
	c, err := Start("echo", []string{"sh", "-c", "echo hello; echo oops >&2"}, Options{LogPath: logPath})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	code, err := c.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d", code)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "hello") || !strings.Contains(string(data), "oops") {
		t.Errorf("log missing output: %q", data)
	}
}

func TestStartTruncatesOldLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "child.log")
	if err := os.WriteFile(logPath, []byte("stale content\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Start("echo", []string{"sh", "-c", "echo fresh"}, Options{LogPath: logPath})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Wait()

	data, _ := os.ReadFile(logPath)
	if strings.Contains(string(data), "stale") {
		t.Errorf("old log content survived: %q", data)
	}
}

func TestExitCodePropagates(t *testing.T) {
	c, err := Start("fail", []string{"sh", "-c", "exit 7"}, Options{
		LogPath: filepath.Join(t.TempDir(), "fail.log"),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	code, _ := c.Wait()
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
}

func TestRunningAndDone(t *testing.T) {
	c, err := Start("sleep", []string{"sleep", "5"}, Options{
		LogPath: filepath.Join(t.TempDir(), "sleep.log"),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.Running() {
		t.Error("freshly started child reported dead")
	}

	c.Terminate(time.Second)

	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("Done not closed after Terminate")
	}
	if c.Running() {
		t.Error("terminated child reported running")
	}
}

func TestTerminateKillsProcessGroup(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "group.log")
	// The child spawns a grandchild that writes after a delay; killing the
	// group must silence both.
	c, err := Start("group", []string{"sh", "-c", "(sleep 3; echo grandchild) & sleep 3"}, Options{LogPath: logPath})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	c.Terminate(time.Second)
	time.Sleep(3500 * time.Millisecond)

	data, _ := os.ReadFile(logPath)
	if strings.Contains(string(data), "grandchild") {
		t.Errorf("grandchild survived group terminate: %q", data)
	}
}

func TestPTYOutputFullyDrained(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "pty.log")
	c, err := Start("pty", []string{"sh", "-c", "echo first; sleep 0.1; echo last-line"},
		Options{LogPath: logPath, PTY: true})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if code, err := c.Wait(); err != nil || code != 0 {
		t.Fatalf("Wait: code=%d err=%v", code, err)
	}

	// Wait only returns once the drain goroutine has flushed everything.
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "last-line") {
		t.Errorf("final output lost: %q", data)
	}
}

func TestStartEmptyCommand(t *testing.T) {
	if _, err := Start("none", nil, Options{LogPath: filepath.Join(t.TempDir(), "x.log")}); err == nil {
		t.Error("empty command accepted")
	}
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tail.log")
	var b strings.Builder
	for i := 1; i <= 100; i++ {
		b.WriteString(strings.Repeat("x", i%10) + "\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := Tail(path, 50)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 50 {
		t.Errorf("got %d lines, want 50", len(lines))
	}
}

func TestTailShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.log")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, err := Tail(path, 50)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("got %d lines, want 2", len(lines))
	}
}

func TestTailMissingFile(t *testing.T) {
	if _, err := Tail(filepath.Join(t.TempDir(), "absent.log"), 10); err == nil {
		t.Error("missing file accepted")
	}
}
