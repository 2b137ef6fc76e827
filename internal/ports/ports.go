// Package ports finds and removes processes occupying a TCP listen port.
// The launcher uses it to clear stale backends before starting a new one.
package ports

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

var tcpTables = []string{"/proc/net/tcp", "/proc/net/tcp6"}

// Listeners returns the PIDs of processes holding a LISTEN socket on port.
func Listeners(port int) ([]int, error) {
	inodes := make(map[uint64]struct{})
	for _, table := range tcpTables {
		f, err := os.Open(table)
		if err != nil {
			continue // tcp6 may be absent
		}
		ins, perr := parseListenInodes(f, port)
		f.Close()
		if perr != nil {
			return nil, fmt.Errorf("parsing %s: %w", table, perr)
		}
		for _, in := range ins {
			inodes[in] = struct{}{}
		}
	}
	if len(inodes) == 0 {
		return nil, nil
	}
	return pidsForInodes(inodes)
}

// parseListenInodes scans a /proc/net/tcp-format table for sockets in
// LISTEN state bound to port, returning their inode numbers.
func parseListenInodes(r io.Reader, port int) ([]uint64, error) {
	const stateListen = "0A"

	var inodes []uint64
	scanner := bufio.NewScanner(r)
	scanner.Scan() // header
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// sl local_address rem_address st ... uid timeout inode
		if len(fields) < 10 {
			continue
		}
		if fields[3] != stateListen {
			continue
		}
		local := fields[1]
		idx := strings.LastIndexByte(local, ':')
		if idx < 0 {
			continue
		}
		p, err := strconv.ParseInt(local[idx+1:], 16, 32)
		if err != nil || int(p) != port {
			continue
		}
		inode, err := strconv.ParseUint(fields[9], 10, 64)
		if err != nil {
			continue
		}
		inodes = append(inodes, inode)
	}
	return inodes, scanner.Err()
}

// pidsForInodes walks /proc/[pid]/fd looking for the given socket inodes.
func pidsForInodes(inodes map[uint64]struct{}) ([]int, error) {
	procs, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("reading /proc: %w", err)
	}

	var pids []int
	for _, entry := range procs {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join("/proc", entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue // no permission or gone
		}
		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil || !strings.HasPrefix(target, "socket:[") {
				continue
			}
			inode, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(target, "socket:["), "]"), 10, 64)
			if err != nil {
				continue
			}
			if _, ok := inodes[inode]; ok {
				pids = append(pids, pid)
				break
			}
		}
	}
	return pids, nil
}

// Free kills every process listening on port (SIGKILL, matching the
// original scripts) and waits for the port to clear, up to a second.
// It returns the PIDs it killed. Lookup failures are reported; an empty
// port is not an error.
func Free(port int) ([]int, error) {
	pids, err := Listeners(port)
	if err != nil {
		return nil, err
	}
	if len(pids) == 0 {
		return nil, nil
	}

	for _, pid := range pids {
		// Ignore failures: the process may already be gone.
		unix.Kill(pid, unix.SIGKILL)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		remaining, err := Listeners(port)
		if err != nil || len(remaining) == 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	return pids, nil
}

// Alive reports whether pid refers to a live process.
func Alive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}
