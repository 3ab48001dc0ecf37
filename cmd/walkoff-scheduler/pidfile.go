package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const pidFileName = "daemon.pid"

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, pidFileName)
}

func writePidFile(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(dataDir), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePidFile(dataDir string) error {
	err := os.Remove(pidFilePath(dataDir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func readPidFile(dataDir string) (int, error) {
	data, err := os.ReadFile(pidFilePath(dataDir))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID: %d", pid)
	}
	return pid, nil
}

// daemonRunning reports the PID of a live scheduler process owning dataDir
func daemonRunning(dataDir string) (int, bool) {
	pid, err := readPidFile(dataDir)
	if err != nil {
		return 0, false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	// FindProcess always succeeds on unix; signal 0 probes liveness
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	return pid, true
}
