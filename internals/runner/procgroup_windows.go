//go:build windows

package runner

import (
	"os"
	"os/exec"
	"strconv"
)

func setProcessGroup(cmd *exec.Cmd) {}

// Windows has no signal to ask politely, so terminate kills the tree too.
func terminateGroup(pid int) error {
	return killGroup(pid)
}

// killGroup kills pid and its descendants. taskkill walks the tree only while
// pid is alive; once it has exited, the fallback is a no-op.
func killGroup(pid int) error {
	if err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run(); err == nil {
		return nil
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	_ = process.Kill()
	return nil
}

// groupAlive is false because Windows has no process group to probe after the
// shell exits.
func groupAlive(pid int) bool {
	return false
}

func exitCode(state *os.ProcessState) int {
	return state.ExitCode()
}
