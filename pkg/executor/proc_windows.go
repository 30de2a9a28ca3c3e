//go:build windows

package executor

import "os/exec"

func configureCommandProcess(cmd *exec.Cmd) {}

func terminateCommandProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func defaultShell() string {
	return "cmd.exe"
}

func shellArgs(command string) []string {
	return []string{"/C", command}
}
