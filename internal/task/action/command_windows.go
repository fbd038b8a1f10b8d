//go:build windows

package action

import "os/exec"

func setCommandProcessGroup(*exec.Cmd) {}

func killCommandProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
