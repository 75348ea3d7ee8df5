//go:build !unix

package proc

import "os/exec"

// killGroupOnCancel keeps the default behaviour: only the direct child is killed.
func killGroupOnCancel(*exec.Cmd) {}
