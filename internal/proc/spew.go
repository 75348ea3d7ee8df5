package proc

import "strings"

// SpaceWarning is the line npm prints for every file it fails to unpack once
// the scratch disk is full.
const SpaceWarning = "npm WARN tar ENOSPC: no space left on device, write\n"

// ReduceSpew keeps the first SpaceWarning in message and drops the repeats.
func ReduceSpew(message string) string {
	index := strings.Index(message, SpaceWarning)
	if index < 0 {
		return message
	}
	return message[:index] + SpaceWarning + strings.ReplaceAll(message[index:], SpaceWarning, "")
}
