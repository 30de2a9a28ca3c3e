//go:build windows

package executor

import "strings"

const pingCountFlag = "-n"

// pingBounded reports whether ping args carry a count (-n or /n).
func pingBounded(args []string) bool {
	for _, a := range args {
		if strings.EqualFold(a, "-n") || strings.EqualFold(a, "/n") {
			return true
		}
	}
	return false
}
