//go:build !windows

package executor

import "strings"

// pingCountFlag bounds the number of echo requests sent by ping.
const pingCountFlag = "-c"

// pingValueFlags take a value, so letters after them in a cluster such as
// "-I eth0" or "-s56" are not flags.
const pingValueFlags = "iIlmMpQsStTW"

// pingBounded reports whether ping args already stop on their own: a count
// (-c, --count) or a deadline (-w, --deadline). -n only selects numeric
// output here.
func pingBounded(args []string) bool {
	for _, a := range args {
		switch {
		case a == "--":
			return false
		case a == "--count" || a == "--deadline":
			return true
		case strings.HasPrefix(a, "--count=") || strings.HasPrefix(a, "--deadline="):
			return true
		case strings.HasPrefix(a, "--"), !strings.HasPrefix(a, "-"), len(a) < 2:
			continue
		}
		if clusterBounds(a[1:]) {
			return true
		}
	}
	return false
}

// clusterBounds scans a short-flag cluster such as "qc3".
func clusterBounds(cluster string) bool {
	for _, r := range cluster {
		switch {
		case r == 'c' || r == 'w':
			return true
		case strings.ContainsRune(pingValueFlags, r):
			return false
		}
	}
	return false
}
