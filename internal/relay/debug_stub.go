//go:build !debug

package relay

import "github.com/joeycumines/relayframe/internal/goroutineid"

// defect panics. Defects are logic errors, never runtime conditions.
func defect(msg string) {
	panic("relay defect: " + msg)
}

func debugAssertOwner(*goroutineid.Owner, string) {}
