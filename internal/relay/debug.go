//go:build debug

package relay

import (
	"fmt"
	"runtime"

	"github.com/joeycumines/relayframe/internal/goroutineid"
)

// defect panics with a stack trace. Defects are logic errors, never runtime
// conditions.
func defect(msg string) {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	panic(fmt.Sprintf("relay defect: %s\nStack:\n%s", msg, buf[:n]))
}

// debugAssertOwner panics unless the caller is the owning goroutine.
func debugAssertOwner(o *goroutineid.Owner, what string) {
	if !o.IsCurrent() {
		defect(what + " outside the owning goroutine")
	}
}
