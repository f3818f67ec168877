//go:build !race

package testutil

import "time"

// Timeout bounds waits in tests.
var Timeout = 10 * time.Second
