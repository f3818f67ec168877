//go:build race

package testutil

import "time"

// Timeout bounds waits in tests. Race builds schedule much more slowly.
var Timeout = 30 * time.Second
