// Package goroutineid identifies the calling goroutine.
//
// The relay uses it to remember which goroutine owns the host runtime, so
// that a proxy call issued from that same goroutine (which could never be
// serviced) is rejected instead of hanging.
package goroutineid

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"
)

// headerSize covers "goroutine " plus a 20 digit id plus " [".
const headerSize = 64

var prefix = []byte("goroutine ")

// Get returns the id of the calling goroutine, or 0 if it cannot be parsed.
func Get() int64 {
	var buf [headerSize]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

// Owner records a goroutine id and reports whether later callers are that
// goroutine. The zero value owns nothing. Safe for concurrent use.
type Owner struct {
	id atomic.Int64
}

// Claim binds o to the calling goroutine.
func (o *Owner) Claim() { o.id.Store(Get()) }

// Release unbinds o.
func (o *Owner) Release() { o.id.Store(0) }

// ID returns the claimed goroutine id, 0 if unclaimed.
func (o *Owner) ID() int64 { return o.id.Load() }

// IsCurrent reports whether the caller is the claiming goroutine.
func (o *Owner) IsCurrent() bool {
	id := o.id.Load()
	return id != 0 && id == Get()
}

// parse extracts the id from a stack header of the form "goroutine N [...".
func parse(stack []byte) int64 {
	rest, ok := bytes.CutPrefix(stack, prefix)
	if !ok {
		return 0
	}
	end := bytes.IndexByte(rest, ' ')
	if end < 0 {
		end = len(rest)
	}
	id, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
