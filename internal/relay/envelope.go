package relay

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Call names host logic and the arguments to run it with. Arguments must be
// plain values that are safe to move between goroutines; host runtime
// handles never cross.
type Call struct {
	Func string
	Args []any
}

// Reply is the outcome of one host call.
type Reply struct {
	Value any
	Err   error
}

// ReplySlot is a one-shot handoff cell. The dispatcher writes it exactly
// once and the requesting worker reads it exactly once.
type ReplySlot struct {
	ch      chan Reply
	written atomic.Bool
}

func newReplySlot() *ReplySlot {
	return &ReplySlot{ch: make(chan Reply, 1)}
}

// put never blocks; a second write is a defect.
func (s *ReplySlot) put(r Reply) {
	if !s.written.CompareAndSwap(false, true) {
		defect("reply slot written twice")
	}
	s.ch <- r
}

// Written reports whether a reply has been delivered.
func (s *ReplySlot) Written() bool { return s.written.Load() }

// Request is the envelope for one host call. It is created by a worker,
// observed by at most one consumer (the dispatcher, or the channel while
// closing), and discarded once the reply is delivered.
type Request struct {
	ID       uuid.UUID
	Call     Call
	Enqueued time.Time

	reply     *ReplySlot
	claimed   atomic.Bool
	abandoned atomic.Bool
}

// NewRequest wraps call in a fresh envelope with its own reply slot.
func NewRequest(call Call) *Request {
	return &Request{
		ID:    uuid.New(),
		Call:  call,
		reply: newReplySlot(),
	}
}

// Reply returns the request's reply slot.
func (r *Request) Reply() *ReplySlot { return r.reply }

// claim marks the request observed; a second observation is a defect.
func (r *Request) claim() {
	if !r.claimed.CompareAndSwap(false, true) {
		defect("request " + r.ID.String() + " observed twice")
	}
}

// abandon records that the requester stopped waiting.
func (r *Request) abandon() { r.abandoned.Store(true) }

// Abandoned reports whether the requester stopped waiting for the reply.
func (r *Request) Abandoned() bool { return r.abandoned.Load() }
