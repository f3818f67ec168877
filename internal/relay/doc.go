// Package relay lets worker goroutines run logic that must execute on the
// single goroutine owning a host runtime.
//
// The host runtime (for example a goja VM) is not goroutine-safe. Engine
// code running on a worker pool therefore never calls it directly. Instead a
// worker calls [Proxy.Call], which wraps the call in a [Request], pushes it
// onto a [Channel] and blocks on the request's [ReplySlot]. The owning
// goroutine runs [Dispatcher.Run], which pulls requests, invokes the [Host]
// and writes each result into its slot.
//
// [Execute] ties the two together: it starts a query job on a driver
// goroutine and turns the calling goroutine into the dispatcher until the job
// finishes. It is the only safe place to launch engine work that may need the
// host.
//
//	df, err := relay.Execute(ctx, vm, func(ctx context.Context, p *relay.Proxy) (*Frame, error) {
//	    v, err := p.Call(ctx, "double", 21)
//	    ...
//	})
//
// Lifecycle per execution: Idle → Submitted → Dispatching → Completed|Failed.
// Closing the channel fails every queued and future request with
// [ErrChannelClosed], so no worker can block forever once an execution ends.
package relay
