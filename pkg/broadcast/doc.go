// Package broadcast provides a typed, non-blocking in-process fan-out.
//
// The subscription hub publishes its lifecycle events through it and the
// in-memory status store uses it to emit change events.
//
//	b := broadcast.NewMemoryBroadcaster[Event](16)
//	sub := b.Subscribe(ctx)
//	for msg := range sub.Receive(ctx) {
//	    handle(msg.Data)
//	}
package broadcast
