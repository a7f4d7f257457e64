// Package hub pushes analysis status updates to live websocket clients.
//
// Clients subscribe to topics (analysis ids). On subscribe the hub reads the
// current record through a SnapshotSource and sends it as a status_update
// before the subscribed acknowledgment, so a subscriber never waits for the
// next write to learn the current state. Broadcast then pushes every change
// to the topic's subscribers.
//
// Delivery is best effort and at most once per connection: each connection
// has a bounded outbound queue, and a connection whose queue cannot take a
// message is removed from the topic. There is no backlog; a client that
// missed updates re-subscribes to get a fresh snapshot.
//
// Protocol (JSON):
//
//	client -> hub  {"type":"subscribe","topic":"<id>"}   (alias: start_analysis, analysisId)
//	               {"type":"unsubscribe","topic":"<id>"} (alias: stop_analysis)
//	               {"type":"ping"}
//	hub -> client  connected, subscribed, unsubscribed, status_update,
//	               notification, pong, error
package hub
