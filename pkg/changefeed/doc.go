// Package changefeed bridges status record writes to live subscribers.
//
// A Listener opens a change feed through a Watcher (MongoWatcher for a
// MongoDB change stream, SourceWatcher for the in-memory store) and calls
// Publisher.Broadcast with the record's snapshot for every insert, update
// and replace. A feed that fails or closes is closed and reopened after
// the restart delay for as long as the listener runs. There is no resume
// token: writes made while the feed is down are not replayed, clients
// catch up by subscribing again.
//
//	l := changefeed.New(changefeed.NewMongoWatcher(coll), hub)
//	if err := l.Start(ctx); err != nil {
//		return err
//	}
//	defer l.Shutdown(ctx)
package changefeed
