// Package notifications delivers messages to users over several channels
// through the job queue.
//
// A Service validates a Request and enqueues it as a "sendNotification" job
// with three attempts and exponential backoff starting at two seconds. A
// Dispatcher, registered with the queue worker, handles those jobs: it
// resolves every requested channel name through the Registry and then sends
// through each channel in turn.
//
// Channel names are matched case-insensitively. Channels are built lazily by
// their Factory on first use and cached until Reset. An unknown channel name
// fails the job attempt before anything is sent, so the queue retries it.
// A channel that fails to send does not: its error is recorded in the Report
// and the remaining channels are still attempted. A job whose channels all
// failed is completed with FailedChannels equal to the number of channels.
//
//	registry := notifications.NewRegistry(
//	    notifications.WithChannel("email", func() (notifications.Channel, error) {
//	        return emailchannel.New(sender, cfg)
//	    }),
//	)
//	dispatcher, _ := notifications.NewDispatcher(registry)
//	worker.RegisterHandler(dispatcher.Handler())
//
//	svc, _ := notifications.NewService(enqueuer, notifications.WithHistory(storage))
//	jobID, err := svc.Enqueue(ctx, notifications.Request{
//	    Recipient: "42",
//	    Channels:  []string{"email", "push"},
//	    Message:   "Your analysis is ready",
//	})
package notifications
