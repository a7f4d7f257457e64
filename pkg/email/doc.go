// Package email provides a provider-agnostic interface for sending
// transactional emails.
//
// The package is built around the EmailSender interface. Three
// implementations are available:
//   - the Postmark client for production delivery with open and link tracking
//   - DevSender for local development, which writes each email to disk as JSON
//   - MockSender, which keeps accepted emails in memory
//
// NewSender selects one of them from Config.Provider:
//
//	sender, err := email.NewSender(cfg)
//	if err != nil {
//	    return err
//	}
//
//	id, err := sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "user@example.com",
//	    Subject:  "Your analysis is ready",
//	    BodyText: "Analysis 42 completed.",
//	    Tag:      "analysis",
//	})
//
// Every implementation validates SendEmailParams before sending and returns
// the provider message id on success.
//
// # Error Handling
//
//   - ErrInvalidConfig: configuration validation failed
//   - ErrInvalidParams: email parameters validation failed
//   - ErrFailedToSendEmail: email delivery failed
//   - ErrRecipientRejected: Postmark refused the recipient (inactive or
//     malformed address); joined with ErrFailedToSendEmail
package email
