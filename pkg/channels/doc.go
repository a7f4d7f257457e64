// Package channels groups the notification channel adapters.
//
// Each subpackage implements notifications.Channel for one medium:
//   - email: transactional email through pkg/email (Postmark, dev files, mock)
//   - whatsapp: chat messages through an HTTP messaging API
//   - sms: text messages through Amazon SNS
//   - push: in-app notices pushed to websocket subscribers of the hub
//
// Every adapter has a "mock" provider that accepts messages without calling
// out, and validates its own configuration independently of the others.
package channels
