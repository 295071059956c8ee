// Package email sends rendered notification emails.
//
// EmailSender is the provider abstraction used by the email channel worker.
// Two implementations are provided:
//   - NewPostmarkClient delivers through Postmark's transactional API
//   - NewDevSender writes each message to a directory for local inspection
//
// Both validate SendEmailParams before doing any work. Provider failures are
// wrapped with ErrFailedToSendEmail; recipients Postmark refuses outright
// (invalid or inactive addresses) are additionally marked with
// ErrRecipientRejected so callers can skip pointless retries.
//
//	sender, err := email.NewPostmarkClient(cfg)
//	if err != nil {
//		return err
//	}
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//		SendTo:   "user@example.com",
//		Subject:  "Your order shipped",
//		BodyText: "Tracking: 1Z999",
//		BodyHTML: "<p>Tracking: 1Z999</p>",
//		Tag:      "order_shipped",
//	})
package email
