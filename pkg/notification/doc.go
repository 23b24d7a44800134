// Package notification provides notification delivery for simple-flow.
//
// The NotificationManager maps (notice type, system) pairs to templates
// and dispatches rendered messages through registered Notifier
// implementations. Email delivery uses SMTP via go-mail; the flow
// engine treats delivery as fire-and-forget.
//
// # Basic Usage
//
//	nm, err := notification.NewNotificationManager(
//		notification.WithSMTP(smtpConfig),
//		notification.WithEmailVerificationTemplate(),
//	)
//
//	err = nm.Send(notification.EmailVerificationNotice, notification.EmailSystem,
//		notification.NotificationData{
//			To:   "user@example.com",
//			Data: map[string]string{"URL": link, "Expires": expires},
//		})
package notification
