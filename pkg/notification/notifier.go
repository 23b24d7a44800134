package notification

// NotificationSystem represents a delivery channel (e.g., email).
type NotificationSystem string

// NoticeType represents a kind of notification (e.g., "email_verification").
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"

	EmailVerificationNotice NoticeType = "email_verification"
)

// NotificationData carries the per-message values handed to a notifier.
type NotificationData struct {
	To     string            // Recipient identifier (e.g., email address)
	Locale string            // Preferred locale of the recipient, advisory
	Data   map[string]string // Template values (e.g., resumption URL, expiry)
}

// NoticeTemplate holds the subject and body templates for a notice.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// Notifier delivers a rendered notice over one system. Delivery is
// fire-and-forget from the flow engine's perspective.
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
