package notification

// NotificationSystem represents a delivery channel (e.g., email, SMS).
type NotificationSystem string

// NoticeType identifies the kind of notice being sent (e.g., password reset, 2FA code).
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"

	PasswordResetInit     NoticeType = "password_reset_init"
	PasswordChangedNotice NoticeType = "password_changed"
	TwofaCodeNoticeEmail  NoticeType = "twofa_code_email"
	TwofaCodeNoticeSms    NoticeType = "twofa_code_sms"
)

// NoticeTemplate holds the renderable parts of a notice. Text and Html are
// Go text/html templates executed against NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// NotificationData carries per-send values.
type NotificationData struct {
	To      string            // Recipient identifier (email address or phone number)
	Subject string            // Optional override for the template subject
	Body    string            // Pre-rendered content, used when no template applies
	Data    map[string]string // Values substituted into the template
}

type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
