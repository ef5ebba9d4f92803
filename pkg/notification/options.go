package notification

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithSMSGateway adds an SMS notifier with the provided gateway configuration
func WithSMSGateway(config SMSGatewayConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(SMSSystem, NewSMSNotifier(config))
		return nil
	}
}

// WithPasswordResetTemplate registers the password reset template
func WithPasswordResetTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(PasswordResetInit, EmailSystem, NoticeTemplate{
			Subject: "Password Reset Request",
			Text:    "A password reset was requested for your account. Use this token to choose a new password: {{.Token}}\n\nThe token expires in {{.ExpiresIn}}. If you did not request a reset, you can ignore this message.",
			Html:    "<p>A password reset was requested for your account.</p><p>Use this token to choose a new password: <strong>{{.Token}}</strong></p><p>The token expires in {{.ExpiresIn}}. If you did not request a reset, you can ignore this message.</p>",
		})
	}
}

// WithPasswordChangedTemplate registers the password changed confirmation template
func WithPasswordChangedTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(PasswordChangedNotice, EmailSystem, NoticeTemplate{
			Subject: "Your Password Was Changed",
			Text:    "The password for your account was changed. If this was not you, contact support immediately.",
			Html:    "<p>The password for your account was changed.</p><p>If this was not you, contact support immediately.</p>",
		})
	}
}

// WithTwofaCodeEmailTemplate registers the 2FA code email template
func WithTwofaCodeEmailTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(TwofaCodeNoticeEmail, EmailSystem, NoticeTemplate{
			Subject: "Your Verification Code",
			Text:    "Your verification code is: {{.Code}}",
			Html:    "<p>Your verification code is: <strong>{{.Code}}</strong></p>",
		})
	}
}

// WithTwofaCodeSmsTemplate registers the 2FA code SMS template
func WithTwofaCodeSmsTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(TwofaCodeNoticeSms, SMSSystem, NoticeTemplate{
			Subject: "Verification Code",
			Text:    "Your verification code is: {{.Code}}",
		})
	}
}

// WithDefaultTemplates registers all default notification templates
func WithDefaultTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		options := []NotificationManagerOption{
			WithPasswordResetTemplate(),
			WithPasswordChangedTemplate(),
			WithTwofaCodeEmailTemplate(),
			WithTwofaCodeSmsTemplate(),
		}

		for _, opt := range options {
			if err := opt(nm); err != nil {
				return err
			}
		}

		return nil
	}
}

// NewNotificationManagerWithOptions creates a new notification manager with the provided options
func NewNotificationManagerWithOptions(opts ...NotificationManagerOption) (*NotificationManager, error) {
	notificationManager := NewNotificationManager()

	for _, opt := range opts {
		if err := opt(notificationManager); err != nil {
			return nil, err
		}
	}

	return notificationManager, nil
}
