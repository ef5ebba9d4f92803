package notification

import (
	"fmt"
)

// NotificationManager routes notices to registered notifiers using the
// templates registered for each notice type and system.
type NotificationManager struct {
	notifiers      map[NotificationSystem]Notifier
	noticeRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
}

// NewNotificationManager creates and returns a new NotificationManager.
func NewNotificationManager() *NotificationManager {
	return &NotificationManager{
		notifiers:      make(map[NotificationSystem]Notifier),
		noticeRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.notifiers[system] = notifier
}

// RegisterNotification adds or replaces the template for a notice type under a system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Subject == "" && template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid input: template cannot be empty")
	}

	if _, exists := nm.noticeRegistry[noticeType]; !exists {
		nm.noticeRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.noticeRegistry[noticeType][system] = template
	return nil
}

// Send sends a notice through the given system, resolving the registered
// template for the notice type.
func (nm *NotificationManager) Send(noticeType NoticeType, system NotificationSystem, notification NotificationData) error {
	systemTemplates, exists := nm.noticeRegistry[noticeType]
	if !exists {
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}

	template, exists := systemTemplates[system]
	if !exists {
		return fmt.Errorf("no template registered for system: %s under notice type: %s", system, noticeType)
	}

	notifier, exists := nm.notifiers[system]
	if !exists {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}

	return notifier.Send(noticeType, notification, template)
}
