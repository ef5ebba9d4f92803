package notification

// MockNotifier records notifications instead of delivering them.
type MockNotifier struct {
	SentNotifications []NotificationData
	SentTypes         []NoticeType
}

func (m *MockNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.SentNotifications = append(m.SentNotifications, notification)
	m.SentTypes = append(m.SentTypes, noticeType)
	return nil
}

// Last returns the most recently sent notification, if any.
func (m *MockNotifier) Last() (NotificationData, bool) {
	if len(m.SentNotifications) == 0 {
		return NotificationData{}, false
	}
	return m.SentNotifications[len(m.SentNotifications)-1], true
}
