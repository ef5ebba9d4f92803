// Package notification delivers notices over email and SMS.
//
// A NotificationManager holds one Notifier per delivery system and a
// registry of NoticeTemplates keyed by notice type and system. Callers
// send a notice by type; the manager resolves the template and routes
// the send to the right notifier. MockNotifier stands in for real
// delivery in tests.
package notification
