package notification

import (
	"fmt"
)

// NotificationManager manages notifiers and notification templates.
type NotificationManager struct {
	notifiers            map[NotificationSystem]Notifier
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
}

// NewNotificationManager creates and returns a new NotificationManager.
func NewNotificationManager(opts ...NotificationManagerOption) (*NotificationManager, error) {
	nm := &NotificationManager{
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}

	for _, opt := range opts {
		if err := opt(nm); err != nil {
			return nil, err
		}
	}

	return nm, nil
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.notifiers[system] = notifier
}

// RegisterNotification adds a notification template to the registry.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notification type and system cannot be empty")
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid input: template must have a Text or Html body")
	}

	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}

	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send sends a notification using the specified system and type.
func (nm *NotificationManager) Send(noticeType NoticeType, system NotificationSystem, notification NotificationData) error {
	systemTemplates, exists := nm.notificationRegistry[noticeType]
	if !exists {
		return fmt.Errorf("no templates registered for notification type: %s", noticeType)
	}

	template, exists := systemTemplates[system]
	if !exists {
		return fmt.Errorf("no template registered for system: %s under notification type: %s", system, noticeType)
	}

	notifier, exists := nm.notifiers[system]
	if !exists {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}

	return notifier.Send(noticeType, notification, template)
}
