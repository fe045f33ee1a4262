package enums

// NotificationType is notification_type. Earning and cashback come from the
// view ledger; moderation from admin suspend/restore.
type NotificationType string

const (
	NotificationTypeEarning    NotificationType = "earning"
	NotificationTypeCashback   NotificationType = "cashback"
	NotificationTypeModeration NotificationType = "moderation"
)

var notificationTypes = []NotificationType{
	NotificationTypeEarning,
	NotificationTypeCashback,
	NotificationTypeModeration,
}

func (n NotificationType) IsValid() bool { return member(n, notificationTypes) }

func ParseNotificationType(raw string) (NotificationType, error) {
	return parse("notification type", raw, notificationTypes)
}
