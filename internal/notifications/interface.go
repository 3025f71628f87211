package notifications

// Notifier defines the interface for notification delivery. Delivery
// itself (chat, email, webhook) lives outside the core.
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(level, message string) error
}

// NopNotifier discards all alerts.
type NopNotifier struct{}

func (NopNotifier) SendAlert(level, message string) error { return nil }
