package queue

import (
	"fmt"
	"strings"
)

// ProcessingMessage is the broker payload asking a worker to process the
// queued dispatches of one notification.
type ProcessingMessage struct {
	NotificationID string `json:"notificationId"`
}

func (m ProcessingMessage) Validate() error {
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	return nil
}
