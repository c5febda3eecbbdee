package model

import "time"

// Notification is stored under notifications/{receiverID}/{key}. The key
// is the related delivery ID so repeated creations for one delivery
// overwrite rather than pile up.
type Notification struct {
	Key              string    `json:"-"`
	DeliveryID       string    `json:"deliveryId"`
	From             string    `json:"from"`
	Message          string    `json:"message"`
	VerificationCode string    `json:"verificationCode,omitempty"`
	Destination      int       `json:"destination"`
	Timestamp        time.Time `json:"timestamp"`
	Read             bool      `json:"read"`
}

// Alert is what the dispatcher surfaces to the client exactly once per
// session for each unread notification.
type Alert struct {
	UserID       string        `json:"user_id"`
	Notification *Notification `json:"notification"`
	SurfacedAt   time.Time     `json:"surfaced_at"`
}
