package model

import (
	"time"

	"github.com/lalabot/delivery-api/pkg/errors"
)

type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusInProgress DeliveryStatus = "in_progress"
	DeliveryStatusArrived    DeliveryStatus = "arrived"
	DeliveryStatusCompleted  DeliveryStatus = "completed"
	DeliveryStatusCancelled  DeliveryStatus = "cancelled"
)

// Progress stages reported by the robot while a delivery is active.
const (
	StageProcessing  = 0
	StageInTransit   = 1
	StageApproaching = 2
	StageArrived     = 3
)

// Delivery is the active delivery record. Status and ProgressStage only
// move through the transition methods below; handlers and services never
// assign them directly.
type Delivery struct {
	ID                  string         `json:"id"`
	SenderID            string         `json:"senderUid"`
	SenderName          string         `json:"sender"`
	ReceiverID          string         `json:"receiverUid"`
	ReceiverName        string         `json:"receiver"`
	PickupLocation      int            `json:"pickup"`
	DestinationLocation int            `json:"destination"`
	Compartment         int            `json:"compartment"`
	Category            string         `json:"category"`
	Message             string         `json:"message,omitempty"`
	VerificationCode    string         `json:"verificationCode"`
	Status              DeliveryStatus `json:"status"`
	ProgressStage       int            `json:"progressStage"`
	CurrentLocation     int            `json:"currentLocation"`
	FilesConfirmed      bool           `json:"filesConfirmed"`
	ReadyForPickup      bool           `json:"readyForPickup"`
	FilesReceived       bool           `json:"filesReceived"`
	CreatedAt           time.Time      `json:"createdAt"`
	ArrivedAt           *time.Time     `json:"arrivedAt,omitempty"`
	CompletedAt         *time.Time     `json:"completedAt,omitempty"`
}

// Active reports whether the delivery still occupies a compartment.
func (d *Delivery) Active() bool {
	switch d.Status {
	case DeliveryStatusPending, DeliveryStatusInProgress, DeliveryStatusArrived:
		return true
	}
	return false
}

// ConfirmFiles marks the sender's files as placed and moves the delivery
// into transit. Valid only while pending at stage 0.
func (d *Delivery) ConfirmFiles() error {
	if d.Status != DeliveryStatusPending || d.ProgressStage != StageProcessing {
		return errors.InvalidTransition("files can only be confirmed while pending at stage 0")
	}
	d.FilesConfirmed = true
	d.ProgressStage = StageInTransit
	d.Status = DeliveryStatusInProgress
	return nil
}

// AdvanceStage applies a robot progress signal. The stage is monotonically
// non-decreasing; reaching StageArrived flips readyForPickup and stamps
// arrivedAt once.
func (d *Delivery) AdvanceStage(stage int, now time.Time) error {
	if !d.Active() {
		return errors.InvalidTransition("delivery is no longer active")
	}
	if stage < StageProcessing || stage > StageArrived {
		return errors.Validation("progress stage must be between 0 and 3")
	}
	if stage < d.ProgressStage {
		return errors.InvalidTransition("progress stage cannot decrease")
	}
	d.ProgressStage = stage
	if stage >= StageInTransit && d.Status == DeliveryStatusPending {
		d.Status = DeliveryStatusInProgress
	}
	if stage == StageArrived {
		d.Status = DeliveryStatusArrived
		d.ReadyForPickup = true
		if d.ArrivedAt == nil {
			t := now
			d.ArrivedAt = &t
		}
	}
	return nil
}

// Verify checks the supplied pickup code. A mismatch never mutates the
// delivery.
func (d *Delivery) Verify(code string) error {
	if code != d.VerificationCode {
		return errors.CodeMismatch()
	}
	d.FilesReceived = true
	return nil
}

// Complete marks the delivery received. Valid only after verification.
func (d *Delivery) Complete(now time.Time) error {
	if !d.FilesReceived {
		return errors.InvalidTransition("receipt requires a verified pickup code")
	}
	d.Status = DeliveryStatusCompleted
	if d.CompletedAt == nil {
		t := now
		d.CompletedAt = &t
	}
	return nil
}

// Cancel is sender-initiated and allowed only before the robot picks the
// delivery up.
func (d *Delivery) Cancel(now time.Time) error {
	if d.Status != DeliveryStatusPending || d.ProgressStage != StageProcessing {
		return errors.InvalidTransition("only pending deliveries at stage 0 can be cancelled")
	}
	d.Status = DeliveryStatusCancelled
	if d.CompletedAt == nil {
		t := now
		d.CompletedAt = &t
	}
	return nil
}

type CreateDeliveryRequest struct {
	ReceiverID       string `json:"receiver_id" binding:"required"`
	PickupIndex      int    `json:"pickup_index" binding:"min=0"`
	DestinationIndex int    `json:"destination_index" binding:"min=0"`
	Category         string `json:"category" binding:"required"`
	Message          string `json:"message"`
}

type AdvanceProgressRequest struct {
	Stage           int  `json:"stage" binding:"min=0,max=3"`
	CurrentLocation *int `json:"current_location"`
}

type VerifyReceiptRequest struct {
	Code string `json:"code" binding:"required,len=4,numeric"`
}

// DeliveryFeed is the home-screen split of active deliveries for one user.
type DeliveryFeed struct {
	Outgoing []*Delivery `json:"outgoing"`
	Incoming []*Delivery `json:"incoming"`
}
