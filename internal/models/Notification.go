package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification types used by the core.
const (
	NotificationStopArrival = "stop_arrival"
	NotificationDutyChange  = "duty_change"
	NotificationSystem      = "system"
)

// Notification is a delivered system message. The core decides when
// one is produced and what it contains; transport beyond this row is
// someone else's problem.
type Notification struct {
	gorm.Model
	CompanyID  uint   `json:"company_id" gorm:"index"`
	SenderID   uint   `json:"sender_id"`
	SenderRole string `json:"sender_role"`

	RecipientRole string `json:"recipient_role"`
	RecipientID   *uint  `json:"recipient_id" gorm:"index"`
	RouteID       *uint  `json:"route_id"`

	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`

	ReadAt *time.Time `json:"read_at"`
}
