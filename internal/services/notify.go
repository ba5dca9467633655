package services

import (
	"gorm.io/gorm"

	"schoolbus_tracker/internal/models"
)

// Notifier is the fan-out collaborator. The services decide when a
// notification must be produced and with what payload; delivery beyond
// the stored row is out of scope.
type Notifier interface {
	CreateSystemNotification(companyID, senderID uint, senderRole, recipientRole string, recipientID, routeID *uint, title, message, ntype string) error
}

// DBNotifier persists notifications as rows.
type DBNotifier struct {
	db *gorm.DB
}

func NewDBNotifier(db *gorm.DB) *DBNotifier {
	return &DBNotifier{db: db}
}

func (n *DBNotifier) CreateSystemNotification(companyID, senderID uint, senderRole, recipientRole string, recipientID, routeID *uint, title, message, ntype string) error {
	notification := models.Notification{
		CompanyID:     companyID,
		SenderID:      senderID,
		SenderRole:    senderRole,
		RecipientRole: recipientRole,
		RecipientID:   recipientID,
		RouteID:       routeID,
		Title:         title,
		Message:       message,
		Type:          ntype,
	}
	return n.db.Create(&notification).Error
}
