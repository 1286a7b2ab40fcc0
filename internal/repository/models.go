package repository

import (
	"strings"
	"time"

	"github.com/visitflow/visitflow/internal/domain"
)

// RequestModel is the persistence model for the requests table.
type RequestModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	ApprovalNumber *string `gorm:"type:varchar(40);uniqueIndex"`
	RequesterID    string  `gorm:"type:uuid;not null;index"`
	RequesterName  string  `gorm:"type:varchar(255);not null"`
	RequesterEmail string  `gorm:"type:varchar(255);not null"`
	Destination    string  `gorm:"type:varchar(255);not null"`
	Gate           string  `gorm:"type:varchar(20);not null"`
	FromDate       time.Time
	ToDate         time.Time
	Purpose        string `gorm:"type:text"`
	Status         string `gorm:"type:varchar(20);not null;index"`

	Stage1Comment   string `gorm:"type:text"`
	Stage1DecidedAt *time.Time
	Stage1DecidedBy string `gorm:"type:varchar(255)"`
	Stage2Comment   string `gorm:"type:text"`
	Stage2DecidedAt *time.Time
	Stage2DecidedBy string `gorm:"type:varchar(255)"`

	Guests    []GuestModel `gorm:"foreignKey:RequestID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RequestModel) TableName() string {
	return "requests"
}

// GuestModel is the persistence model for the guests table.
type GuestModel struct {
	ID                     string `gorm:"type:uuid;primaryKey"`
	RequestID              string `gorm:"type:uuid;not null;index"`
	Name                   string `gorm:"type:varchar(255);not null"`
	Organization           string `gorm:"type:varchar(255)"`
	Email                  string `gorm:"type:varchar(255)"`
	Phone                  string `gorm:"type:varchar(40)"`
	Laptop                 bool
	Mobile                 bool
	FlashDrive             bool
	OtherDevice            bool
	OtherDeviceDescription string `gorm:"type:text"`
	IDPhotoURL             string `gorm:"type:text"`
	CheckInAt              *time.Time
	CheckOutAt             *time.Time
	Stage1Decision         string `gorm:"type:varchar(12)"`
	Stage1Comment          string `gorm:"type:text"`
	Stage2Decision         string `gorm:"type:varchar(12)"`
	Stage2Comment          string `gorm:"type:text"`
}

func (GuestModel) TableName() string {
	return "guests"
}

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	UserID    string  `gorm:"type:uuid;not null;index"`
	Type      string  `gorm:"type:varchar(40);not null"`
	Message   string  `gorm:"type:text;not null"`
	RequestID *string `gorm:"type:uuid;index"`
	Read      bool    `gorm:"not null;default:false"`
	CreatedAt time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// DispatchModel is the persistence model for notification_dispatches.
type DispatchModel struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	NotificationID string  `gorm:"type:uuid;not null;index"`
	Channel        string  `gorm:"type:varchar(10);not null"`
	Recipient      string  `gorm:"type:varchar(255);not null"`
	Subject        *string `gorm:"type:varchar(255)"`
	Body           string  `gorm:"type:text;not null"`
	Status         string  `gorm:"type:varchar(10);not null;index"`
	Attempts       int     `gorm:"not null;default:0"`
	LastError      *string `gorm:"type:text"`
	Provider       *string `gorm:"type:varchar(30)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (DispatchModel) TableName() string {
	return "notification_dispatches"
}

// BlacklistModel is the persistence model for blacklist_entries.
type BlacklistModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Name         string `gorm:"type:varchar(255);not null;index"`
	Organization string `gorm:"type:varchar(255)"`
	Email        string `gorm:"type:varchar(255);index"`
	Phone        string `gorm:"type:varchar(40)"`
	Reason       string `gorm:"type:text"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
}

func (BlacklistModel) TableName() string {
	return "blacklist_entries"
}

// UserModel is the persistence model for the users table.
type UserModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Email         string `gorm:"type:varchar(255);not null;uniqueIndex"`
	Name          string `gorm:"type:varchar(255);not null"`
	Role          string `gorm:"type:varchar(20);not null;index"`
	AssignedGates string `gorm:"type:text"`
	Active        bool   `gorm:"not null;default:true"`
	CreatedAt     time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// SettingsModel is the single-row persistence model for settings (id = 1).
type SettingsModel struct {
	ID                      int `gorm:"primaryKey"`
	ApprovalSteps           int `gorm:"not null;default:2"`
	EmailNotifications      bool
	SMSNotifications        bool `gorm:"column:sms_notifications"`
	CheckInOutNotifications bool
	Gates                   string `gorm:"type:text"`

	SMTPHost        string `gorm:"column:smtp_host;type:varchar(255)"`
	SMTPPort        int    `gorm:"column:smtp_port"`
	SMTPUser        string `gorm:"column:smtp_user;type:varchar(255)"`
	SMTPPassword    string `gorm:"column:smtp_password;type:varchar(255)"`
	EmailGatewayURL string `gorm:"type:text"`
	EmailAPIKey     string `gorm:"column:email_api_key;type:varchar(255)"`
	SMSGatewayURL   string `gorm:"column:sms_gateway_url;type:text"`
	SMSAPIKey       string `gorm:"column:sms_api_key;type:varchar(255)"`

	UpdatedAt time.Time
}

func (SettingsModel) TableName() string {
	return "settings"
}

// Stored statuses use the underscore form; the hyphen form exists only in
// the domain layer. The conversion lives here and nowhere else.
func statusToModel(s domain.Status) string {
	return strings.ReplaceAll(string(s), "-", "_")
}

func statusFromModel(s string) domain.Status {
	return domain.Status(strings.ReplaceAll(s, "_", "-"))
}

func joinList(values []string) string {
	return strings.Join(values, ",")
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func requestModelFromDomain(r *domain.Request) *RequestModel {
	if r == nil {
		return nil
	}

	guests := make([]GuestModel, 0, len(r.Guests))
	for i := range r.Guests {
		guests = append(guests, *guestModelFromDomain(&r.Guests[i]))
	}

	return &RequestModel{
		ID:              r.ID,
		ApprovalNumber:  r.ApprovalNumber,
		RequesterID:     r.RequesterID,
		RequesterName:   r.RequesterName,
		RequesterEmail:  r.RequesterEmail,
		Destination:     r.Destination,
		Gate:            r.Gate,
		FromDate:        r.FromDate,
		ToDate:          r.ToDate,
		Purpose:         r.Purpose,
		Status:          statusToModel(r.Status),
		Stage1Comment:   r.Stage1.Comment,
		Stage1DecidedAt: r.Stage1.DecidedAt,
		Stage1DecidedBy: r.Stage1.DecidedBy,
		Stage2Comment:   r.Stage2.Comment,
		Stage2DecidedAt: r.Stage2.DecidedAt,
		Stage2DecidedBy: r.Stage2.DecidedBy,
		Guests:          guests,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func requestModelToDomain(m *RequestModel) *domain.Request {
	if m == nil {
		return nil
	}

	guests := make([]domain.Guest, 0, len(m.Guests))
	for i := range m.Guests {
		guests = append(guests, *guestModelToDomain(&m.Guests[i]))
	}

	return &domain.Request{
		ID:             m.ID,
		ApprovalNumber: m.ApprovalNumber,
		RequesterID:    m.RequesterID,
		RequesterName:  m.RequesterName,
		RequesterEmail: m.RequesterEmail,
		Destination:    m.Destination,
		Gate:           m.Gate,
		FromDate:       m.FromDate,
		ToDate:         m.ToDate,
		Purpose:        m.Purpose,
		Status:         statusFromModel(m.Status),
		Stage1: domain.StageDecisionMeta{
			Comment:   m.Stage1Comment,
			DecidedAt: m.Stage1DecidedAt,
			DecidedBy: m.Stage1DecidedBy,
		},
		Stage2: domain.StageDecisionMeta{
			Comment:   m.Stage2Comment,
			DecidedAt: m.Stage2DecidedAt,
			DecidedBy: m.Stage2DecidedBy,
		},
		Guests:    guests,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func guestModelFromDomain(g *domain.Guest) *GuestModel {
	if g == nil {
		return nil
	}

	return &GuestModel{
		ID:                     g.ID,
		RequestID:              g.RequestID,
		Name:                   g.Name,
		Organization:           g.Organization,
		Email:                  g.Email,
		Phone:                  g.Phone,
		Laptop:                 g.Laptop,
		Mobile:                 g.Mobile,
		FlashDrive:             g.FlashDrive,
		OtherDevice:            g.OtherDevice,
		OtherDeviceDescription: g.OtherDeviceDescription,
		IDPhotoURL:             g.IDPhotoURL,
		CheckInAt:              g.CheckInAt,
		CheckOutAt:             g.CheckOutAt,
		Stage1Decision:         string(g.Stage1Decision),
		Stage1Comment:          g.Stage1Comment,
		Stage2Decision:         string(g.Stage2Decision),
		Stage2Comment:          g.Stage2Comment,
	}
}

func guestModelToDomain(m *GuestModel) *domain.Guest {
	if m == nil {
		return nil
	}

	return &domain.Guest{
		ID:                     m.ID,
		RequestID:              m.RequestID,
		Name:                   m.Name,
		Organization:           m.Organization,
		Email:                  m.Email,
		Phone:                  m.Phone,
		Laptop:                 m.Laptop,
		Mobile:                 m.Mobile,
		FlashDrive:             m.FlashDrive,
		OtherDevice:            m.OtherDevice,
		OtherDeviceDescription: m.OtherDeviceDescription,
		IDPhotoURL:             m.IDPhotoURL,
		CheckInAt:              m.CheckInAt,
		CheckOutAt:             m.CheckOutAt,
		Stage1Decision:         domain.Decision(m.Stage1Decision),
		Stage1Comment:          m.Stage1Comment,
		Stage2Decision:         domain.Decision(m.Stage2Decision),
		Stage2Comment:          m.Stage2Comment,
	}
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	var requestID *string
	if n.RequestID != "" {
		id := n.RequestID
		requestID = &id
	}

	return &NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Message:   n.Message,
		RequestID: requestID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	requestID := ""
	if m.RequestID != nil {
		requestID = *m.RequestID
	}

	return &domain.Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		Type:      m.Type,
		Message:   m.Message,
		RequestID: requestID,
		Read:      m.Read,
		CreatedAt: m.CreatedAt,
	}
}

func dispatchModelFromDomain(d *domain.NotificationDispatch) *DispatchModel {
	if d == nil {
		return nil
	}

	return &DispatchModel{
		ID:             d.ID,
		NotificationID: d.NotificationID,
		Channel:        string(d.Channel),
		Recipient:      d.Recipient,
		Subject:        d.Subject,
		Body:           d.Body,
		Status:         string(d.Status),
		Attempts:       d.Attempts,
		LastError:      d.LastError,
		Provider:       d.Provider,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func dispatchModelToDomain(m *DispatchModel) *domain.NotificationDispatch {
	if m == nil {
		return nil
	}

	return &domain.NotificationDispatch{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		Channel:        domain.Channel(m.Channel),
		Recipient:      m.Recipient,
		Subject:        m.Subject,
		Body:           m.Body,
		Status:         domain.DispatchStatus(m.Status),
		Attempts:       m.Attempts,
		LastError:      m.LastError,
		Provider:       m.Provider,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func blacklistModelFromDomain(e *domain.BlacklistEntry) *BlacklistModel {
	if e == nil {
		return nil
	}

	return &BlacklistModel{
		ID:           e.ID,
		Name:         e.Name,
		Organization: e.Organization,
		Email:        e.Email,
		Phone:        e.Phone,
		Reason:       e.Reason,
		Active:       e.Active,
		CreatedAt:    e.CreatedAt,
	}
}

func blacklistModelToDomain(m *BlacklistModel) *domain.BlacklistEntry {
	if m == nil {
		return nil
	}

	return &domain.BlacklistEntry{
		ID:           m.ID,
		Name:         m.Name,
		Organization: m.Organization,
		Email:        m.Email,
		Phone:        m.Phone,
		Reason:       m.Reason,
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
	}
}

func userModelToDomain(m *UserModel) *domain.User {
	if m == nil {
		return nil
	}

	return &domain.User{
		ID:            m.ID,
		Email:         m.Email,
		Name:          m.Name,
		Role:          domain.Role(m.Role),
		AssignedGates: splitList(m.AssignedGates),
		Active:        m.Active,
		CreatedAt:     m.CreatedAt,
	}
}

func settingsModelToDomain(m *SettingsModel) domain.Settings {
	if m == nil {
		return domain.DefaultSettings()
	}

	return domain.Settings{
		ApprovalSteps:           m.ApprovalSteps,
		EmailNotifications:      m.EmailNotifications,
		SMSNotifications:        m.SMSNotifications,
		CheckInOutNotifications: m.CheckInOutNotifications,
		Gates:                   splitList(m.Gates),
		SMTPHost:                m.SMTPHost,
		SMTPPort:                m.SMTPPort,
		SMTPUser:                m.SMTPUser,
		SMTPPassword:            m.SMTPPassword,
		EmailGatewayURL:         m.EmailGatewayURL,
		EmailAPIKey:             m.EmailAPIKey,
		SMSGatewayURL:           m.SMSGatewayURL,
		SMSAPIKey:               m.SMSAPIKey,
	}
}

func settingsModelFromDomain(s domain.Settings) *SettingsModel {
	return &SettingsModel{
		ID:                      1,
		ApprovalSteps:           s.ApprovalSteps,
		EmailNotifications:      s.EmailNotifications,
		SMSNotifications:        s.SMSNotifications,
		CheckInOutNotifications: s.CheckInOutNotifications,
		Gates:                   joinList(s.Gates),
		SMTPHost:                s.SMTPHost,
		SMTPPort:                s.SMTPPort,
		SMTPUser:                s.SMTPUser,
		SMTPPassword:            s.SMTPPassword,
		EmailGatewayURL:         s.EmailGatewayURL,
		EmailAPIKey:             s.EmailAPIKey,
		SMSGatewayURL:           s.SMSGatewayURL,
		SMSAPIKey:               s.SMSAPIKey,
	}
}
