package models

import (
	"time"
)

// Channel identifies the chat network a contact is reached on.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTelegram Channel = "telegram"
)

// Lead is one prospective contact moving through the funnel.
// Per meeting type it carries a status/date pair; the date is set if and
// only if the status is not unset.
type Lead struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"column:lead_name;type:varchar(255)" json:"lead_name"`
	Channel     Channel `gorm:"type:varchar(20);not null;uniqueIndex:idx_leads_contact" json:"channel"`
	ContactRef  string  `gorm:"type:varchar(64);not null;uniqueIndex:idx_leads_contact" json:"contact_ref"`
	TgUsername  string  `gorm:"type:varchar(255)" json:"tg_username,omitempty"`
	FunnelStage string  `gorm:"type:varchar(40);not null;default:'new'" json:"funnel_stage"`

	BomStatus MeetingStatus `gorm:"column:bom_text;type:varchar(20);not null;default:''" json:"bom_text"`
	BomDate   *time.Time    `gorm:"column:bom_date" json:"bom_date"`
	BitStatus MeetingStatus `gorm:"column:bit_text;type:varchar(20);not null;default:''" json:"bit_text"`
	BitDate   *time.Time    `gorm:"column:bit_date" json:"bit_date"`
	WgStatus  MeetingStatus `gorm:"column:wg_text;type:varchar(20);not null;default:''" json:"wg_text"`
	WgDate    *time.Time    `gorm:"column:wg_date" json:"wg_date"`
	PtStatus  MeetingStatus `gorm:"column:pt_text;type:varchar(20);not null;default:''" json:"pt_text"`
	PtDate    *time.Time    `gorm:"column:pt_date" json:"pt_date"`

	OptedOut       bool `gorm:"column:opted_out;not null;default:false" json:"opted_out"`
	NeedsAttention bool `gorm:"column:needs_attention;not null;default:false" json:"needs_attention"`

	FuBomSent       bool `gorm:"column:fu_bom_sent;not null;default:false" json:"fu_bom_sent"`
	FuBomConfirmed  bool `gorm:"column:fu_bom_confirmed;not null;default:false" json:"fu_bom_confirmed"`
	Fu2BomSent      bool `gorm:"column:fu2_bom_sent;not null;default:false" json:"fu2_bom_sent"`
	Fu2BomConfirmed bool `gorm:"column:fu2_bom_confirmed;not null;default:false" json:"fu2_bom_confirmed"`
	PreBomSent      bool `gorm:"column:yes_bom_sent;not null;default:false" json:"yes_bom_sent"`
	PreBomAcked     bool `gorm:"column:yes_bom_pressed;not null;default:false" json:"yes_bom_pressed"`
	LinkBomSent     bool `gorm:"column:link_bom_sent;not null;default:false" json:"link_bom_sent"`
	FuBitSent       bool `gorm:"column:fu_bit_sent;not null;default:false" json:"fu_bit_sent"`
	Fu2BitSent      bool `gorm:"column:fu2_bit_sent;not null;default:false" json:"fu2_bit_sent"`
	LinkBitSent     bool `gorm:"column:link_bit_sent;not null;default:false" json:"link_bit_sent"`
	LinkWgSent      bool `gorm:"column:link_wg_sent;not null;default:false" json:"link_wg_sent"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// Meeting returns the status/date pair of the given meeting type.
func (l *Lead) Meeting(t MeetingType) (MeetingStatus, *time.Time) {
	switch t {
	case MeetingBOM:
		return l.BomStatus, l.BomDate
	case MeetingBIT:
		return l.BitStatus, l.BitDate
	case MeetingWG:
		return l.WgStatus, l.WgDate
	case MeetingPT:
		return l.PtStatus, l.PtDate
	}
	return StatusUnset, nil
}

// Direction of a ledger message relative to the business.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// MessageType tags the shape of a ledger message.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeButton   MessageType = "button"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeAudio    MessageType = "audio"
	TypeDocument MessageType = "document"
	TypeSticker  MessageType = "sticker"
	TypeReaction MessageType = "reaction"
)

// Message is one immutable ledger row: an inbound or outbound chat event.
type Message struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Channel      Channel     `gorm:"type:varchar(20);not null;index:idx_messages_contact" json:"channel"`
	ContactRef   string      `gorm:"type:varchar(64);not null;index:idx_messages_contact" json:"contact_ref"`
	Direction    Direction   `gorm:"type:varchar(10);not null" json:"direction"`
	ProviderID   string      `gorm:"type:varchar(255);index" json:"provider_id"`
	ContextID    *string     `gorm:"type:varchar(255);index" json:"context_id"`
	TemplateName *string     `gorm:"type:varchar(255)" json:"template_name"`
	Text         string      `gorm:"column:message_text;type:text" json:"message_text"`
	MediaID      *string     `gorm:"type:varchar(255)" json:"media_id"`
	Type         MessageType `gorm:"type:varchar(20)" json:"type"`
	CreatedAt    time.Time   `gorm:"column:timestamp;autoCreateTime" json:"timestamp"`
}

func (Message) TableName() string {
	return "messages"
}

// Template is a named, versioned copy of an outbound message. Body holds
// {{param}} placeholders; Buttons is a JSON array of quick-reply labels used
// to render the bot channel's inline keyboard.
type Template struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Language string `gorm:"type:varchar(20)" json:"language"`
	Category string `gorm:"type:varchar(100)" json:"category"`
	Status   string `gorm:"type:varchar(50)" json:"status"`
	Body     string `gorm:"type:text" json:"body"`
	Buttons  string `gorm:"type:text" json:"buttons"`
	MetaID   string `gorm:"type:varchar(255)" json:"meta_id"`
}

func (Template) TableName() string {
	return "templates"
}

// Link is an operator-published meeting URL for one business-local day.
type Link struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	LinkDate  string      `gorm:"type:varchar(10);not null;index:idx_links_day" json:"link_date"` // YYYY-MM-DD, business-local
	Type      MeetingType `gorm:"column:link_type;type:varchar(10);not null;index:idx_links_day" json:"link_type"`
	URL       string      `gorm:"column:link;type:varchar(500);not null" json:"link"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

func (Link) TableName() string {
	return "links"
}

// SystemSetting stores operator-managed credentials that override the
// environment at startup.
type SystemSetting struct {
	Key   string `gorm:"primaryKey;type:varchar(100)" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}
