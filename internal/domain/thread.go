package domain

// MessageDirection marks a confirmed message as outbound or inbound.
type MessageDirection string

const (
	DirectionSent     MessageDirection = "sent"
	DirectionReceived MessageDirection = "received"
)

// GeneratedIDPrefix marks records synthesized by content generation rather than dispatched.
const GeneratedIDPrefix = "generated_"

// EmailThread is the conversation tied to one recipient.
type EmailThread struct {
	ThreadID       string          `json:"thread_id"`
	CampaignID     string          `json:"campaign_id"`
	Participants   []string        `json:"participants"`
	Messages       []ThreadMessage `json:"messages"`
	PendingReplies []PendingReply  `json:"pending_replies"`
}

// ThreadMessage is a confirmed message, in server order.
type ThreadMessage struct {
	ID        string           `json:"id"`
	Direction MessageDirection `json:"type"`
	From      string           `json:"from_email"`
	To        string           `json:"to_email"`
	Subject   string           `json:"subject"`
	Body      string           `json:"body"`
	CreatedAt Timestamp        `json:"created_at"`
	InReplyTo *string          `json:"in_reply_to"`
	MessageID *string          `json:"message_id"`
}

// PendingReply is an auto-reply queued for future dispatch. It is never a confirmed message.
type PendingReply struct {
	ID          string    `json:"id"`
	From        string    `json:"from_email"`
	To          string    `json:"to_email"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	ScheduledAt Timestamp `json:"scheduled_at"`
	CreatedAt   Timestamp `json:"created_at"`
}

// ObjectDetails is the per-recipient detail record used to build a conversation.
type ObjectDetails struct {
	Campaign  ObjectCampaign `json:"campaign"`
	Target    Target         `json:"target"`
	SentEmail *SentEmail     `json:"sent_email"`
	B2BObject *B2BObject     `json:"b2b_object"`
}

// ThreadID returns the thread to load, preferring the sent record over the target.
func (d *ObjectDetails) ThreadID() string {
	if d == nil {
		return ""
	}
	if d.SentEmail != nil && d.SentEmail.ThreadID != nil && *d.SentEmail.ThreadID != "" {
		return *d.SentEmail.ThreadID
	}
	if d.Target.ThreadID != nil {
		return *d.Target.ThreadID
	}
	return ""
}

type ObjectCampaign struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	Country       *string   `json:"country"`
	ObjectType    *string   `json:"object_type"`
	Parsing       bool      `json:"parsing"`
	AutoAnswering bool      `json:"auto_answering"`
	UseCorporate  bool      `json:"use_corporate"`
	Tov           *string   `json:"tov"`
	Style         *string   `json:"style"`
	Language      string    `json:"language"`
	CreatedAt     Timestamp `json:"created_at"`
}

type Target struct {
	ID              string       `json:"id"`
	PlaceID         *string      `json:"place_id"`
	Name            *string      `json:"name"`
	Type            *string      `json:"type"`
	ToEmail         string       `json:"to_email"`
	Status          ObjectStatus `json:"status"`
	Attempts        int          `json:"attempts"`
	LastError       *string      `json:"last_error"`
	GenerationError *string      `json:"generation_error"`
	PlannedSendAt   Timestamp    `json:"planned_send_at"`
	SentAt          Timestamp    `json:"sent_at"`
	EmailSubject    *string      `json:"email_subject"`
	EmailBody       *string      `json:"email_body"`
	EmailLanguage   *string      `json:"email_language"`
	ThreadID        *string      `json:"thread_id"`
}

// SentEmail is the primary outbound record for a recipient.
type SentEmail struct {
	ID         string    `json:"id"`
	From       string    `json:"from_email"`
	To         string    `json:"to_email"`
	Subject    *string   `json:"subject"`
	Body       *string   `json:"body"`
	Status     *string   `json:"status"`
	MessageID  *string   `json:"message_id"`
	Error      *string   `json:"error"`
	SenderName *string   `json:"sender_name"`
	ServerID   *string   `json:"server_id"`
	Provider   *string   `json:"provider"`
	SentAt     Timestamp `json:"sent_at"`
	ThreadID   *string   `json:"thread_id"`
	CreatedAt  Timestamp `json:"created_at"`
}

type B2BObject struct {
	PlaceID     string  `json:"place_id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Website     *string `json:"website"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Country     *string `json:"country"`
	Description *string `json:"description"`
}
