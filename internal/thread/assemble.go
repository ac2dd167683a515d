// Package thread builds the per-recipient conversation and sends manual replies.
package thread

import (
	"strings"

	"github.com/acme/outreach-monitor/internal/domain"
	"github.com/acme/outreach-monitor/internal/projector"
)

// State tells which data source a conversation was built from.
type State string

const (
	StateThread   State = "thread"
	StateFallback State = "fallback"
	StateEmpty    State = "empty"
)

// Role tags an entry.
type Role string

const (
	RoleSent     Role = "sent"
	RoleReceived Role = "received"
	RolePending  Role = "pending"
)

const (
	BadgeGenerated = "Generated (Not Sent)"
	BadgeScheduled = "Auto-Reply Scheduled"

	LabelSent     = "Sent at"
	LabelReceived = "Received at"
	LabelWillSend = "Will send at"

	EmptyMessage = "No email sent yet or failed to send."
)

// Entry is one rendered message.
type Entry struct {
	ID             string           `json:"id"`
	ShortID        string           `json:"short_id"`
	Role           Role             `json:"role"`
	From           string           `json:"from"`
	To             string           `json:"to"`
	Subject        string           `json:"subject"`
	Body           string           `json:"body"`
	Timestamp      domain.Timestamp `json:"timestamp"`
	TimestampLabel string           `json:"timestamp_label"`
	Badge          string           `json:"badge,omitempty"`
	Generated      bool             `json:"generated"`
	Error          string           `json:"error,omitempty"`
}

// Recipient is the header of a conversation screen.
type Recipient struct {
	ObjectID string          `json:"object_id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Status   projector.Badge `json:"status"`
}

// Conversation is the ordered, role-tagged view of one recipient's mail.
type Conversation struct {
	State        State     `json:"state"`
	CampaignID   string    `json:"campaign_id"`
	CampaignName string    `json:"campaign_name"`
	ThreadID     string    `json:"thread_id,omitempty"`
	Recipient    Recipient `json:"recipient"`
	Entries      []Entry   `json:"entries"`
	EmptyMessage string    `json:"empty_message,omitempty"`
	// ThreadNotice is set when the thread could not be loaded and a fallback is shown.
	ThreadNotice string `json:"thread_notice,omitempty"`
}

// Assemble merges the detail record and the optional thread into one conversation.
// Confirmed messages keep server order; pending replies always follow them. A thread without
// confirmed messages counts as no thread, and its pending replies are not shown: the sent
// record fallback or the empty state is rendered instead.
func Assemble(details *domain.ObjectDetails, thread *domain.EmailThread) Conversation {
	conv := Conversation{Entries: []Entry{}}
	if details == nil {
		conv.State = StateEmpty
		conv.EmptyMessage = EmptyMessage
		return conv
	}

	conv.CampaignID = details.Campaign.ID
	conv.CampaignName = details.Campaign.Name
	conv.ThreadID = details.ThreadID()
	conv.Recipient = Recipient{
		ObjectID: details.Target.ID,
		Name:     orDefault(details.Target.Name, "Unknown Object"),
		Email:    details.Target.ToEmail,
		Status:   projector.ObjectBadge(details.Target.Status),
	}

	sent := details.SentEmail
	targetSent := details.Target.Status == domain.ObjectStatusSent

	switch {
	case thread != nil && len(thread.Messages) > 0:
		conv.State = StateThread
		if thread.ThreadID != "" {
			conv.ThreadID = thread.ThreadID
		}
		for _, msg := range thread.Messages {
			conv.Entries = append(conv.Entries, messageEntry(msg, sent, targetSent))
		}
		for _, p := range thread.PendingReplies {
			conv.Entries = append(conv.Entries, Entry{
				ID:             p.ID,
				ShortID:        shortID(p.ID),
				Role:           RolePending,
				From:           p.From,
				To:             p.To,
				Subject:        p.Subject,
				Body:           p.Body,
				Timestamp:      p.ScheduledAt,
				TimestampLabel: LabelWillSend,
				Badge:          BadgeScheduled,
			})
		}

	case sent != nil:
		conv.State = StateFallback
		entry := Entry{
			ID:             sent.ID,
			ShortID:        shortID(sent.ID),
			Role:           RoleSent,
			From:           sent.From,
			To:             sent.To,
			Subject:        orDefault(sent.Subject, ""),
			Body:           orDefault(sent.Body, ""),
			Timestamp:      sent.SentAt,
			TimestampLabel: LabelSent,
			Error:          orDefault(sent.Error, ""),
		}
		if isGenerated(sent.ID) && !targetSent {
			entry.Generated = true
			entry.Badge = BadgeGenerated
		}
		conv.Entries = append(conv.Entries, entry)

	default:
		conv.State = StateEmpty
		conv.EmptyMessage = EmptyMessage
	}
	return conv
}

func messageEntry(msg domain.ThreadMessage, sent *domain.SentEmail, targetSent bool) Entry {
	entry := Entry{
		ID:        msg.ID,
		ShortID:   shortID(msg.ID),
		From:      msg.From,
		To:        msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Timestamp: msg.CreatedAt,
	}
	if msg.Direction != domain.DirectionSent {
		entry.Role = RoleReceived
		entry.TimestampLabel = LabelReceived
		return entry
	}

	entry.Role = RoleSent
	entry.TimestampLabel = LabelSent
	generated := isGenerated(msg.ID)
	if sent != nil {
		generated = generated || isGenerated(sent.ID)
		entry.Error = orDefault(sent.Error, "")
	}
	if generated && !targetSent {
		entry.Generated = true
		entry.Badge = BadgeGenerated
	}
	return entry
}

func isGenerated(id string) bool {
	return strings.HasPrefix(id, domain.GeneratedIDPrefix)
}

// shortID is the trailing eight characters used as a display reference.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
