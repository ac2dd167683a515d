package domain

// CampaignStatus enumerates lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignStatusPending    CampaignStatus = "pending"
	CampaignStatusInProgress CampaignStatus = "in_progress"
	CampaignStatusPaused     CampaignStatus = "paused"
	CampaignStatusCompleted  CampaignStatus = "completed"
	CampaignStatusFailed     CampaignStatus = "failed"
)

// ObjectStatus enumerates lifecycle stages of a single recipient.
// Values outside the constants below are preserved verbatim.
type ObjectStatus string

const (
	ObjectStatusNone       ObjectStatus = ""
	ObjectStatusQueued     ObjectStatus = "queued"
	ObjectStatusEnriching  ObjectStatus = "enriching"
	ObjectStatusGenerated  ObjectStatus = "generated"
	ObjectStatusScheduled  ObjectStatus = "scheduled"
	ObjectStatusSending    ObjectStatus = "sending"
	ObjectStatusSent       ObjectStatus = "sent"
	ObjectStatusFailed     ObjectStatus = "failed"
	ObjectStatusReplied    ObjectStatus = "replied"
	ObjectStatusBounced    ObjectStatus = "bounced"
	ObjectStatusPending    ObjectStatus = "pending"
	ObjectStatusGenerating ObjectStatus = "generating"
)

// Campaign is the authoritative snapshot returned by a status poll.
type Campaign struct {
	ID         string         `json:"campaign_id"`
	Name       *string        `json:"name"`
	Status     CampaignStatus `json:"status"`
	StartedAt  Timestamp      `json:"started_at"`
	FinishedAt Timestamp      `json:"finished_at"`
	CreatedAt  Timestamp      `json:"created_at"`

	// Both values are computed by the server at response time and decay locally between polls.
	NextSendInSeconds        *float64 `json:"next_send_in_seconds"`
	EstimatedSecondsToFinish *float64 `json:"estimated_seconds_to_finish"`

	Statistics CampaignStats    `json:"statistics"`
	Objects    []CampaignObject `json:"objects"`

	Country       *string `json:"country"`
	ObjectType    *string `json:"object_type"`
	Parsing       bool    `json:"parsing"`
	AutoAnswering bool    `json:"auto_answering"`
	UseCorporate  bool    `json:"use_corporate"`
	Tov           *string `json:"tov"`
	Style         *string `json:"style"`
	Language      string  `json:"language"`
	DailyLimit    *int    `json:"daily_limit"`
	Timezone      *string `json:"timezone"`

	SubjectPrompt *string `json:"subject_prompt"`
	BodyPrompt    *string `json:"body_prompt"`
	ParsingPrompt *string `json:"parsing_prompt"`
	ReplyPrompt   *string `json:"reply_prompt"`
}

// DisplayName returns the campaign name or "Untitled".
func (c *Campaign) DisplayName() string {
	if c == nil || c.Name == nil || *c.Name == "" {
		return "Untitled"
	}
	return *c.Name
}

// CampaignStats aggregates recipient counters.
type CampaignStats struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Replied int `json:"replied"`
	Bounced int `json:"bounced"`
}

// CampaignObject is one recipient target owned by a campaign.
type CampaignObject struct {
	PlaceID       string       `json:"place_id"`
	Name          *string      `json:"name"`
	Type          *string      `json:"type"`
	Email         *string      `json:"email"`
	EmailStatus   ObjectStatus `json:"email_status"`
	PlannedSendAt Timestamp    `json:"planned_send_at"`
	SentAt        Timestamp    `json:"sent_at"`
	FromEmail     *string      `json:"from_email"`
	Error         *string      `json:"error"`
}

// CampaignSummary is a row of the campaigns list.
type CampaignSummary struct {
	ID           string         `json:"campaign_id"`
	Name         *string        `json:"name"`
	Status       CampaignStatus `json:"status"`
	StartedAt    Timestamp      `json:"started_at"`
	FinishedAt   Timestamp      `json:"finished_at"`
	CreatedAt    Timestamp      `json:"created_at"`
	Country      *string        `json:"country"`
	ObjectType   *string        `json:"object_type"`
	Language     string         `json:"language"`
	TotalQueued  int            `json:"total_queued"`
	TotalSent    int            `json:"total_sent"`
	TotalFailed  int            `json:"total_failed"`
	TotalReplied int            `json:"total_replied"`
}

// SenderAccount is a mailbox the backend sends from.
type SenderAccount struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Password         *string   `json:"password,omitempty"`
	FirstName        *string   `json:"first_name"`
	LastName         *string   `json:"last_name"`
	IMAPHost         *string   `json:"imap_host"`
	IMAPPort         int       `json:"imap_port"`
	IMAPSSL          bool      `json:"imap_ssl"`
	SMTPHost         *string   `json:"smtp_host"`
	SMTPPort         *int      `json:"smtp_port"`
	SeleniumRequired bool      `json:"selenium_required"`
	ServerID         string    `json:"server_id"`
	MailAPIURLID     *string   `json:"mail_api_url_id"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        Timestamp `json:"created_at"`
	UpdatedAt        Timestamp `json:"updated_at"`
}
