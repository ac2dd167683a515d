package projector

import (
	"sort"

	"github.com/acme/outreach-monitor/internal/domain"
)

// Category is the style bucket a badge renders with.
type Category string

const (
	CategoryNeutral  Category = "neutral"
	CategoryProgress Category = "progress"
	CategoryWaiting  Category = "waiting"
	CategorySuccess  Category = "success"
	CategoryWarning  Category = "warning"
	CategoryDanger   Category = "danger"
	CategoryInfo     Category = "info"
)

// Badge is the display form of a status value.
type Badge struct {
	Value    string   `json:"value"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	// Known is false for values this build has no mapping for; Label is then the raw value.
	Known bool `json:"known"`
}

type badgeDef struct {
	label    string
	category Category
	active   bool
}

var objectBadges = map[domain.ObjectStatus]badgeDef{
	domain.ObjectStatusQueued:     {"Queued", CategoryWaiting, true},
	domain.ObjectStatusPending:    {"Pending", CategoryWaiting, true},
	domain.ObjectStatusEnriching:  {"Enriching", CategoryProgress, true},
	domain.ObjectStatusGenerating: {"Generating", CategoryProgress, true},
	domain.ObjectStatusGenerated:  {"Generated", CategoryInfo, true},
	domain.ObjectStatusScheduled:  {"Scheduled", CategoryInfo, true},
	domain.ObjectStatusSending:    {"Sending", CategoryProgress, true},
	domain.ObjectStatusSent:       {"Sent", CategorySuccess, false},
	domain.ObjectStatusFailed:     {"Failed", CategoryDanger, false},
	domain.ObjectStatusReplied:    {"Replied", CategorySuccess, false},
	domain.ObjectStatusBounced:    {"Bounced", CategoryWarning, false},
}

var campaignBadges = map[domain.CampaignStatus]badgeDef{
	domain.CampaignStatusPending:    {"Pending", CategoryWaiting, true},
	domain.CampaignStatusInProgress: {"In Progress", CategoryProgress, true},
	domain.CampaignStatusPaused:     {"Paused", CategoryWarning, false},
	domain.CampaignStatusCompleted:  {"Completed", CategorySuccess, false},
	domain.CampaignStatusFailed:     {"Failed", CategoryDanger, false},
}

// ObjectBadge maps a recipient status to its badge. Unknown values render as-is.
func ObjectBadge(status domain.ObjectStatus) Badge {
	if status == domain.ObjectStatusNone {
		return Badge{Value: "", Label: "N/A", Category: CategoryNeutral, Known: true}
	}
	def, ok := objectBadges[status]
	if !ok {
		return Badge{Value: string(status), Label: string(status), Category: CategoryNeutral}
	}
	return Badge{Value: string(status), Label: def.label, Category: def.category, Known: true}
}

// CampaignBadge maps a campaign status to its badge. Unknown values render as-is.
func CampaignBadge(status domain.CampaignStatus) Badge {
	def, ok := campaignBadges[status]
	if !ok {
		return Badge{Value: string(status), Label: string(status), Category: CategoryNeutral}
	}
	return Badge{Value: string(status), Label: def.label, Category: def.category, Known: true}
}

// IsActiveObject reports whether a recipient is still moving through the pipeline.
func IsActiveObject(status domain.ObjectStatus) bool {
	return objectBadges[status].active
}

// IsTerminalObject reports whether a recipient reached a known final state.
// Unknown and empty values are neither active nor terminal.
func IsTerminalObject(status domain.ObjectStatus) bool {
	def, ok := objectBadges[status]
	return ok && !def.active
}

// IsActiveCampaign reports whether the campaign is pending or sending.
func IsActiveCampaign(status domain.CampaignStatus) bool {
	return campaignBadges[status].active
}

// SortObjects returns a copy ordered by planned send time, latest first. Objects without a
// planned time keep their source order after every planned one.
func SortObjects(objects []domain.CampaignObject) []domain.CampaignObject {
	out := make([]domain.CampaignObject, len(objects))
	copy(out, objects)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PlannedSendAt, out[j].PlannedSendAt
		switch {
		case a.Valid && b.Valid:
			return a.Time.After(b.Time)
		case a.Valid:
			return true
		default:
			return false
		}
	})
	return out
}

// Progress returns sent/total in [0, 1].
func Progress(stats domain.CampaignStats) float64 {
	if stats.Total <= 0 {
		return 0
	}
	p := float64(stats.Sent) / float64(stats.Total)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}
