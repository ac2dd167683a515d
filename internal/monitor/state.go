package monitor

import (
	"time"

	"github.com/acme/outreach-monitor/internal/countdown"
	"github.com/acme/outreach-monitor/internal/domain"
	"github.com/acme/outreach-monitor/internal/projector"
)

// CountdownState is the rendered form of one local timer.
type CountdownState struct {
	Visible     bool   `json:"visible"`
	RemainingMs int64  `json:"remaining_ms"`
	Display     string `json:"display"`
}

// ObjectRow is one recipient of the objects table.
type ObjectRow struct {
	PlaceID       string           `json:"place_id"`
	Name          string           `json:"name"`
	Type          string           `json:"type"`
	Email         string           `json:"email"`
	Status        projector.Badge  `json:"status"`
	Active        bool             `json:"active"`
	PlannedSendAt domain.Timestamp `json:"planned_send_at"`
	SentAt        domain.Timestamp `json:"sent_at"`
	FromEmail     string           `json:"from_email"`
	Error         string           `json:"error,omitempty"`
}

// ViewState is an immutable copy of everything a screen renders.
type ViewState struct {
	ViewID     string                `json:"view_id"`
	CampaignID string                `json:"campaign_id"`
	Mounted    bool                  `json:"mounted"`
	Loaded     bool                  `json:"loaded"`
	Name       string                `json:"name"`
	Status     domain.CampaignStatus `json:"status"`
	Badge      projector.Badge       `json:"badge"`
	StartedAt  domain.Timestamp      `json:"started_at"`
	FinishedAt domain.Timestamp      `json:"finished_at"`
	Statistics domain.CampaignStats  `json:"statistics"`
	Progress   float64               `json:"progress"`
	Objects    []ObjectRow           `json:"objects"`

	NextSend     CountdownState `json:"next_send"`
	TimeToFinish CountdownState `json:"time_to_finish"`

	AutoRefresh     bool    `json:"auto_refresh"`
	CommandInFlight bool    `json:"command_in_flight"`
	PendingCommand  Command `json:"pending_command,omitempty"`
	CanPause        bool    `json:"can_pause"`
	CanResume       bool    `json:"can_resume"`

	// PollNotice is set while the latest background refresh failed; the snapshot is the last good one.
	PollNotice   string    `json:"poll_notice,omitempty"`
	CommandError string    `json:"command_error,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

// State returns the current view model.
func (v *View) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()

	inFlight := v.mutating.Load()
	st := ViewState{
		ViewID:          v.id,
		CampaignID:      v.campaignID,
		Mounted:         v.mounted,
		Loaded:          v.loaded,
		AutoRefresh:     v.autoRefresh,
		CommandInFlight: inFlight,
		PendingCommand:  v.pending,
		PollNotice:      v.pollErr,
		CommandError:    v.cmdErr,
		LastUpdated:     v.lastUpdated,
		Objects:         []ObjectRow{},
	}
	st.NextSend = countdownState(v.nextSend.Snapshot())
	st.TimeToFinish = countdownState(v.finish.Snapshot())

	c := v.snapshot
	if c == nil {
		return st
	}
	st.Name = c.DisplayName()
	st.Status = c.Status
	st.Badge = projector.CampaignBadge(c.Status)
	st.StartedAt = c.StartedAt
	st.FinishedAt = c.FinishedAt
	st.Statistics = c.Statistics
	st.Progress = projector.Progress(c.Statistics)
	st.CanPause = !inFlight && commandOffered(CommandPause, c.Status)
	st.CanResume = !inFlight && commandOffered(CommandResume, c.Status)

	sorted := projector.SortObjects(c.Objects)
	st.Objects = make([]ObjectRow, 0, len(sorted))
	for _, o := range sorted {
		st.Objects = append(st.Objects, ObjectRow{
			PlaceID:       o.PlaceID,
			Name:          deref(o.Name),
			Type:          deref(o.Type),
			Email:         deref(o.Email),
			Status:        projector.ObjectBadge(o.EmailStatus),
			Active:        projector.IsActiveObject(o.EmailStatus),
			PlannedSendAt: o.PlannedSendAt,
			SentAt:        o.SentAt,
			FromEmail:     deref(o.FromEmail),
			Error:         deref(o.Error),
		})
	}
	return st
}

func countdownState(ms int64, visible bool) CountdownState {
	if !visible {
		return CountdownState{}
	}
	return CountdownState{Visible: true, RemainingMs: ms, Display: countdown.Format(ms)}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
