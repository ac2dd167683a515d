// Package tui renders one mounted campaign view in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/acme/outreach-monitor/internal/domain"
	"github.com/acme/outreach-monitor/internal/monitor"
)

const (
	renderEvery = time.Second
	maxRows     = 15
)

// Controller is the slice of monitor.View the dashboard drives.
type Controller interface {
	State() monitor.ViewState
	Refresh(ctx context.Context) error
	SetAutoRefresh(enabled bool) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Unmount()
}

type tickMsg time.Time

// stateMsg re-reads the view without rescheduling the render tick.
type stateMsg struct{}

// commandDoneMsg reports the end of a background call.
type commandDoneMsg struct {
	action string
	err    error
}

// SessionExpiredMsg tells the dashboard the backend rejected its credentials.
type SessionExpiredMsg struct{}

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctl      Controller
	ctx      context.Context
	progress progress.Model
	styles   Styles
	width    int

	state  monitor.ViewState
	notice string
	busy   string
	quit   bool
}

// New builds a dashboard for a mounted view. ctx bounds every call made on the view.
func New(ctx context.Context, ctl Controller) Model {
	p := progress.New(progress.WithDefaultGradient())
	p.Width = 60
	return Model{
		ctl:      ctl,
		ctx:      ctx,
		progress: p,
		styles:   DefaultStyles(),
		width:    80,
		state:    ctl.State(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(renderEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), func() tea.Msg { return stateMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, msg.Width-4)
		return m, nil

	case tickMsg:
		m.state = m.ctl.State()
		return m, tick()

	case stateMsg:
		m.state = m.ctl.State()
		return m, nil

	case commandDoneMsg:
		m.busy = ""
		m.notice = ""
		if msg.err != nil && msg.action == "refresh" {
			m.notice = "Refresh failed; showing the last known status."
		}
		m.state = m.ctl.State()
		return m, nil

	case SessionExpiredMsg:
		m.notice = "Session expired. Restart with a fresh token."
		m.ctl.Unmount()
		m.state = m.ctl.State()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.ctl.Unmount()
		m.quit = true
		return m, tea.Quit

	case "a":
		if err := m.ctl.SetAutoRefresh(!m.state.AutoRefresh); err != nil {
			m.notice = err.Error()
		}
		m.state = m.ctl.State()
		return m, nil

	case "r":
		if m.busy != "" {
			return m, nil
		}
		m.busy = "Refreshing..."
		return m, m.run("refresh", m.ctl.Refresh)

	case "p":
		if m.busy != "" || m.state.CommandInFlight {
			return m, nil
		}
		switch {
		case m.state.CanPause:
			m.busy = "Pausing..."
			return m, m.run("pause", m.ctl.Pause)
		case m.state.CanResume:
			m.busy = "Resuming..."
			return m, m.run("resume", m.ctl.Resume)
		}
	}
	return m, nil
}

func (m Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return commandDoneMsg{action: action, err: fn(ctx)}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quit {
		return ""
	}
	s := m.state
	var b strings.Builder

	header := lipgloss.JoinHorizontal(lipgloss.Center, m.styles.Title.Render(s.Name), "  ", m.styles.Badge(s.Badge))
	b.WriteString(header + "\n")
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("campaign %s  started %s  finished %s",
		s.CampaignID, formatTime(s.StartedAt), formatTime(s.FinishedAt))) + "\n\n")

	if s.NextSend.Visible {
		b.WriteString(m.field("Next send in", s.NextSend.Display) + "\n")
	}
	if s.TimeToFinish.Visible {
		b.WriteString(m.field("Time to finish", s.TimeToFinish.Display) + "\n")
	}

	st := s.Statistics
	b.WriteString(fmt.Sprintf("%s  %s  %s  %s  %s\n",
		m.field("Total", fmt.Sprint(st.Total)),
		m.field("Sent", fmt.Sprint(st.Sent)),
		m.field("Failed", fmt.Sprint(st.Failed)),
		m.field("Replied", fmt.Sprint(st.Replied)),
		m.field("Bounced", fmt.Sprint(st.Bounced)),
	))
	b.WriteString(m.progress.ViewAs(s.Progress) + "\n\n")

	b.WriteString(m.objects(s.Objects))

	for _, notice := range []string{s.PollNotice, s.CommandError, m.notice} {
		if notice != "" {
			b.WriteString(m.styles.Error.Render(notice) + "\n")
		}
	}
	if !s.Mounted {
		b.WriteString(m.styles.Warning.Render("View is no longer live.") + "\n")
	}
	if m.busy != "" {
		b.WriteString(m.styles.Warning.Render(m.busy) + "\n")
	}

	b.WriteString("\n" + m.styles.Muted.Render(m.hints()) + "\n")
	return b.String()
}

func (m Model) field(label, value string) string {
	return m.styles.Label.Render(label+":") + " " + m.styles.Value.Render(value)
}

func (m Model) objects(rows []monitor.ObjectRow) string {
	if len(rows) == 0 {
		return m.styles.Muted.Render("No recipients yet.") + "\n\n"
	}
	var b strings.Builder
	b.WriteString(m.styles.Header.Render(fmt.Sprintf("%-28s %-30s %-14s %-16s", "Name", "Email", "Status", "Planned")) + "\n")
	for i, row := range rows {
		if i == maxRows {
			b.WriteString(m.styles.Muted.Render(fmt.Sprintf("... and %d more", len(rows)-maxRows)) + "\n")
			break
		}
		status := m.styles.Badge(row.Status)
		pad := 14 - lipgloss.Width(status)
		if pad < 0 {
			pad = 0
		}
		b.WriteString(fmt.Sprintf("%-28s %-30s %s%s %-16s\n",
			truncate(orDash(row.Name), 28),
			truncate(orDash(row.Email), 30),
			status, strings.Repeat(" ", pad),
			formatTime(row.PlannedSendAt),
		))
		if row.Error != "" {
			b.WriteString("  " + m.styles.Error.Render(truncate(row.Error, 80)) + "\n")
		}
	}
	return b.String() + "\n"
}

func (m Model) hints() string {
	parts := []string{}
	switch {
	case m.state.CanPause:
		parts = append(parts, "[p] Pause")
	case m.state.CanResume:
		parts = append(parts, "[p] Resume")
	}
	auto := "off"
	if m.state.AutoRefresh {
		auto = "on"
	}
	parts = append(parts, "[a] Auto-refresh: "+auto, "[r] Refresh", "[q] Quit")
	return strings.Join(parts, "  ")
}

func formatTime(ts domain.Timestamp) string {
	if !ts.Valid {
		return "-"
	}
	return ts.Time.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
