package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/outreach-monitor/internal/domain"
	"github.com/acme/outreach-monitor/internal/monitor"
	"github.com/acme/outreach-monitor/internal/projector"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

type campaignRow struct {
	domain.CampaignSummary
	DisplayName string          `json:"display_name"`
	Badge       projector.Badge `json:"badge"`
}

type mountViewRequest struct {
	AutoRefresh *bool `json:"auto_refresh"`
}

type viewResponse struct {
	ViewID string            `json:"view_id"`
	State  monitor.ViewState `json:"state"`
}

func (h *HandlerSet) listCampaigns(ctx *fiber.Ctx) error {
	summaries, err := h.client(ctx).ListCampaigns(ctx.UserContext())
	if err != nil {
		return err
	}

	rows := make([]campaignRow, 0, len(summaries))
	for _, s := range summaries {
		name := "Untitled"
		if s.Name != nil && *s.Name != "" {
			name = *s.Name
		}
		rows = append(rows, campaignRow{
			CampaignSummary: s,
			DisplayName:     name,
			Badge:           projector.CampaignBadge(s.Status),
		})
	}
	return ctx.JSON(fiber.Map{"campaigns": rows})
}

func (h *HandlerSet) mountView(ctx *fiber.Ctx) error {
	var req mountViewRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fmt.Errorf("%w: invalid body", apperrors.ErrValidation)
		}
	}

	sess := currentSession(ctx)
	sessionID := sess.ID.String()

	autoRefresh := h.deps.Monitor.AutoRefresh
	if req.AutoRefresh != nil {
		autoRefresh = *req.AutoRefresh
	}

	opts := monitor.Options{
		PollInterval: h.deps.Monitor.PollInterval,
		TickInterval: h.deps.Monitor.TickInterval,
		AutoRefresh:  autoRefresh,
		Schedulers:   h.deps.Schedulers,
		Publisher:    h.deps.Publisher,
		Logger:       h.deps.Logger,
		Lock:         h.deps.Lock,
		OnUnauthorized: func(error) {
			h.expire(context.Background(), sessionID)
		},
	}

	view, err := h.deps.Views.Open(ctx.UserContext(), sessionID, ctx.Params("id"), h.client(ctx), opts)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(viewResponse{ViewID: view.ID(), State: view.State()})
}
