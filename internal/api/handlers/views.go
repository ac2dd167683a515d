package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/outreach-monitor/internal/monitor"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

type autoRefreshRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *HandlerSet) view(ctx *fiber.Ctx) (*monitor.View, error) {
	return h.deps.Views.Get(currentSession(ctx).ID.String(), ctx.Params("viewId"))
}

func (h *HandlerSet) getView(ctx *fiber.Ctx) error {
	view, err := h.view(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(view.State())
}

func (h *HandlerSet) setAutoRefresh(ctx *fiber.Ctx) error {
	var req autoRefreshRequest
	if err := ctx.BodyParser(&req); err != nil || req.Enabled == nil {
		return fmt.Errorf("%w: enabled is required", apperrors.ErrValidation)
	}
	view, err := h.view(ctx)
	if err != nil {
		return err
	}
	if err := view.SetAutoRefresh(*req.Enabled); err != nil {
		return err
	}
	return ctx.JSON(view.State())
}

// refreshView answers with the state even when the fetch failed; the failure is the poll notice.
func (h *HandlerSet) refreshView(ctx *fiber.Ctx) error {
	view, err := h.view(ctx)
	if err != nil {
		return err
	}
	err = view.Refresh(ctx.UserContext())
	if errors.Is(err, monitor.ErrUnmounted) || errors.Is(err, apperrors.ErrUnauthorized) {
		return err
	}
	return ctx.JSON(view.State())
}

func (h *HandlerSet) pauseView(ctx *fiber.Ctx) error {
	return h.lifecycle(ctx, monitor.CommandPause)
}

func (h *HandlerSet) resumeView(ctx *fiber.Ctx) error {
	return h.lifecycle(ctx, monitor.CommandResume)
}

func (h *HandlerSet) lifecycle(ctx *fiber.Ctx, cmd monitor.Command) error {
	view, err := h.view(ctx)
	if err != nil {
		return err
	}
	run := view.Pause
	if cmd == monitor.CommandResume {
		run = view.Resume
	}
	if err := run(ctx.UserContext()); err != nil {
		return err
	}
	return ctx.JSON(view.State())
}

func (h *HandlerSet) unmountView(ctx *fiber.Ctx) error {
	if err := h.deps.Views.Remove(currentSession(ctx).ID.String(), ctx.Params("viewId")); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
