package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/outreach-monitor/internal/upstream"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

type createSessionRequest struct {
	Password string `json:"password"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *HandlerSet) createSession(ctx *fiber.Ctx) error {
	var req createSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: invalid body", apperrors.ErrValidation)
	}

	sess, err := h.deps.Sessions.Init(ctx.UserContext(), req.Password)
	if errors.Is(err, apperrors.ErrUnauthorized) {
		return fiber.NewError(fiber.StatusUnauthorized, loginMessage(err))
	}
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(sessionResponse{
		SessionID: sess.ID.String(),
		ExpiresAt: sess.ExpiresAt,
	})
}

func (h *HandlerSet) deleteSession(ctx *fiber.Ctx) error {
	if err := h.deps.Sessions.Teardown(ctx.UserContext(), ctx.Get(SessionHeader)); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// loginMessage is the backend's rejection text without the wrapping chain.
func loginMessage(err error) string {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return msg
}
