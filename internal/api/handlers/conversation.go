package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/outreach-monitor/internal/thread"
	"github.com/acme/outreach-monitor/internal/upstream"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

type replyRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type replyResponse struct {
	Sent              bool                 `json:"sent"`
	MayStillBeSending bool                 `json:"may_still_be_sending,omitempty"`
	Message           string               `json:"message,omitempty"`
	Conversation      *thread.Conversation `json:"conversation,omitempty"`
}

func (h *HandlerSet) threads(ctx *fiber.Ctx) *thread.Service {
	return h.deps.Threads.WithSource(h.client(ctx), currentSession(ctx).ID.String())
}

func (h *HandlerSet) getConversation(ctx *fiber.Ctx) error {
	conv, err := h.threads(ctx).Load(ctx.UserContext(), ctx.Params("id"), ctx.Params("objectId"))
	if err != nil {
		return err
	}
	return ctx.JSON(conv)
}

func (h *HandlerSet) sendReply(ctx *fiber.Ctx) error {
	var req replyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: invalid body", apperrors.ErrValidation)
	}

	result, err := h.threads(ctx).SendReply(ctx.UserContext(), ctx.Params("id"), ctx.Params("objectId"), upstream.ReplyInput{
		Subject: req.Subject,
		Body:    req.Body,
	})
	if errors.Is(err, thread.ErrReplyMayStillBeSending) {
		return ctx.Status(fiber.StatusAccepted).JSON(replyResponse{
			MayStillBeSending: true,
			Message:           thread.ReplyTimeoutMessage,
		})
	}
	if err != nil {
		return err
	}

	resp := replyResponse{Sent: true, Conversation: result.Conversation}
	if result.Conversation == nil {
		resp.Message = "Reply sent. Reload the conversation to see it."
	}
	return ctx.JSON(resp)
}
