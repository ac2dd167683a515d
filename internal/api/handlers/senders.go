package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/outreach-monitor/internal/upstream"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

type senderAccountRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	IMAPHost         string `json:"imap_host"`
	IMAPPort         int    `json:"imap_port"`
	IMAPSSL          *bool  `json:"imap_ssl"`
	SMTPHost         string `json:"smtp_host"`
	SMTPPort         *int   `json:"smtp_port"`
	SeleniumRequired bool   `json:"selenium_required"`
	ServerID         string `json:"server_id"`
	IsActive         *bool  `json:"is_active"`
}

// input converts the form into the backend payload. Blank optional text becomes null.
func (r senderAccountRequest) input() (upstream.SenderAccountInput, error) {
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return upstream.SenderAccountInput{}, fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	}
	in := upstream.SenderAccountInput{
		Email:            email,
		Password:         optional(r.Password),
		FirstName:        optional(r.FirstName),
		LastName:         optional(r.LastName),
		IMAPHost:         optional(r.IMAPHost),
		IMAPPort:         r.IMAPPort,
		IMAPSSL:          true,
		SMTPHost:         optional(r.SMTPHost),
		SMTPPort:         r.SMTPPort,
		SeleniumRequired: r.SeleniumRequired,
		ServerID:         strings.TrimSpace(r.ServerID),
		IsActive:         true,
	}
	if in.IMAPPort == 0 {
		in.IMAPPort = 993
	}
	if r.IMAPSSL != nil {
		in.IMAPSSL = *r.IMAPSSL
	}
	if r.IsActive != nil {
		in.IsActive = *r.IsActive
	}
	if in.ServerID == "" {
		in.ServerID = "1"
	}
	return in, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (h *HandlerSet) listSenderAccounts(ctx *fiber.Ctx) error {
	accounts, err := h.client(ctx).ListSenderAccounts(ctx.UserContext(), ctx.QueryBool("active_only", false))
	if err != nil {
		return err
	}
	// passwords never leave the dashboard backend
	for i := range accounts {
		accounts[i].Password = nil
	}
	return ctx.JSON(fiber.Map{"sender_accounts": accounts})
}

func (h *HandlerSet) createSenderAccount(ctx *fiber.Ctx) error {
	var req senderAccountRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: invalid body", apperrors.ErrValidation)
	}
	in, err := req.input()
	if err != nil {
		return err
	}
	account, err := h.client(ctx).CreateSenderAccount(ctx.UserContext(), in)
	if err != nil {
		return err
	}
	account.Password = nil
	return ctx.Status(fiber.StatusCreated).JSON(account)
}

func (h *HandlerSet) deleteSenderAccount(ctx *fiber.Ctx) error {
	if err := h.client(ctx).DeleteSenderAccount(ctx.UserContext(), ctx.Params("id")); err != nil {
		return err
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
