package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/outreach-monitor/internal/monitor"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr
	}

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrUnauthorized):
		return fiber.NewError(http.StatusUnauthorized, "session expired, please log in again")
	case errors.Is(err, monitor.ErrUnmounted):
		return fiber.NewError(http.StatusNotFound, "view is no longer mounted")
	case errors.Is(err, monitor.ErrInitialLoad) && errors.Is(err, apperrors.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "campaign not found")
	case errors.Is(err, apperrors.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "resource not found")
	case errors.Is(err, monitor.ErrCommandInFlight),
		errors.Is(err, monitor.ErrCommandUnavailable),
		errors.Is(err, apperrors.ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, monitor.ErrTooManyViews):
		return fiber.NewError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, apperrors.ErrTimeout):
		return fiber.NewError(http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, apperrors.ErrUnavailable):
		return fiber.NewError(http.StatusBadGateway, err.Error())
	default:
		return err
	}
}
