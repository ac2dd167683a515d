package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/outreach-monitor/internal/app"
	"github.com/acme/outreach-monitor/internal/config"
	"github.com/acme/outreach-monitor/internal/events"
	"github.com/acme/outreach-monitor/internal/monitor"
	"github.com/acme/outreach-monitor/internal/scheduler"
	"github.com/acme/outreach-monitor/internal/session"
	"github.com/acme/outreach-monitor/internal/thread"
	"github.com/acme/outreach-monitor/internal/upstream"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
	"github.com/acme/outreach-monitor/pkg/logger"
)

// SessionHeader carries the operator session id on every authenticated route.
const SessionHeader = "X-Session-ID"

const sessionLocal = "session"

// Deps are the components the handlers drive.
type Deps struct {
	Logger     *logger.Logger
	Sessions   *session.Manager
	Views      *monitor.Registry
	Threads    *thread.Service
	Upstream   *upstream.Client
	Monitor    config.MonitorConfig
	Schedulers scheduler.Factory
	Publisher  events.Publisher
	Lock       monitor.CommandLock
	// Pingers are checked by /healthz, keyed by dependency name.
	Pingers map[string]func(ctx context.Context) error
}

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	deps Deps
}

// New creates a handler bundle from explicit dependencies.
func New(deps Deps) *HandlerSet {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &HandlerSet{deps: deps}
}

// NewHandlerSet creates a handler bundle from the application container.
func NewHandlerSet(container *app.Container) *HandlerSet {
	pingers := make(map[string]func(ctx context.Context) error)
	if container.Redis != nil {
		pingers["redis"] = container.Redis.Ping
	}
	return New(Deps{
		Logger:     container.Logger,
		Sessions:   container.Sessions(),
		Views:      container.Views(),
		Threads:    container.Threads(),
		Upstream:   container.Upstream(),
		Monitor:    container.Config.Monitor,
		Schedulers: container.Schedulers(),
		Publisher:  container.Publisher(),
		Lock:       container.CommandLock(),
		Pingers:    pingers,
	})
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	v1.Post("/session", h.createSession)
	v1.Delete("/session", h.deleteSession)

	authed := v1.Group("", h.requireSession)

	campaigns := authed.Group("/campaigns")
	campaigns.Get("/", h.listCampaigns)
	campaigns.Post("/:id/views", h.mountView)
	campaigns.Get("/:id/objects/:objectId/conversation", h.getConversation)
	campaigns.Post("/:id/objects/:objectId/reply", h.sendReply)

	views := authed.Group("/views")
	views.Get("/:viewId", h.getView)
	views.Put("/:viewId/auto-refresh", h.setAutoRefresh)
	views.Post("/:viewId/refresh", h.refreshView)
	views.Post("/:viewId/pause", h.pauseView)
	views.Post("/:viewId/resume", h.resumeView)
	views.Delete("/:viewId", h.unmountView)

	senders := authed.Group("/sender-accounts")
	senders.Get("/", h.listSenderAccounts)
	senders.Post("/", h.createSenderAccount)
	senders.Delete("/:id", h.deleteSenderAccount)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	err = translateError(err)

	code := fiber.StatusInternalServerError
	message := err.Error()

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.deps.Logger.WithContext(ctx.UserContext()).Error("request failed",
			zap.String("path", ctx.Path()),
			zap.Error(err),
		)
	}

	var traceID string
	if sc := trace.SpanContextFromContext(ctx.UserContext()); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": traceID,
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)
	for name, ping := range h.deps.Pingers {
		if err := ping(healthCtx); err != nil {
			errs[name] = err.Error()
		}
	}

	status := fiber.StatusOK
	state := "ok"
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
		state = "degraded"
	}

	return ctx.Status(status).JSON(fiber.Map{"status": state, "errors": errs})
}

// requireSession resolves the session header. A backend 401 on any downstream call ends the
// session, mirroring a dropped login.
func (h *HandlerSet) requireSession(ctx *fiber.Ctx) error {
	sess, err := h.deps.Sessions.Get(ctx.UserContext(), ctx.Get(SessionHeader))
	if err != nil {
		return err
	}
	ctx.Locals(sessionLocal, sess)

	err = ctx.Next()
	if errors.Is(err, apperrors.ErrUnauthorized) {
		h.expire(context.WithoutCancel(ctx.UserContext()), sess.ID.String())
	}
	return err
}

// expire tears a session down unless a background poll already did.
func (h *HandlerSet) expire(ctx context.Context, sessionID string) {
	if _, err := h.deps.Sessions.Get(ctx, sessionID); err != nil {
		return
	}
	if err := h.deps.Sessions.Teardown(ctx, sessionID); err != nil {
		h.deps.Logger.Warn("session teardown failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func currentSession(ctx *fiber.Ctx) *session.Session {
	sess, _ := ctx.Locals(sessionLocal).(*session.Session)
	return sess
}

// client returns the backend client scoped to the caller's token.
func (h *HandlerSet) client(ctx *fiber.Ctx) *upstream.Client {
	return h.deps.Upstream.ForToken(currentSession(ctx).Token)
}
