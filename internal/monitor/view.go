package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/outreach-monitor/internal/countdown"
	"github.com/acme/outreach-monitor/internal/domain"
	"github.com/acme/outreach-monitor/internal/events"
	"github.com/acme/outreach-monitor/internal/lock"
	"github.com/acme/outreach-monitor/internal/scheduler"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
	"github.com/acme/outreach-monitor/pkg/logger"
)

var (
	// ErrInitialLoad wraps the failure of the first fetch. The view is not usable afterwards.
	ErrInitialLoad = errors.New("monitor: initial load failed")
	// ErrUnmounted is returned by operations on a view that was torn down.
	ErrUnmounted = errors.New("monitor: view is not mounted")
	// ErrCommandUnavailable means the campaign status does not offer the command.
	ErrCommandUnavailable = errors.New("monitor: command not available for current status")
	// ErrCommandInFlight means another lifecycle command has not finished yet.
	ErrCommandInFlight = errors.New("monitor: a lifecycle command is already in flight")
)

// Source is the authoritative campaign backend.
type Source interface {
	GetCampaign(ctx context.Context, campaignID string) (*domain.Campaign, error)
	PauseCampaign(ctx context.Context, campaignID string) error
	ResumeCampaign(ctx context.Context, campaignID string) error
}

// CommandLock serializes lifecycle commands on one campaign across views. held is false when
// another holder has the campaign.
type CommandLock interface {
	TryLock(ctx context.Context, campaignID string) (unlock lock.Unlock, held bool, err error)
}

// Command is a lifecycle command.
type Command string

const (
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
)

// Options tunes a view. Zero values fall back to the production cadence.
type Options struct {
	PollInterval time.Duration
	TickInterval time.Duration
	AutoRefresh  bool
	Schedulers   scheduler.Factory
	Publisher    events.Publisher
	Logger       *logger.Logger
	SessionID    string
	// Lock, when set, extends the single-flight gate to every view of the campaign.
	Lock CommandLock
	// OnChange fires after any state change, including countdown ticks. It runs without view
	// locks held and may call State.
	OnChange func()
	// OnUnauthorized fires when the backend rejects the session's credentials.
	OnUnauthorized func(err error)
}

func (o *Options) normalize() {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.Schedulers == nil {
		o.Schedulers = scheduler.NewIntervalFactory()
	}
	if o.Publisher == nil {
		o.Publisher = events.Noop{}
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
}

// View is the monitor for one mounted campaign screen. The zero value is not usable; build
// one with NewView.
type View struct {
	id         string
	campaignID string
	source     Source
	opts       Options
	log        *logger.Logger
	tracer     trace.Tracer

	poller   scheduler.Scheduler
	nextSend *countdown.Countdown
	finish   *countdown.Countdown

	life   context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	snapshot    *domain.Campaign
	lastUpdated time.Time
	pollErr     string
	cmdErr      string
	autoRefresh bool
	mounted     bool
	loaded      bool
	pending     Command

	mutating atomic.Bool
}

// NewView builds an unmounted view for a campaign.
func NewView(campaignID string, source Source, opts Options) *View {
	opts.normalize()
	life, cancel := context.WithCancel(context.Background())
	v := &View{
		id:          uuid.NewString(),
		campaignID:  campaignID,
		source:      source,
		opts:        opts,
		tracer:      otel.Tracer("outreach.monitor"),
		poller:      opts.Schedulers(opts.PollInterval),
		nextSend:    countdown.New(opts.Schedulers(opts.TickInterval)),
		finish:      countdown.New(opts.Schedulers(opts.TickInterval)),
		life:        life,
		cancel:      cancel,
		autoRefresh: opts.AutoRefresh,
	}
	v.log = opts.Logger.With(zap.String("view_id", v.id), zap.String("campaign_id", campaignID))
	v.nextSend.OnChange(v.changed)
	v.finish.OnChange(v.changed)
	return v
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// CampaignID returns the monitored campaign.
func (v *View) CampaignID() string { return v.campaignID }

// Mount performs the initial fetch and, when auto-refresh is on, starts polling. A failed
// initial fetch tears the view down and wraps ErrInitialLoad.
func (v *View) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return nil
	}
	if v.life.Err() != nil {
		v.mu.Unlock()
		return ErrUnmounted
	}
	v.mounted = true
	v.mu.Unlock()

	if err := v.poll(ctx); err != nil {
		v.Unmount()
		return fmt.Errorf("%w: %w", ErrInitialLoad, err)
	}

	v.mu.Lock()
	if v.mounted && v.autoRefresh {
		v.poller.Start(v.onInterval)
	}
	v.mu.Unlock()

	v.log.Info("monitor: view mounted", zap.Bool("auto_refresh", v.AutoRefresh()))
	return nil
}

func (v *View) onInterval(ctx context.Context) {
	_ = v.poll(ctx)
}

// Refresh fetches once now. The polling cadence is left untouched.
func (v *View) Refresh(ctx context.Context) error {
	v.mu.Lock()
	mounted := v.mounted
	v.mu.Unlock()
	if !mounted {
		return ErrUnmounted
	}
	return v.poll(ctx)
}

// SetAutoRefresh toggles polling. Turning it on starts a fresh interval; turning it off stops
// polling at once.
func (v *View) SetAutoRefresh(enabled bool) error {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return ErrUnmounted
	}
	changed := v.autoRefresh != enabled
	v.autoRefresh = enabled
	if enabled {
		if !v.poller.Running() {
			v.poller.Start(v.onInterval)
		}
	} else {
		v.poller.Stop()
	}
	v.mu.Unlock()

	if changed {
		v.log.Debug("monitor: auto-refresh toggled", zap.Bool("enabled", enabled))
		v.changed()
	}
	return nil
}

// AutoRefresh reports the toggle.
func (v *View) AutoRefresh() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.autoRefresh
}

// Pause stops sending. Only offered while the campaign is in progress.
func (v *View) Pause(ctx context.Context) error {
	return v.command(ctx, CommandPause)
}

// Resume continues sending. Only offered while the campaign is paused.
func (v *View) Resume(ctx context.Context) error {
	return v.command(ctx, CommandResume)
}

func commandOffered(cmd Command, status domain.CampaignStatus) bool {
	switch cmd {
	case CommandPause:
		return status == domain.CampaignStatusInProgress
	case CommandResume:
		return status == domain.CampaignStatusPaused
	default:
		return false
	}
}

func (v *View) command(ctx context.Context, cmd Command) error {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return ErrUnmounted
	}
	var status domain.CampaignStatus
	if v.snapshot != nil {
		status = v.snapshot.Status
	}
	v.mu.Unlock()

	if v.mutating.Load() {
		return ErrCommandInFlight
	}
	if !commandOffered(cmd, status) {
		return fmt.Errorf("%w: cannot %s a %q campaign", ErrCommandUnavailable, cmd, status)
	}
	if !v.mutating.CompareAndSwap(false, true) {
		return ErrCommandInFlight
	}
	defer func() {
		v.mu.Lock()
		v.pending = ""
		v.mu.Unlock()
		v.mutating.Store(false)
		v.changed()
	}()

	ctx, done := v.bound(ctx)
	defer done()

	if v.opts.Lock != nil {
		unlock, held, err := v.opts.Lock.TryLock(ctx, v.campaignID)
		if err != nil {
			return fmt.Errorf("monitor: %s campaign %s: %w", cmd, v.campaignID, err)
		}
		if !held {
			return ErrCommandInFlight
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				v.log.Warn("monitor: command lock release failed", zap.String("command", string(cmd)), zap.Error(err))
			}
		}()
	}

	v.mu.Lock()
	v.pending = cmd
	v.cmdErr = ""
	v.mu.Unlock()
	v.changed()

	ctx, span := v.tracer.Start(ctx, "monitor."+string(cmd), trace.WithAttributes(
		attribute.String("campaign.id", v.campaignID),
	))
	defer span.End()

	evtType := events.TypePause
	call := v.source.PauseCampaign
	if cmd == CommandResume {
		evtType = events.TypeResume
		call = v.source.ResumeCampaign
	}
	v.publish(ctx, events.New(evtType, events.OutcomeRequested, v.campaignID))

	if err := call(ctx, v.campaignID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		v.publish(ctx, events.New(evtType, events.OutcomeFailed, v.campaignID).WithError(err))

		v.mu.Lock()
		if v.mounted {
			v.cmdErr = fmt.Sprintf("Failed to %s campaign: %s", cmd, userMessage(err))
		}
		v.mu.Unlock()

		v.log.WithContext(ctx).Warn("monitor: lifecycle command failed", zap.String("command", string(cmd)), zap.Error(err))
		v.unauthorized(err)
		return fmt.Errorf("monitor: %s campaign %s: %w", cmd, v.campaignID, err)
	}
	v.publish(ctx, events.New(evtType, events.OutcomeSucceeded, v.campaignID))
	v.log.WithContext(ctx).Info("monitor: lifecycle command accepted", zap.String("command", string(cmd)))

	// status only changes through the confirming poll
	if err := v.poll(ctx); err != nil && !errors.Is(err, ErrUnmounted) {
		v.log.WithContext(ctx).Warn("monitor: confirming poll failed", zap.String("command", string(cmd)), zap.Error(err))
	}
	return nil
}

// poll fetches the campaign and, if the view is still mounted, installs the snapshot.
func (v *View) poll(ctx context.Context) error {
	ctx, done := v.bound(ctx)
	defer done()

	ctx, span := v.tracer.Start(ctx, "monitor.poll", trace.WithAttributes(
		attribute.String("campaign.id", v.campaignID),
	))
	defer span.End()

	campaign, err := v.source.GetCampaign(ctx, v.campaignID)

	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return ErrUnmounted
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			v.mu.Unlock()
			return err
		}
		if v.loaded {
			v.pollErr = "Failed to refresh campaign status: " + userMessage(err)
		}
		v.mu.Unlock()

		v.log.WithContext(ctx).Warn("monitor: poll failed", zap.Error(err))
		v.unauthorized(err)
		v.changed()
		return fmt.Errorf("monitor: poll campaign %s: %w", v.campaignID, err)
	}
	v.applyLocked(campaign)
	v.mu.Unlock()

	v.changed()
	return nil
}

// applyLocked installs a whole snapshot and re-seeds both countdowns from it.
func (v *View) applyLocked(campaign *domain.Campaign) {
	v.snapshot = campaign
	v.lastUpdated = time.Now()
	v.loaded = true
	v.pollErr = ""

	if campaign.Status == domain.CampaignStatusPaused {
		v.nextSend.Reset(nil)
		v.finish.Reset(nil)
		return
	}
	v.nextSend.Reset(campaign.NextSendInSeconds)
	v.finish.Reset(campaign.EstimatedSecondsToFinish)
}

// Unmount stops every timer and cancels in-flight requests. Responses that arrive later are
// dropped. Idempotent.
func (v *View) Unmount() {
	v.mu.Lock()
	wasMounted := v.mounted
	v.mounted = false
	v.poller.Stop()
	v.nextSend.Stop()
	v.finish.Stop()
	v.cancel()
	v.mu.Unlock()

	if wasMounted {
		v.log.Info("monitor: view unmounted")
	}
}

// Mounted reports whether the view is live.
func (v *View) Mounted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mounted
}

// bound ties ctx to the view's lifetime so Unmount cancels it.
func (v *View) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (v *View) changed() {
	if v.opts.OnChange != nil {
		v.opts.OnChange()
	}
}

func (v *View) unauthorized(err error) {
	if v.opts.OnUnauthorized != nil && errors.Is(err, apperrors.ErrUnauthorized) {
		v.opts.OnUnauthorized(err)
	}
}

func (v *View) publish(ctx context.Context, evt events.Event) {
	evt.SessionID = v.opts.SessionID
	// publish errors are logged, never returned
	if err := v.opts.Publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		v.log.Warn("monitor: publish event failed", zap.String("type", string(evt.Type)), zap.Error(err))
	}
}

// userMessage prefers the backend's own message over the wrapped error chain.
func userMessage(err error) string {
	var m interface{ UserMessage() string }
	if errors.As(err, &m) {
		return m.UserMessage()
	}
	switch {
	case errors.Is(err, apperrors.ErrTimeout):
		return apperrors.ErrTimeout.Error()
	case errors.Is(err, apperrors.ErrUnavailable):
		return apperrors.ErrUnavailable.Error()
	default:
		return err.Error()
	}
}
