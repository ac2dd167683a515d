package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/acme/outreach-monitor/internal/domain"
	"github.com/acme/outreach-monitor/internal/events"
	"github.com/acme/outreach-monitor/internal/upstream"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
	"github.com/acme/outreach-monitor/pkg/logger"
)

// ErrReplyMayStillBeSending is returned when the reply outlived the client timeout. The
// backend may still deliver it.
var ErrReplyMayStillBeSending = errors.New("thread: reply timed out and may still be sending")

// ReplyTimeoutMessage is the operator-facing text for ErrReplyMayStillBeSending.
const ReplyTimeoutMessage = "Request timed out. The email may still be sending in the background. Please check the thread later."

// Source is the slice of the backend the conversation screen uses.
type Source interface {
	GetObjectDetails(ctx context.Context, campaignID, objectID string) (*domain.ObjectDetails, error)
	GetThread(ctx context.Context, campaignID, threadID string) (*domain.EmailThread, error)
	SendReply(ctx context.Context, campaignID, objectID string, in upstream.ReplyInput) error
}

// Service loads conversations and sends replies.
type Service struct {
	source    Source
	sessionID string
	publisher events.Publisher
	logger    *logger.Logger
	tracer    trace.Tracer
	inflight  *singleflight.Group
}

// NewService constructs a service without a bound source; use WithSource per session.
func NewService(pub events.Publisher, lg *logger.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if lg == nil {
		lg = logger.Nop()
	}
	return &Service{
		publisher: pub,
		logger:    lg,
		tracer:    otel.Tracer("outreach.thread"),
		inflight:  new(singleflight.Group),
	}
}

// WithSource returns a copy bound to a session's backend client. Copies share reply deduplication.
func (s *Service) WithSource(src Source, sessionID string) *Service {
	scoped := *s
	scoped.source = src
	scoped.sessionID = sessionID
	return &scoped
}

// Load builds the conversation for a recipient. The thread is best effort: when it cannot be
// fetched the conversation falls back to the sent record.
func (s *Service) Load(ctx context.Context, campaignID, objectID string) (*Conversation, error) {
	if s.source == nil {
		return nil, fmt.Errorf("thread: service has no source")
	}
	ctx, span := s.tracer.Start(ctx, "thread.load", trace.WithAttributes(
		attribute.String("campaign.id", campaignID),
		attribute.String("object.id", objectID),
	))
	defer span.End()

	details, err := s.source.GetObjectDetails(ctx, campaignID, objectID)
	if err != nil {
		return nil, fmt.Errorf("thread: load object %s: %w", objectID, err)
	}

	var (
		thread *domain.EmailThread
		notice string
	)
	if threadID := details.ThreadID(); threadID != "" {
		thread, err = s.source.GetThread(ctx, campaignID, threadID)
		if err != nil {
			if errors.Is(err, apperrors.ErrUnauthorized) {
				return nil, fmt.Errorf("thread: load thread %s: %w", threadID, err)
			}
			s.logger.WithContext(ctx).Warn("thread: thread fetch failed, using fallback",
				zap.String("campaign_id", campaignID),
				zap.String("thread_id", threadID),
				zap.Error(err),
			)
			thread = nil
			notice = "Conversation history is unavailable right now."
		}
	}

	conv := Assemble(details, thread)
	if conv.CampaignID == "" {
		conv.CampaignID = campaignID
	}
	if conv.Recipient.ObjectID == "" {
		conv.Recipient.ObjectID = objectID
	}
	if conv.State != StateThread {
		conv.ThreadNotice = notice
	}
	return &conv, nil
}

// ReplyResult is the outcome of a reply send.
type ReplyResult struct {
	// Conversation is the refreshed conversation; nil when the refresh after a send failed.
	Conversation *Conversation
	// Shared is true when concurrent submits for the recipient were served by one backend call.
	Shared bool
}

// SendReply validates and sends a manual reply, then reloads the conversation. Concurrent
// sends for the same recipient collapse into one backend call. A client-side timeout is
// reported as ErrReplyMayStillBeSending.
func (s *Service) SendReply(ctx context.Context, campaignID, objectID string, in upstream.ReplyInput) (*ReplyResult, error) {
	if s.source == nil {
		return nil, fmt.Errorf("thread: service has no source")
	}
	in.Subject = strings.TrimSpace(in.Subject)
	in.Body = strings.TrimSpace(in.Body)
	if in.Subject == "" || in.Body == "" {
		return nil, fmt.Errorf("%w: subject and body are required", apperrors.ErrValidation)
	}

	ctx, span := s.tracer.Start(ctx, "thread.reply", trace.WithAttributes(
		attribute.String("campaign.id", campaignID),
		attribute.String("object.id", objectID),
	))
	defer span.End()

	key := campaignID + "/" + objectID
	_, err, shared := s.inflight.Do(key, func() (any, error) {
		s.publish(ctx, events.OutcomeRequested, campaignID, objectID, nil)
		sendErr := s.source.SendReply(ctx, campaignID, objectID, in)
		switch {
		case sendErr == nil:
			s.publish(ctx, events.OutcomeSucceeded, campaignID, objectID, nil)
		case errors.Is(sendErr, apperrors.ErrTimeout):
			s.publish(ctx, events.OutcomeUnconfirmed, campaignID, objectID, sendErr)
		default:
			s.publish(ctx, events.OutcomeFailed, campaignID, objectID, sendErr)
		}
		return nil, sendErr
	})
	log := s.logger.WithContext(ctx).With(
		zap.String("campaign_id", campaignID),
		zap.String("object_id", objectID),
		zap.Bool("shared", shared),
	)

	if err != nil {
		if errors.Is(err, apperrors.ErrTimeout) {
			log.Warn("thread: reply send timed out", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrReplyMayStillBeSending, err)
		}
		log.Warn("thread: reply send failed", zap.Error(err))
		return nil, fmt.Errorf("thread: send reply: %w", err)
	}
	log.Info("thread: reply sent")

	result := &ReplyResult{Shared: shared}
	conv, err := s.Load(ctx, campaignID, objectID)
	if err != nil {
		log.Warn("thread: reload after reply failed", zap.Error(err))
		return result, nil
	}
	result.Conversation = conv
	return result, nil
}

func (s *Service) publish(ctx context.Context, outcome events.Outcome, campaignID, objectID string, err error) {
	evt := events.New(events.TypeReply, outcome, campaignID).WithError(err)
	evt.ObjectID = objectID
	evt.SessionID = s.sessionID
	if pubErr := s.publisher.Publish(context.WithoutCancel(ctx), evt); pubErr != nil {
		s.logger.Warn("thread: publish event failed", zap.Error(pubErr))
	}
}
