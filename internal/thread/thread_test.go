package thread

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/outreach-monitor/internal/domain"
	"github.com/acme/outreach-monitor/internal/events"
	"github.com/acme/outreach-monitor/internal/upstream"
	apperrors "github.com/acme/outreach-monitor/pkg/errors"
)

func str(s string) *string { return &s }

func ts(value string) domain.Timestamp {
	t, ok := domain.ParseTimestamp(value)
	if !ok {
		panic("bad fixture " + value)
	}
	return t
}

func details(status domain.ObjectStatus, sent *domain.SentEmail) *domain.ObjectDetails {
	return &domain.ObjectDetails{
		Campaign:  domain.ObjectCampaign{ID: "c1", Name: "Spring outreach"},
		Target:    domain.Target{ID: "o1", Name: str("Cafe Aurora"), ToEmail: "hello@aurora.test", Status: status},
		SentEmail: sent,
	}
}

func sampleThread() *domain.EmailThread {
	return &domain.EmailThread{
		ThreadID: "t1",
		Messages: []domain.ThreadMessage{
			{ID: "msg1", Direction: domain.DirectionSent, Subject: "Hello", CreatedAt: ts("2024-01-01T10:00:00Z")},
			{ID: "msg2", Direction: domain.DirectionReceived, Subject: "Re: Hello", CreatedAt: ts("2024-01-01T09:00:00Z")},
		},
		PendingReplies: []domain.PendingReply{
			{ID: "pending1", Subject: "Re: Re: Hello", ScheduledAt: ts("2024-01-02T08:00:00Z")},
		},
	}
}

func TestAssembleThreadKeepsServerOrderThenPending(t *testing.T) {
	conv := Assemble(details(domain.ObjectStatusSent, nil), sampleThread())

	require.Equal(t, StateThread, conv.State)
	require.Len(t, conv.Entries, 3)
	assert.Equal(t, []string{"msg1", "msg2", "pending1"}, []string{conv.Entries[0].ID, conv.Entries[1].ID, conv.Entries[2].ID})
	assert.Equal(t, []Role{RoleSent, RoleReceived, RolePending}, []Role{conv.Entries[0].Role, conv.Entries[1].Role, conv.Entries[2].Role})

	pending := conv.Entries[2]
	assert.Equal(t, BadgeScheduled, pending.Badge)
	assert.Equal(t, LabelWillSend, pending.TimestampLabel)
	assert.Equal(t, ts("2024-01-02T08:00:00Z"), pending.Timestamp)
	assert.Equal(t, "t1", conv.ThreadID)
	assert.Equal(t, "Cafe Aurora", conv.Recipient.Name)
}

func TestAssembleFallbackToSentRecord(t *testing.T) {
	sent := &domain.SentEmail{ID: "abcdef0123456789", From: "me@acme.test", Subject: str("Hello"), Body: str("Hi"), SentAt: ts("2024-01-01T10:00:00Z")}

	conv := Assemble(details(domain.ObjectStatusSent, sent), nil)

	require.Equal(t, StateFallback, conv.State)
	require.Len(t, conv.Entries, 1)
	entry := conv.Entries[0]
	assert.Equal(t, sent.ID, entry.ID)
	assert.Equal(t, "23456789", entry.ShortID)
	assert.Equal(t, RoleSent, entry.Role)
	assert.Equal(t, "Hello", entry.Subject)
	assert.Equal(t, sent.SentAt, entry.Timestamp)
	assert.False(t, entry.Generated)
}

func TestAssembleThreadWithoutMessagesFallsBack(t *testing.T) {
	sent := &domain.SentEmail{ID: "s1"}
	empty := &domain.EmailThread{ThreadID: "t1", PendingReplies: []domain.PendingReply{{ID: "p1"}}}

	conv := Assemble(details(domain.ObjectStatusSent, sent), empty)
	assert.Equal(t, StateFallback, conv.State)
	require.Len(t, conv.Entries, 1)
	assert.Equal(t, "s1", conv.Entries[0].ID)
}

func TestAssemblePendingOnlyThreadWithoutSentRecordIsEmpty(t *testing.T) {
	pendingOnly := &domain.EmailThread{ThreadID: "t1", PendingReplies: []domain.PendingReply{{ID: "p1"}}}

	conv := Assemble(details(domain.ObjectStatusScheduled, nil), pendingOnly)
	assert.Equal(t, StateEmpty, conv.State)
	assert.Empty(t, conv.Entries)
	assert.Equal(t, EmptyMessage, conv.EmptyMessage)
}

func TestAssembleEmptyState(t *testing.T) {
	conv := Assemble(details(domain.ObjectStatusQueued, nil), nil)

	assert.Equal(t, StateEmpty, conv.State)
	assert.Empty(t, conv.Entries)
	assert.NotNil(t, conv.Entries)
	assert.Equal(t, EmptyMessage, conv.EmptyMessage)

	assert.Equal(t, StateEmpty, Assemble(nil, nil).State)
}

func TestAssembleGeneratedTag(t *testing.T) {
	generated := &domain.SentEmail{ID: domain.GeneratedIDPrefix + "42"}

	conv := Assemble(details(domain.ObjectStatusGenerated, generated), nil)
	require.Len(t, conv.Entries, 1)
	assert.True(t, conv.Entries[0].Generated)
	assert.Equal(t, BadgeGenerated, conv.Entries[0].Badge)

	conv = Assemble(details(domain.ObjectStatusSent, generated), nil)
	assert.False(t, conv.Entries[0].Generated, "a sent target is never tagged generated")

	th := &domain.EmailThread{Messages: []domain.ThreadMessage{
		{ID: domain.GeneratedIDPrefix + "m1", Direction: domain.DirectionSent},
		{ID: domain.GeneratedIDPrefix + "m2", Direction: domain.DirectionReceived},
	}}
	conv = Assemble(details(domain.ObjectStatusScheduled, nil), th)
	assert.True(t, conv.Entries[0].Generated)
	assert.False(t, conv.Entries[1].Generated, "received messages are never tagged")
}

func TestAssembleAttachesSentError(t *testing.T) {
	sent := &domain.SentEmail{ID: "s1", Error: str("mailbox full")}
	th := &domain.EmailThread{Messages: []domain.ThreadMessage{
		{ID: "m1", Direction: domain.DirectionSent},
		{ID: "m2", Direction: domain.DirectionReceived},
	}}

	conv := Assemble(details(domain.ObjectStatusFailed, sent), th)
	assert.Equal(t, "mailbox full", conv.Entries[0].Error)
	assert.Empty(t, conv.Entries[1].Error)
}

type fakeSource struct {
	details   *domain.ObjectDetails
	thread    *domain.EmailThread
	detailErr error
	threadErr error
	replyErr  error

	mu           sync.Mutex
	threadCalls  int
	replyCalls   int32
	replyGate    chan struct{}
	replyStarted chan struct{}
	lastReply    upstream.ReplyInput
}

func (f *fakeSource) GetObjectDetails(context.Context, string, string) (*domain.ObjectDetails, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return f.details, nil
}

func (f *fakeSource) GetThread(context.Context, string, string) (*domain.EmailThread, error) {
	f.mu.Lock()
	f.threadCalls++
	f.mu.Unlock()
	if f.threadErr != nil {
		return nil, f.threadErr
	}
	return f.thread, nil
}

func (f *fakeSource) SendReply(_ context.Context, _, _ string, in upstream.ReplyInput) error {
	atomic.AddInt32(&f.replyCalls, 1)
	f.mu.Lock()
	f.lastReply = in
	gate, started := f.replyGate, f.replyStarted
	f.replyStarted = nil
	f.mu.Unlock()
	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	return f.replyErr
}

func threadedDetails() *domain.ObjectDetails {
	d := details(domain.ObjectStatusSent, &domain.SentEmail{ID: "s1", ThreadID: str("t1")})
	return d
}

func TestLoadUsesThread(t *testing.T) {
	src := &fakeSource{details: threadedDetails(), thread: sampleThread()}
	svc := NewService(nil, nil).WithSource(src, "sess")

	conv, err := svc.Load(context.Background(), "c1", "o1")
	require.NoError(t, err)
	assert.Equal(t, StateThread, conv.State)
	assert.Len(t, conv.Entries, 3)
	assert.Empty(t, conv.ThreadNotice)
}

func TestLoadDegradesWhenThreadFails(t *testing.T) {
	src := &fakeSource{details: threadedDetails(), threadErr: fmt.Errorf("upstream: %w", apperrors.ErrUnavailable)}
	svc := NewService(nil, nil).WithSource(src, "sess")

	conv, err := svc.Load(context.Background(), "c1", "o1")
	require.NoError(t, err)
	assert.Equal(t, StateFallback, conv.State)
	assert.NotEmpty(t, conv.ThreadNotice)
}

func TestLoadWithoutThreadIDSkipsFetch(t *testing.T) {
	src := &fakeSource{details: details(domain.ObjectStatusQueued, nil)}
	svc := NewService(nil, nil).WithSource(src, "sess")

	conv, err := svc.Load(context.Background(), "c1", "o1")
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, conv.State)
	assert.Zero(t, src.threadCalls)
}

func TestLoadDetailFailureIsAnError(t *testing.T) {
	src := &fakeSource{detailErr: fmt.Errorf("upstream: %w", apperrors.ErrNotFound)}
	svc := NewService(nil, nil).WithSource(src, "sess")

	_, err := svc.Load(context.Background(), "c1", "o1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSendReplyValidates(t *testing.T) {
	src := &fakeSource{details: threadedDetails(), thread: sampleThread()}
	svc := NewService(nil, nil).WithSource(src, "sess")

	_, err := svc.SendReply(context.Background(), "c1", "o1", upstream.ReplyInput{Subject: "  ", Body: "hi"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.SendReply(context.Background(), "c1", "o1", upstream.ReplyInput{Subject: "Hi", Body: ""})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Zero(t, atomic.LoadInt32(&src.replyCalls))
}

func TestSendReplyRefetchesThread(t *testing.T) {
	rec := &events.Recorder{}
	src := &fakeSource{details: threadedDetails(), thread: sampleThread()}
	svc := NewService(rec, nil).WithSource(src, "sess")

	res, err := svc.SendReply(context.Background(), "c1", "o1", upstream.ReplyInput{Subject: " Hi ", Body: "Thanks "})
	require.NoError(t, err)
	require.NotNil(t, res.Conversation)
	assert.Equal(t, StateThread, res.Conversation.State)
	assert.Equal(t, upstream.ReplyInput{Subject: "Hi", Body: "Thanks"}, src.lastReply)
	assert.Equal(t, 1, src.threadCalls)

	assert.Equal(t, []events.Outcome{events.OutcomeRequested, events.OutcomeSucceeded}, rec.Outcomes(events.TypeReply))
	assert.Equal(t, "sess", rec.Events()[0].SessionID)
	assert.Equal(t, "o1", rec.Events()[0].ObjectID)
}

func TestSendReplyTimeoutMayStillBeSending(t *testing.T) {
	rec := &events.Recorder{}
	src := &fakeSource{
		details:  threadedDetails(),
		replyErr: fmt.Errorf("upstream: %w: %w", apperrors.ErrTimeout, context.DeadlineExceeded),
	}
	svc := NewService(rec, nil).WithSource(src, "sess")

	_, err := svc.SendReply(context.Background(), "c1", "o1", upstream.ReplyInput{Subject: "Hi", Body: "There"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReplyMayStillBeSending)
	assert.Equal(t, []events.Outcome{events.OutcomeRequested, events.OutcomeUnconfirmed}, rec.Outcomes(events.TypeReply))
}

func TestSendReplyHardFailure(t *testing.T) {
	src := &fakeSource{details: threadedDetails(), replyErr: fmt.Errorf("upstream: %w", apperrors.ErrValidation)}
	svc := NewService(nil, nil).WithSource(src, "sess")

	_, err := svc.SendReply(context.Background(), "c1", "o1", upstream.ReplyInput{Subject: "Hi", Body: "There"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrReplyMayStillBeSending))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestConcurrentRepliesShareOneCall(t *testing.T) {
	src := &fakeSource{
		details:      threadedDetails(),
		thread:       sampleThread(),
		replyGate:    make(chan struct{}),
		replyStarted: make(chan struct{}),
	}
	started := src.replyStarted
	base := NewService(nil, nil)
	first := base.WithSource(src, "sess")
	second := base.WithSource(src, "sess")

	in := upstream.ReplyInput{Subject: "Hi", Body: "There"}
	results := make(chan *ReplyResult, 2)
	go func() {
		res, err := first.SendReply(context.Background(), "c1", "o1", in)
		assert.NoError(t, err)
		results <- res
	}()
	<-started

	go func() {
		res, err := second.SendReply(context.Background(), "c1", "o1", in)
		assert.NoError(t, err)
		results <- res
	}()
	// give the second submit time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(src.replyGate)

	a, b := <-results, <-results
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.replyCalls))
	assert.True(t, a.Shared)
	assert.True(t, b.Shared)
}
