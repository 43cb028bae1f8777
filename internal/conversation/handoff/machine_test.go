package handoff_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatdesk/backend/internal/conversation/domain"
	"chatdesk/backend/internal/conversation/handoff"
	"chatdesk/backend/internal/conversation/repository"
	"chatdesk/backend/internal/events"
	"chatdesk/backend/internal/guard"
	"chatdesk/backend/internal/guard/guardtest"
	"chatdesk/backend/internal/permission"
	"chatdesk/backend/internal/platform/apperr"
)

type recordingPublisher struct {
	ch chan events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.ch <- e
	return nil
}

type env struct {
	f    *guardtest.Fixture
	repo *repository.MemoryRepository
	m    *handoff.Machine
	pub  *recordingPublisher
}

func newEnv(t *testing.T, opts ...handoff.Option) *env {
	t.Helper()
	f := guardtest.NewFixture()
	f.AddBusiness("biz-a", "Acme")
	f.AddBusiness("biz-b", "Globex")
	f.AddEmployee("biz-a", "emp-olga", "Olga", permission.ConversationsRead, permission.ConversationsTakeover, permission.MessagesRead)
	f.AddEmployee("biz-a", "emp-ivan", "Ivan", permission.ConversationsRead, permission.ConversationsTakeover)
	f.AddEmployee("biz-a", "emp-owner", "Owner", permission.AllGrants()...)
	f.AddEmployee("biz-a", "emp-viewer", "Vera", permission.ConversationsRead)
	f.AddEmployee("biz-b", "emp-bo", "Bo", permission.AllGrants()...)

	repo := repository.NewMemoryRepository()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, c := range []*domain.Conversation{
		{ID: "conv-1", BusinessID: "biz-a", CustomerRef: "+15550001", Mode: domain.ModeAI, Version: 1, CreatedAt: now, UpdatedAt: now},
		{ID: "conv-2", BusinessID: "biz-a", CustomerRef: "+15550002", Mode: domain.ModeAI, Version: 1, CreatedAt: now, UpdatedAt: now},
		{ID: "conv-b", BusinessID: "biz-b", CustomerRef: "+15550003", Mode: domain.ModeAI, Version: 1, CreatedAt: now, UpdatedAt: now},
	} {
		require.NoError(t, repo.Create(context.Background(), c))
	}

	pub := &recordingPublisher{ch: make(chan events.Event, 16)}
	opts = append([]handoff.Option{handoff.WithPublisher(pub)}, opts...)
	return &env{f: f, repo: repo, m: handoff.New(repo, f.Guard(), opts...), pub: pub}
}

func (e *env) messages(t *testing.T, businessID, id string) []*domain.Message {
	t.Helper()
	msgs, err := e.repo.ListMessages(context.Background(), businessID, id, 0)
	require.NoError(t, err)
	return msgs
}

func (e *env) conversation(t *testing.T, businessID, id string) *domain.Conversation {
	t.Helper()
	c, err := e.repo.Get(context.Background(), businessID, id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func (e *env) nextEvent(t *testing.T) events.Event {
	t.Helper()
	select {
	case ev := <-e.pub.ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
		return events.Event{}
	}
}

func TestTakeover(t *testing.T) {
	e := newEnv(t)
	olga := e.f.Resolve(t, "emp-olga")

	c, err := e.m.Takeover(context.Background(), olga, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeHuman, c.Mode)
	assert.Equal(t, "emp-olga", c.AssignedEmployeeID)
	require.NotNil(t, c.AssignedAt)
	assert.Equal(t, int64(2), c.Version)
	require.NoError(t, c.Validate())

	msgs := e.messages(t, "biz-a", "conv-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.SenderSystem, msgs[0].SenderType)
	assert.Equal(t, "Olga joined the conversation", msgs[0].Content)

	ev := e.nextEvent(t)
	assert.Equal(t, events.TypeTakenOver, ev.Type)
	assert.Equal(t, "ai", ev.FromMode)
	assert.Equal(t, "human", ev.ToMode)
	assert.Equal(t, "conv-1", ev.ConversationID)
}

func TestTakeover_AlreadyHeldByCallerIsNoop(t *testing.T) {
	e := newEnv(t)
	olga := e.f.Resolve(t, "emp-olga")

	_, err := e.m.Takeover(context.Background(), olga, "conv-1")
	require.NoError(t, err)
	c, err := e.m.Takeover(context.Background(), olga, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Version)
	assert.Len(t, e.messages(t, "biz-a", "conv-1"), 1)
}

func TestTakeover_HeldByAnotherOperatorConflicts(t *testing.T) {
	e := newEnv(t)
	_, err := e.m.Takeover(context.Background(), e.f.Resolve(t, "emp-olga"), "conv-1")
	require.NoError(t, err)

	_, err = e.m.Takeover(context.Background(), e.f.Resolve(t, "emp-ivan"), "conv-1")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	c := e.conversation(t, "biz-a", "conv-1")
	assert.Equal(t, "emp-olga", c.AssignedEmployeeID)
	assert.Len(t, e.messages(t, "biz-a", "conv-1"), 1)
}

func TestTakeover_FromHybrid(t *testing.T) {
	e := newEnv(t)
	at := time.Now().UTC()
	require.NoError(t, e.repo.Create(context.Background(), &domain.Conversation{
		ID: "conv-h", BusinessID: "biz-a", Mode: domain.ModeHybrid,
		AssignedEmployeeID: "emp-ivan", AssignedAt: &at, Version: 4,
	}))

	c, err := e.m.Takeover(context.Background(), e.f.Resolve(t, "emp-olga"), "conv-h")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeHuman, c.Mode)
	assert.Equal(t, "emp-olga", c.AssignedEmployeeID)
	assert.Equal(t, int64(5), c.Version)
}

func TestGiveBackToAI(t *testing.T) {
	e := newEnv(t)
	olga := e.f.Resolve(t, "emp-olga")
	_, err := e.m.Takeover(context.Background(), olga, "conv-1")
	require.NoError(t, err)

	c, err := e.m.GiveBackToAI(context.Background(), olga, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeAI, c.Mode)
	assert.Empty(t, c.AssignedEmployeeID)
	assert.Nil(t, c.AssignedAt)
	require.NoError(t, c.Validate())

	msgs := e.messages(t, "biz-a", "conv-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "Olga handed conversation back to AI", msgs[1].Content)
}

func TestGiveBackToAI_OnAIIsNoop(t *testing.T) {
	e := newEnv(t)
	olga := e.f.Resolve(t, "emp-olga")

	_, err := e.m.Takeover(context.Background(), olga, "conv-1")
	require.NoError(t, err)
	_, err = e.m.GiveBackToAI(context.Background(), olga, "conv-1")
	require.NoError(t, err)
	c, err := e.m.GiveBackToAI(context.Background(), olga, "conv-1")
	require.NoError(t, err)

	assert.Equal(t, domain.ModeAI, c.Mode)
	assert.Equal(t, int64(3), c.Version)
	assert.Len(t, e.messages(t, "biz-a", "conv-1"), 2)

	untouched, err := e.m.GiveBackToAI(context.Background(), olga, "conv-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), untouched.Version)
	assert.Empty(t, e.messages(t, "biz-a", "conv-2"))
}

func TestClear(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.repo.AppendMessage(ctx, &domain.Message{
		ID: "m-1", ConversationID: "conv-1", BusinessID: "biz-a", SenderType: domain.SenderCustomer, Content: "hi",
	}))
	_, err := e.m.Takeover(ctx, e.f.Resolve(t, "emp-olga"), "conv-1")
	require.NoError(t, err)

	c, err := e.m.Clear(ctx, e.f.Resolve(t, "emp-owner"), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeAI, c.Mode)
	assert.Empty(t, c.AssignedEmployeeID)
	assert.JSONEq(t, `{}`, string(c.AIContext))

	msgs := e.messages(t, "biz-a", "conv-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Owner cleared the conversation and handed it back to AI", msgs[0].Content)
}

func TestClear_OnAILeavesNoMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.repo.AppendMessage(ctx, &domain.Message{
		ID: "m-1", ConversationID: "conv-2", BusinessID: "biz-a", SenderType: domain.SenderCustomer, Content: "hi",
	}))

	c, err := e.m.Clear(ctx, e.f.Resolve(t, "emp-owner"), "conv-2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Version)
	assert.Empty(t, e.messages(t, "biz-a", "conv-2"))
}

func TestClear_RequiresDeleteGrant(t *testing.T) {
	e := newEnv(t)
	_, err := e.m.Clear(context.Background(), e.f.Resolve(t, "emp-olga"), "conv-1")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, int64(1), e.conversation(t, "biz-a", "conv-1").Version)
}

func TestForbiddenLeavesNoTrace(t *testing.T) {
	e := newEnv(t)
	vera := e.f.Resolve(t, "emp-viewer")

	_, err := e.m.Takeover(context.Background(), vera, "conv-1")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = e.m.GiveBackToAI(context.Background(), vera, "conv-1")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	c := e.conversation(t, "biz-a", "conv-1")
	assert.Equal(t, domain.ModeAI, c.Mode)
	assert.Equal(t, int64(1), c.Version)
	assert.Empty(t, e.messages(t, "biz-a", "conv-1"))
}

func TestTenantIsolation(t *testing.T) {
	e := newEnv(t)
	bo := e.f.Resolve(t, "emp-bo")
	ctx := context.Background()

	_, foreignErr := e.m.Takeover(ctx, bo, "conv-1")
	_, missingErr := e.m.Takeover(ctx, bo, "conv-does-not-exist")
	require.ErrorIs(t, foreignErr, apperr.ErrNotFound)
	require.ErrorIs(t, missingErr, apperr.ErrNotFound)
	assert.Equal(t, missingErr.Error(), foreignErr.Error())

	_, err := e.m.GiveBackToAI(ctx, bo, "conv-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.m.Clear(ctx, bo, "conv-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.m.Get(ctx, bo, "conv-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.m.ListMessages(ctx, bo, "conv-1", 10)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, int64(1), e.conversation(t, "biz-a", "conv-1").Version)
	assert.Empty(t, e.messages(t, "biz-a", "conv-1"))
}

func TestZeroContextIsUnauthenticated(t *testing.T) {
	e := newEnv(t)
	_, err := e.m.Takeover(context.Background(), guard.Context{}, "conv-1")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestConcurrentTakeovers_OneWinner(t *testing.T) {
	e := newEnv(t)
	olga := e.f.Resolve(t, "emp-olga")
	ivan := e.f.Resolve(t, "emp-ivan")

	var arrived sync.WaitGroup
	arrived.Add(2)
	var calls atomic.Int32
	e.repo.BeforeApply = func() {
		if calls.Add(1) <= 2 {
			arrived.Done()
			arrived.Wait()
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, gctx := range []guard.Context{olga, ivan} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.m.Takeover(context.Background(), gctx, "conv-1")
		}()
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperr.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	c := e.conversation(t, "biz-a", "conv-1")
	assert.Equal(t, int64(2), c.Version)
	require.NoError(t, c.Validate())
	assert.Len(t, e.messages(t, "biz-a", "conv-1"), 1)
}

func TestAuditFailureRollsBack(t *testing.T) {
	e := newEnv(t)
	e.repo.FailAudit = errors.New("messages: disk full")

	_, err := e.m.Takeover(context.Background(), e.f.Resolve(t, "emp-olga"), "conv-1")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	c := e.conversation(t, "biz-a", "conv-1")
	assert.Equal(t, domain.ModeAI, c.Mode)
	assert.Empty(t, c.AssignedEmployeeID)
	assert.Equal(t, int64(1), c.Version)
	assert.Empty(t, e.messages(t, "biz-a", "conv-1"))
	select {
	case ev := <-e.pub.ch:
		t.Fatalf("event published for a failed transition: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStorageTimeout(t *testing.T) {
	e := newEnv(t, handoff.WithTimeout(20*time.Millisecond))
	olga := e.f.Resolve(t, "emp-olga")
	e.repo.Delay = time.Second

	_, err := e.m.Takeover(context.Background(), olga, "conv-1")
	assert.ErrorIs(t, err, apperr.ErrTimeout)
}

func TestGetAndListMessages(t *testing.T) {
	e := newEnv(t)
	olga := e.f.Resolve(t, "emp-olga")
	ctx := context.Background()
	_, err := e.m.Takeover(ctx, olga, "conv-1")
	require.NoError(t, err)

	c, err := e.m.Get(ctx, olga, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "emp-olga", c.AssignedEmployeeID)

	msgs, err := e.m.ListMessages(ctx, olga, "conv-1", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = e.m.ListMessages(ctx, e.f.Resolve(t, "emp-ivan"), "conv-1", 10)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

// An operator takes a conversation from the AI, answers, and hands it back.
func TestScenario_TakeoverAndHandBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	olga := e.f.Resolve(t, "emp-olga")

	_, err := e.m.Takeover(ctx, olga, "conv-1")
	require.NoError(t, err)
	require.NoError(t, e.repo.AppendMessage(ctx, &domain.Message{
		ID: "m-agent", ConversationID: "conv-1", BusinessID: "biz-a",
		SenderType: domain.SenderAgent, SenderID: "emp-olga", Content: "Happy to help",
		CreatedAt: time.Now().UTC(),
	}))
	c, err := e.m.GiveBackToAI(ctx, olga, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeAI, c.Mode)

	var system []string
	for _, m := range e.messages(t, "biz-a", "conv-1") {
		if m.SenderType == domain.SenderSystem {
			system = append(system, m.Content)
		}
	}
	assert.Equal(t, []string{"Olga joined the conversation", "Olga handed conversation back to AI"}, system)
	published := []events.Type{e.nextEvent(t).Type, e.nextEvent(t).Type}
	assert.ElementsMatch(t, []events.Type{events.TypeTakenOver, events.TypeHandedBack}, published)
}

// An operator of another business guesses a conversation id and learns nothing.
func TestScenario_CrossTenantProbe(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	bo := e.f.Resolve(t, "emp-bo")

	_, err := e.m.Get(ctx, bo, "conv-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = e.m.Takeover(ctx, bo, "conv-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	own, err := e.m.Takeover(ctx, bo, "conv-b")
	require.NoError(t, err)
	assert.Equal(t, "biz-b", own.BusinessID)
	assert.Equal(t, domain.ModeAI, e.conversation(t, "biz-a", "conv-1").Mode)
}
