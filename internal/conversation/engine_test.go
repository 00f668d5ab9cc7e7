package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/rightsdesk/internal/assistant"
	"github.com/kiranshivaraju/rightsdesk/internal/assistant/mock"
	"github.com/kiranshivaraju/rightsdesk/internal/catalog"
	"github.com/kiranshivaraju/rightsdesk/internal/config"
	"github.com/kiranshivaraju/rightsdesk/internal/sched"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

const musicPrompt = "Create an app that analyzes music files"

type eventLog struct {
	events []models.Event
}

func (l *eventLog) Publish(ev models.Event) models.Event {
	l.events = append(l.events, ev)
	return ev
}

func (l *eventLog) ofType(t models.EventType) []models.Event {
	var out []models.Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// flakyScheduler fails the nth After registration.
type flakyScheduler struct {
	*sched.Virtual
	failOn int
	calls  int
}

func (f *flakyScheduler) After(d time.Duration, fn func()) (sched.Handle, error) {
	f.calls++
	if f.calls == f.failOn {
		return 0, sched.ErrUnavailable
	}
	return f.Virtual.After(d, fn)
}

func templateExplainer(t *testing.T) Explainer {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	r, err := assistant.NewResponder(config.AssistantConfig{Provider: "template"}, cat)
	require.NoError(t, err)
	return assistant.NewService(r, time.Second)
}

func newEngine(t *testing.T, s sched.Scheduler) (*Engine, *eventLog) {
	t.Helper()
	log := &eventLog{}
	return New(uuid.New(), DefaultConfig(), s, templateExplainer(t), log), log
}

func TestSubmit_StagedReply(t *testing.T) {
	clock := sched.NewVirtual(epoch)
	e, log := newEngine(t, clock)

	user, err := e.Submit(context.Background(), musicPrompt)
	require.NoError(t, err)
	assert.Equal(t, 0, user.Sequence)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Equal(t, musicPrompt, user.Text)
	assert.Equal(t, models.ConversationProcessing, e.State())

	clock.Advance(999 * time.Millisecond)
	require.Len(t, e.Transcript(), 1)

	clock.Advance(time.Millisecond)
	turns := e.Transcript()
	require.Len(t, turns, 2)
	assert.Equal(t, 1, turns[1].Sequence)
	assert.Equal(t, models.RoleAssistant, turns[1].Role)
	assert.Equal(t, models.TurnKindExplanation, turns[1].Kind)
	assert.Equal(t, assistant.DefaultReply, turns[1].Text)
	assert.Equal(t, epoch.Add(time.Second), turns[1].CreatedAt)

	clock.Advance(1999 * time.Millisecond)
	require.Len(t, e.Transcript(), 2)

	clock.Advance(time.Millisecond)
	turns = e.Transcript()
	require.Len(t, turns, 3)
	confirm := turns[2]
	assert.Equal(t, 2, confirm.Sequence)
	assert.Equal(t, models.TurnKindConfirmation, confirm.Kind)
	assert.Equal(t, "This new action will be enabled for you. An email will confirm this action and should hit your inbox in 15 mins. Click on it to authorize your new permissions.", confirm.Text)
	assert.Equal(t, epoch.Add(3*time.Second), confirm.CreatedAt)
	assert.Equal(t, models.ConversationAwaitingInput, e.State())

	perms := log.ofType(models.EventPermissionRequested)
	require.Len(t, perms, 1)
	n := perms[0].Notification
	require.NotNil(t, n)
	assert.Equal(t, 2, n.TurnSequence)
	assert.Equal(t, musicPrompt, n.Request)
	assert.Equal(t, 15, n.WindowMins)
	assert.Equal(t, NotificationChannel, n.Channel)
	assert.Equal(t, epoch.Add(3*time.Second+15*time.Minute), n.DueBy)
	assert.Len(t, log.ofType(models.EventTurnAppended), 3)
}

func TestSubmit_EmptyTextIsRejected(t *testing.T) {
	clock := sched.NewVirtual(epoch)
	e, log := newEngine(t, clock)

	for _, text := range []string{"", "   \n\t"} {
		_, err := e.Submit(context.Background(), text)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
		assert.ErrorIs(t, err, models.ErrValidation)
	}

	assert.Empty(t, e.Transcript())
	assert.Equal(t, 0, clock.Pending())
	assert.Empty(t, log.events)
}

func TestSubmit_InterleavedRequestsKeepOrder(t *testing.T) {
	clock := sched.NewVirtual(epoch)
	e, _ := newEngine(t, clock)

	_, err := e.Submit(context.Background(), "first request")
	require.NoError(t, err)
	clock.Advance(500 * time.Millisecond)
	_, err = e.Submit(context.Background(), "second request")
	require.NoError(t, err)

	clock.Advance(10 * time.Second)

	turns := e.Transcript()
	require.Len(t, turns, 6)
	wantKinds := []string{
		models.TurnKindRequest,
		models.TurnKindRequest,
		models.TurnKindExplanation,
		models.TurnKindExplanation,
		models.TurnKindConfirmation,
		models.TurnKindConfirmation,
	}
	for i, turn := range turns {
		assert.Equal(t, i, turn.Sequence)
		assert.Equal(t, wantKinds[i], turn.Kind)
		if i > 0 {
			assert.False(t, turn.CreatedAt.Before(turns[i-1].CreatedAt))
		}
	}
	assert.Equal(t, "first request", turns[0].Text)
	assert.Equal(t, "second request", turns[1].Text)
}

func TestClose_DropsPendingReplies(t *testing.T) {
	clock := sched.NewVirtual(epoch)
	e, log := newEngine(t, clock)

	_, err := e.Submit(context.Background(), musicPrompt)
	require.NoError(t, err)
	clock.Advance(time.Second)
	require.Len(t, e.Transcript(), 2)

	e.Close()
	e.Close()
	assert.Equal(t, 0, clock.Pending())

	clock.Advance(time.Minute)
	assert.Len(t, e.Transcript(), 2)
	assert.Empty(t, log.ofType(models.EventPermissionRequested))
	assert.Len(t, log.ofType(models.EventConversationClosed), 1)

	_, err = e.Submit(context.Background(), "again")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Len(t, e.Transcript(), 2)
}

func TestSubmit_SchedulerUnavailable(t *testing.T) {
	clock := sched.NewVirtual(epoch)
	e, _ := newEngine(t, clock)
	clock.Fail(errors.New("clock stopped"))

	_, err := e.Submit(context.Background(), musicPrompt)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScheduling)
	assert.ErrorIs(t, err, models.ErrScheduling)
	assert.Empty(t, e.Transcript())
}

func TestSubmit_SecondRegistrationFailureLeavesNothing(t *testing.T) {
	clock := &flakyScheduler{Virtual: sched.NewVirtual(epoch), failOn: 2}
	e, log := newEngine(t, clock)

	_, err := e.Submit(context.Background(), musicPrompt)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScheduling)
	assert.Empty(t, e.Transcript())
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, 0, e.Pending())

	clock.Advance(time.Minute)
	assert.Empty(t, e.Transcript())
	assert.Empty(t, log.events)
}

func TestSubmit_ResponderFailureKeepsCadence(t *testing.T) {
	clock := sched.NewVirtual(epoch)
	svc := assistant.NewService(mock.NewFailingResponder(errors.New("model offline")), time.Second)
	e := New(uuid.New(), DefaultConfig(), clock, svc, nil)

	_, err := e.Submit(context.Background(), "anything")
	require.NoError(t, err)
	clock.Advance(3 * time.Second)

	turns := e.Transcript()
	require.Len(t, turns, 3)
	assert.Equal(t, assistant.DefaultReply, turns[1].Text)
}

func TestSubmit_ZeroDelaysStillOrdered(t *testing.T) {
	clock := sched.NewVirtual(epoch)
	e := New(uuid.New(), Config{NotifyWindow: time.Minute}, clock, templateExplainer(t), nil)

	_, err := e.Submit(context.Background(), musicPrompt)
	require.NoError(t, err)
	clock.Advance(0)

	turns := e.Transcript()
	require.Len(t, turns, 3)
	assert.Equal(t, models.TurnKindExplanation, turns[1].Kind)
	assert.Equal(t, models.TurnKindConfirmation, turns[2].Kind)
	assert.Contains(t, turns[2].Text, "in 1 min.")
}

func TestTranscript_ReturnsCopy(t *testing.T) {
	clock := sched.NewVirtual(epoch)
	e, _ := newEngine(t, clock)

	_, err := e.Submit(context.Background(), musicPrompt)
	require.NoError(t, err)

	turns := e.Transcript()
	turns[0].Text = "changed"
	assert.Equal(t, musicPrompt, e.Transcript()[0].Text)
}

func TestConfirmationText_Window(t *testing.T) {
	tests := []struct {
		window time.Duration
		want   string
	}{
		{15 * time.Minute, "15 mins"},
		{time.Minute, "1 min"},
		{2 * time.Hour, "120 mins"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		assert.Contains(t, ConfirmationText(tt.window), "inbox in "+tt.want+".")
	}
}
