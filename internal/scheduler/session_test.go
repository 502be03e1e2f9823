package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/backend/internal/models"
)

type fakeConfirmedLister struct {
	regs []models.Registration
}

func (f *fakeConfirmedLister) ListConfirmedBySession(_ context.Context, slug, sessionID string) ([]models.Registration, error) {
	var out []models.Registration
	for _, r := range f.regs {
		if r.ConferenceSlug == slug && r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeSessionMailer records sends and doubles as the dedup store, the same
// coupling the real mailer has with the email log.
type fakeSessionMailer struct {
	sent map[string]int // registrationID|emailType -> sends
}

func newFakeSessionMailer() *fakeSessionMailer {
	return &fakeSessionMailer{sent: make(map[string]int)}
}

func (m *fakeSessionMailer) key(id uuid.UUID, emailType string) string {
	return id.String() + "|" + emailType
}

func (m *fakeSessionMailer) SendSessionReminder(_ context.Context, _ *models.Conference, reg *models.Registration, _ *models.Session, emailType string) bool {
	m.sent[m.key(reg.ID, emailType)]++
	return true
}

func (m *fakeSessionMailer) HasEmailOfType(_ context.Context, id uuid.UUID, emailType string) (bool, error) {
	return m.sent[m.key(id, emailType)] > 0, nil
}

func sessionFixture(start time.Time) (*SessionSweeper, *fakeSessionMailer, *time.Time, models.Registration) {
	reg := models.Registration{
		ID:             uuid.New(),
		ConferenceSlug: "medcon-2026",
		SessionID:      "s1",
		Email:          "dana@example.com",
		Status:         models.StatusConfirmed,
	}
	content := &fakeContent{confs: []models.Conference{{
		Slug: "medcon-2026", Name: "MedCon 2026", Active: true,
		Sessions: []models.Session{{ID: "s1", ConferenceSlug: "medcon-2026", Title: "Opening", StartTime: start, EndTime: start.Add(time.Hour)}},
	}}}
	mailer := newFakeSessionMailer()
	now := start.Add(-48 * time.Hour)
	clock := &now
	sw := NewSessionSweeper(content, &fakeConfirmedLister{regs: []models.Registration{reg}}, mailer, mailer, time.Minute, nil).
		WithClock(func() time.Time { return *clock })
	return sw, mailer, clock, reg
}

func TestSessionSweepMilestones(t *testing.T) {
	start := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	sw, mailer, clock, reg := sessionFixture(start)

	// Far out: nothing due.
	sw.Sweep(context.Background())
	assert.Empty(t, mailer.sent)

	// 24 hours before start.
	*clock = start.Add(-24 * time.Hour)
	sw.Sweep(context.Background())
	assert.Equal(t, 1, mailer.sent[mailer.key(reg.ID, models.EmailTypeSessionReminder24h)])
	assert.Zero(t, mailer.sent[mailer.key(reg.ID, models.EmailTypeSessionReminder1h)])

	// Next tick in the same window: the email log dedups it.
	*clock = clock.Add(time.Minute)
	sw.Sweep(context.Background())
	assert.Equal(t, 1, mailer.sent[mailer.key(reg.ID, models.EmailTypeSessionReminder24h)])

	// One hour before start: the second milestone, independent of the first.
	*clock = start.Add(-time.Hour)
	sw.Sweep(context.Background())
	assert.Equal(t, 1, mailer.sent[mailer.key(reg.ID, models.EmailTypeSessionReminder1h)])
	assert.Equal(t, 1, mailer.sent[mailer.key(reg.ID, models.EmailTypeSessionReminder24h)])
}

func TestSessionSweepSkipsStartedSessions(t *testing.T) {
	start := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	sw, mailer, clock, _ := sessionFixture(start)

	*clock = start.Add(5 * time.Minute)
	sw.Sweep(context.Background())
	assert.Empty(t, mailer.sent)
}

func TestSessionSweepOnlyConfirmed(t *testing.T) {
	start := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	sw, mailer, clock, _ := sessionFixture(start)

	// Swap in a lister with no confirmed rows for the session.
	sw.regs = &fakeConfirmedLister{}
	*clock = start.Add(-24 * time.Hour)
	sw.Sweep(context.Background())
	assert.Empty(t, mailer.sent)
}

func TestInWindow(t *testing.T) {
	start := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		now   time.Time
		lead  time.Duration
		slack time.Duration
		want  bool
	}{
		{"exactly at lead", start.Add(-24 * time.Hour), 24 * time.Hour, time.Hour, true},
		{"early edge", start.Add(-25 * time.Hour), 24 * time.Hour, time.Hour, true},
		{"late edge", start.Add(-23 * time.Hour), 24 * time.Hour, time.Hour, true},
		{"too early", start.Add(-26 * time.Hour), 24 * time.Hour, time.Hour, false},
		{"too late", start.Add(-22 * time.Hour), 24 * time.Hour, time.Hour, false},
		{"after start", start.Add(time.Minute), time.Hour, time.Minute, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, inWindow(start, tc.now, tc.lead, tc.slack))
		})
	}
}

func TestSessionSweepMissedTickStillDelivers(t *testing.T) {
	start := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	sw, mailer, clock, reg := sessionFixture(start)

	// The sweeper was down around T-24h and comes back 40 minutes late;
	// the wide window still catches the milestone.
	*clock = start.Add(-24*time.Hour + 40*time.Minute)
	sw.Sweep(context.Background())
	require.Equal(t, 1, mailer.sent[mailer.key(reg.ID, models.EmailTypeSessionReminder24h)])
}
