package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/backend/config"
	"github.com/confera/backend/internal/models"
)

var testPolicy = config.RegistrationConfig{
	TokenTTL:              time.Hour,
	MaxReminders:          2,
	ReminderInterval:      4 * time.Hour,
	CancellationThreshold: 24 * time.Hour,
}

type fakeContent struct {
	confs []models.Conference
}

func (f *fakeContent) ActiveConferences() ([]models.Conference, error) {
	return f.confs, nil
}

// fakePendingStore mirrors the SQL eligibility predicates in memory.
type fakePendingStore struct {
	regs map[uuid.UUID]*models.Registration
}

func newFakePendingStore() *fakePendingStore {
	return &fakePendingStore{regs: make(map[uuid.UUID]*models.Registration)}
}

func (s *fakePendingStore) add(reg *models.Registration) *models.Registration {
	reg.ID = uuid.New()
	s.regs[reg.ID] = reg
	return reg
}

func (s *fakePendingStore) ReminderDue(_ context.Context, slug string, now time.Time, maxReminders int, interval time.Duration) ([]models.Registration, error) {
	var due []models.Registration
	for _, r := range s.regs {
		if r.ConferenceSlug != slug || r.Status != models.StatusPending {
			continue
		}
		if r.ConfirmationTokenExpires == nil || !r.ConfirmationTokenExpires.After(now) {
			continue
		}
		if r.ReminderCount >= maxReminders {
			continue
		}
		if r.LastReminderSentAt != nil && !r.LastReminderSentAt.Before(now.Add(-interval)) {
			continue
		}
		due = append(due, *r)
	}
	return due, nil
}

func (s *fakePendingStore) CancellationDue(_ context.Context, slug string, now time.Time, threshold time.Duration, maxReminders int) ([]models.Registration, error) {
	var due []models.Registration
	for _, r := range s.regs {
		if r.ConferenceSlug != slug || r.Status != models.StatusPending {
			continue
		}
		if r.ReminderCount < maxReminders {
			continue
		}
		if !r.RegisteredAt.Before(now.Add(-threshold)) {
			continue
		}
		due = append(due, *r)
	}
	return due, nil
}

func (s *fakePendingStore) MarkReminded(_ context.Context, id uuid.UUID, at time.Time) error {
	r := s.regs[id]
	r.ReminderCount++
	t := at
	r.LastReminderSentAt = &t
	return nil
}

func (s *fakePendingStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.regs, id)
	return nil
}

type fakeReminderMailer struct {
	sent map[uuid.UUID]int
	fail bool
}

func newFakeReminderMailer() *fakeReminderMailer {
	return &fakeReminderMailer{sent: make(map[uuid.UUID]int)}
}

func (m *fakeReminderMailer) SendConfirmationReminder(_ context.Context, _ *models.Conference, reg *models.Registration) bool {
	if m.fail {
		return false
	}
	m.sent[reg.ID]++
	return true
}

func pendingReg(slug string, registeredAt, tokenExpires time.Time) *models.Registration {
	token := "tok"
	exp := tokenExpires
	return &models.Registration{
		ConferenceSlug:           slug,
		SessionID:                "s1",
		Email:                    "dana@example.com",
		FullName:                 "Dana Osei",
		Status:                   models.StatusPending,
		ConfirmationToken:        &token,
		ConfirmationTokenExpires: &exp,
		RegisteredAt:             registeredAt,
	}
}

func confirmationFixture() (*ConfirmationSweeper, *fakePendingStore, *fakeReminderMailer, *time.Time) {
	store := newFakePendingStore()
	mailer := newFakeReminderMailer()
	content := &fakeContent{confs: []models.Conference{{Slug: "medcon-2026", Name: "MedCon 2026", Active: true}}}
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	sw := NewConfirmationSweeper(content, store, mailer, testPolicy, time.Hour, nil).
		WithClock(func() time.Time { return *clock })
	return sw, store, mailer, clock
}

func TestConfirmationSweepRemindersAndBudget(t *testing.T) {
	sw, store, mailer, clock := confirmationFixture()
	reg := store.add(pendingReg("medcon-2026", clock.Add(-5*time.Hour), clock.Add(30*time.Minute)))

	sw.Sweep(context.Background())
	assert.Equal(t, 1, mailer.sent[reg.ID])
	assert.Equal(t, 1, store.regs[reg.ID].ReminderCount)

	// Within the interval: nothing new.
	sw.Sweep(context.Background())
	assert.Equal(t, 1, mailer.sent[reg.ID])
}

func TestConfirmationSweepRespectsInterval(t *testing.T) {
	sw, store, mailer, clock := confirmationFixture()
	reg := store.add(pendingReg("medcon-2026", clock.Add(-5*time.Hour), clock.Add(10*time.Hour)))

	sw.Sweep(context.Background())
	require.Equal(t, 1, mailer.sent[reg.ID])

	*clock = clock.Add(5 * time.Hour)
	sw.Sweep(context.Background())
	assert.Equal(t, 2, mailer.sent[reg.ID])

	// Budget of two is exhausted; a third eligible window sends nothing.
	*clock = clock.Add(5 * time.Hour)
	sw.Sweep(context.Background())
	assert.Equal(t, 2, mailer.sent[reg.ID])
}

func TestConfirmationSweepExpiredTokenSkipped(t *testing.T) {
	sw, store, mailer, clock := confirmationFixture()
	reg := store.add(pendingReg("medcon-2026", clock.Add(-2*time.Hour), clock.Add(-time.Hour)))

	sw.Sweep(context.Background())
	assert.Zero(t, mailer.sent[reg.ID])
}

func TestConfirmationSweepReleasesExhaustedRows(t *testing.T) {
	sw, store, mailer, clock := confirmationFixture()
	reg := store.add(pendingReg("medcon-2026", clock.Add(-30*time.Hour), clock.Add(-29*time.Hour)))
	reg.ReminderCount = testPolicy.MaxReminders

	// Fresh pending row alongside stays untouched.
	fresh := store.add(pendingReg("medcon-2026", clock.Add(-10*time.Minute), clock.Add(50*time.Minute)))

	sw.Sweep(context.Background())
	assert.NotContains(t, store.regs, reg.ID)
	assert.Contains(t, store.regs, fresh.ID)
	assert.Zero(t, mailer.sent[reg.ID])
}

func TestConfirmationSweepFailedSendKeepsBudget(t *testing.T) {
	sw, store, mailer, clock := confirmationFixture()
	reg := store.add(pendingReg("medcon-2026", clock.Add(-time.Hour), clock.Add(10*time.Hour)))
	mailer.fail = true

	sw.Sweep(context.Background())
	assert.Zero(t, store.regs[reg.ID].ReminderCount)

	// Transport recovers; the reminder goes out on the next pass.
	mailer.fail = false
	sw.Sweep(context.Background())
	assert.Equal(t, 1, mailer.sent[reg.ID])
	assert.Equal(t, 1, store.regs[reg.ID].ReminderCount)
}
