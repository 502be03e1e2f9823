package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/backend/internal/content"
	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/internal/registrations"
)

type fakeContent struct {
	conf *models.Conference
}

func (f *fakeContent) Conference(slug string) (*models.Conference, error) {
	if f.conf == nil || f.conf.Slug != slug {
		return nil, content.ErrConferenceNotFound
	}
	return f.conf, nil
}

func (f *fakeContent) ActiveConferences() ([]models.Conference, error) {
	if f.conf == nil || !f.conf.Active {
		return nil, nil
	}
	return []models.Conference{*f.conf}, nil
}

func (f *fakeContent) SessionByID(slug, id string) (*models.Session, error) {
	conf, err := f.Conference(slug)
	if err != nil {
		return nil, err
	}
	for i := range conf.Sessions {
		if conf.Sessions[i].ID == id {
			return &conf.Sessions[i], nil
		}
	}
	return nil, content.ErrSessionNotFound
}

type fakeCounter struct {
	counts map[string]int
	calls  int
}

func (f *fakeCounter) CountBySession(_ context.Context, _, sessionID string) (int, error) {
	f.calls++
	return f.counts[sessionID], nil
}

func (f *fakeCounter) CountsByConference(_ context.Context, _ string) ([]registrations.SessionCounts, error) {
	f.calls++
	var out []registrations.SessionCounts
	for id, n := range f.counts {
		out = append(out, registrations.SessionCounts{SessionID: id, Total: n})
	}
	return out, nil
}

type fakeCache struct {
	vals map[string]int
	sets int
}

func (f *fakeCache) Get(_ context.Context, key string) (int, bool) {
	n, ok := f.vals[key]
	return n, ok
}

func (f *fakeCache) Set(_ context.Context, key string, n int, _ time.Duration) {
	if f.vals == nil {
		f.vals = make(map[string]int)
	}
	f.vals[key] = n
	f.sets++
}

func intPtr(n int) *int { return &n }

func testSource() *fakeContent {
	return &fakeContent{conf: &models.Conference{
		Slug:   "medcon-2026",
		Name:   "MedCon 2026",
		Active: true,
		Sessions: []models.Session{
			{ID: "s1", ConferenceSlug: "medcon-2026", Title: "Opening", Capacity: intPtr(100)},
			{ID: "s2", ConferenceSlug: "medcon-2026", Title: "Cardiology", Capacity: intPtr(2)},
			{ID: "s3", ConferenceSlug: "medcon-2026", Title: "Hallway Track"},
		},
	}}
}

func TestListWithCapacity(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int{"s1": 40, "s2": 2}}
	svc := NewService(testSource(), counter, nil, 0, nil)

	list, err := svc.ListWithCapacity(context.Background(), "medcon-2026")
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, 40, list[0].CapacityStatus.Registered)
	assert.Equal(t, 60, *list[0].CapacityStatus.Available)
	assert.False(t, list[0].CapacityStatus.IsFull)

	assert.True(t, list[1].CapacityStatus.IsFull)
	assert.Equal(t, 0, *list[1].CapacityStatus.Available)

	// Unlimited session: no capacity, never full.
	assert.Nil(t, list[2].CapacityStatus.Capacity)
	assert.Nil(t, list[2].CapacityStatus.Available)
	assert.False(t, list[2].CapacityStatus.IsFull)
}

func TestListWithCapacityUnknownConference(t *testing.T) {
	svc := NewService(testSource(), &fakeCounter{}, nil, 0, nil)
	_, err := svc.ListWithCapacity(context.Background(), "nope")
	assert.ErrorIs(t, err, content.ErrConferenceNotFound)
}

func TestCapacityUsesCache(t *testing.T) {
	counter := &fakeCounter{counts: map[string]int{"s1": 7}}
	cache := &fakeCache{}
	svc := NewService(testSource(), counter, cache, 30*time.Second, nil)

	st, err := svc.Capacity(context.Background(), "medcon-2026", "s1")
	require.NoError(t, err)
	assert.Equal(t, 7, st.Registered)
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from the cache even after the database moved on.
	counter.counts["s1"] = 50
	st, err = svc.Capacity(context.Background(), "medcon-2026", "s1")
	require.NoError(t, err)
	assert.Equal(t, 7, st.Registered)
	assert.Equal(t, 1, counter.calls)
}

func TestCapacityUnknownSession(t *testing.T) {
	svc := NewService(testSource(), &fakeCounter{}, nil, 0, nil)
	_, err := svc.Capacity(context.Background(), "medcon-2026", "nope")
	assert.ErrorIs(t, err, content.ErrSessionNotFound)
}
