package content

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/confera/backend/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func sampleConference() *models.Conference {
	start := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	cap1 := 100
	return &models.Conference{
		Slug:      "medcon-2025",
		Name:      "MedCon 2025",
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 2),
		Active:    true,
		Sessions: []models.Session{
			{ID: "s1", Title: "Opening Keynote", Room: "Main Hall", StartTime: start, EndTime: start.Add(time.Hour), Capacity: &cap1},
			{ID: "s2", Title: "Cardiology Update", Room: "Room B", StartTime: start.Add(90 * time.Minute), EndTime: start.Add(150 * time.Minute)},
		},
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveConference(sampleConference()))

	conf, err := s.Conference("medcon-2025")
	require.NoError(t, err)
	assert.Equal(t, "MedCon 2025", conf.Name)
	require.Len(t, conf.Sessions, 2)
	assert.Equal(t, "medcon-2025", conf.Sessions[0].ConferenceSlug)
	require.NotNil(t, conf.Sessions[0].Capacity)
	assert.Equal(t, 100, *conf.Sessions[0].Capacity)
	assert.Nil(t, conf.Sessions[1].Capacity)
}

func TestStoreConferenceNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Conference("nope")
	assert.ErrorIs(t, err, ErrConferenceNotFound)
}

func TestStoreSessionByID(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveConference(sampleConference()))

	sess, err := s.SessionByID("medcon-2025", "s2")
	require.NoError(t, err)
	assert.Equal(t, "Cardiology Update", sess.Title)

	_, err = s.SessionByID("medcon-2025", "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreActiveConferences(t *testing.T) {
	s := newTestStore(t)
	active := sampleConference()
	require.NoError(t, s.SaveConference(active))

	inactive := sampleConference()
	inactive.Slug = "medcon-2024"
	inactive.Active = false
	require.NoError(t, s.SaveConference(inactive))

	list, err := s.ActiveConferences()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "medcon-2025", list[0].Slug)
}

func TestStoreConcurrentSameSlugWrites(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveConference(sampleConference()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conf, err := s.Conference("medcon-2025")
			if err != nil {
				return
			}
			_ = s.SaveConference(conf)
		}()
	}
	wg.Wait()

	conf, err := s.Conference("medcon-2025")
	require.NoError(t, err)
	assert.Len(t, conf.Sessions, 2)
}
