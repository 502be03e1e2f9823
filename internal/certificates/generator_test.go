package certificates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	g := NewGenerator("Confera").WithClock(func() time.Time {
		return time.Date(2026, 6, 12, 0, 0, 0, 0, time.UTC)
	})

	pdf, err := g.Generate("Dana Osei", "MedCon 2026")
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestGenerateConcurrent(t *testing.T) {
	g := NewGenerator("Confera")
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := g.Generate("Dana Osei", "MedCon 2026")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-done)
	}
}
