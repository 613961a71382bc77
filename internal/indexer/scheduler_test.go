package indexer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler_RejectsInvalidSpec(t *testing.T) {
	r, _, _ := setupReconciler(t, nil)

	_, err := NewScheduler(r, "every now and then")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scan schedule")
}

func TestScheduler_RunsPasses(t *testing.T) {
	r, db, root := setupReconciler(t, nil)
	writeTree(t, root, "Movies/a.mp4")

	s, err := NewScheduler(r, "@every 1s")
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	s.Start()
	assert.False(t, s.Next().IsZero())

	require.Eventually(t, func() bool {
		return r.Stats().LastTrigger == TriggerSchedule
	}, 5*time.Second, 50*time.Millisecond)

	<-s.Stop().Done()

	catalogs, videos := countRows(t, db)
	assert.Equal(t, int64(1), catalogs)
	assert.Equal(t, int64(1), videos)
}
