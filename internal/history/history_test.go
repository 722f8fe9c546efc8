package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecord_AssignsIDAndTime(t *testing.T) {
	s := openMemory(t)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	e, err := s.Record(context.Background(), Entry{
		Kind:     KindFetch,
		Artifact: "aqi_2024-03-01T12.tif",
		Status:   StatusOK,
	})
	require.NoError(t, err)

	_, err = uuid.Parse(e.ID)
	assert.NoError(t, err)
	assert.Equal(t, fixed, e.CreatedAt)
}

func TestRecent_NewestFirstWithLimit(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, artifact := range []string{"a.tif", "b.tif", "c.csv"} {
		kind := KindFetch
		if i == 2 {
			kind = KindUpdate
		}
		_, err := s.Record(ctx, Entry{
			Kind:       kind,
			Artifact:   artifact,
			Status:     StatusOK,
			Duration:   1500 * time.Millisecond,
			ValidRatio: 0.5,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c.csv", all[0].Artifact)
	assert.Equal(t, KindUpdate, all[0].Kind)
	assert.Equal(t, 1500*time.Millisecond, all[0].Duration)
	assert.Equal(t, 0.5, all[0].ValidRatio)
	assert.Equal(t, base.Add(2*time.Hour), all[0].CreatedAt)

	two, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "b.tif", two[1].Artifact)
}

func TestRecord_FailureDetail(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	_, err := s.Record(ctx, Entry{Kind: KindFetch, Artifact: "x.tif", Status: StatusFailed, Detail: "no such key"})
	require.NoError(t, err)

	got, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatusFailed, got[0].Status)
	assert.Equal(t, "no such key", got[0].Detail)
}

func TestOpen_FilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Record(ctx, Entry{Kind: KindUpdate, Artifact: "aqi.csv", Status: StatusOK})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
