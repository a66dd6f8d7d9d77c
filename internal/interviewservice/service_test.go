package interviewservice

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/jobpilot/internal/apperr"
	"github.com/starford/jobpilot/internal/store"
)

func testService(t *testing.T) *Service {
	t.Helper()
	s, err := store.Open(context.Background(), store.Options{Dir: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	return New(s)
}

func TestCreateGetUpdate(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, store.Interview{Title: "Backend", Company: "Acme", Tags: store.Tags{"go"}})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, store.StatusCompleted, created.Status)

	updated, err := svc.Update(ctx, created.ID, store.Interview{Title: "Backend II", Status: store.StatusReviewed})
	require.NoError(t, err)
	assert.Equal(t, created.Date, updated.Date, "update keeps the creation date")

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Backend II", got.Title)
	assert.Equal(t, store.StatusReviewed, got.Status)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetMissing(t *testing.T) {
	svc := testService(t)
	_, err := svc.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = svc.Update(context.Background(), "nope", store.Interview{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDetailAndTranscript(t *testing.T) {
	svc := testService(t)
	ctx := context.Background()

	iv, err := svc.Create(ctx, store.Interview{Title: "Frontend"})
	require.NoError(t, err)

	_, err = svc.AddVideo(ctx, iv.ID, []byte("12345"), "")
	require.NoError(t, err)

	trID, err := svc.SetTranscript(ctx, iv.ID, "first")
	require.NoError(t, err)
	again, err := svc.SetTranscript(ctx, iv.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, trID, again, "an existing transcript is updated in place")

	d, err := svc.Detail(ctx, iv.ID)
	require.NoError(t, err)
	require.NotNil(t, d.Transcript)
	assert.Equal(t, "second", d.Transcript.Content)
	require.Len(t, d.Videos, 1)
	assert.Equal(t, 5, d.Videos[0].Size)

	tr, err := svc.UpdateTranscript(ctx, trID, "third")
	require.NoError(t, err)
	assert.Equal(t, "third", tr.Content)

	require.NoError(t, svc.Delete(ctx, iv.ID))
	_, err = svc.Video(ctx, iv.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = svc.Transcript(ctx, iv.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestAddVideoRequiresInterview(t *testing.T) {
	svc := testService(t)
	_, err := svc.AddVideo(context.Background(), "ghost", []byte("x"), "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
