package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/starford/jobpilot/internal/apperr"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenCreatesCollections(t *testing.T) {
	s := testStore(t)
	db, err := sqlx.Open("sqlite3", s.Path())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, table := range []string{Interviews, Videos, Transcripts} {
		var n int
		if err := db.Get(&n, `SELECT count(*) FROM `+table); err != nil {
			t.Fatalf("%s missing: %v", table, err)
		}
	}
	var indexes []string
	if err := db.Select(&indexes, `SELECT name FROM sqlite_master WHERE type = 'index' AND name NOT LIKE 'sqlite_%' ORDER BY name`); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"interviews_company", "interviews_date",
		"transcripts_createdAt", "transcripts_interviewId",
		"videos_createdAt", "videos_interviewId",
	}
	if len(indexes) != len(want) {
		t.Fatalf("indexes = %v, want %v", indexes, want)
	}
	for i := range want {
		if indexes[i] != want[i] {
			t.Errorf("index[%d] = %q, want %q", i, indexes[i], want[i])
		}
	}
	var version int
	if err := db.Get(&version, `PRAGMA user_version`); err != nil {
		t.Fatal(err)
	}
	if version != DefaultVersion {
		t.Errorf("user_version = %d, want %d", version, DefaultVersion)
	}
}

func TestOpenTwiceIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := Open(ctx, Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.SaveInterview(ctx, Interview{Title: "first"})
	if err != nil {
		t.Fatal(err)
	}

	again, err := Open(ctx, Options{Dir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := again.InterviewByID(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("InterviewByID after reopen = %v, %v", got, err)
	}
}

func TestOpenRefusesNewerVersion(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(context.Background(), Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	db, err := sqlx.Open("sqlite3", s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`PRAGMA user_version = 7`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	_, err = Open(context.Background(), Options{Dir: dir})
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestOpenUnknownVersion(t *testing.T) {
	_, err := Open(context.Background(), Options{Dir: t.TempDir(), Version: 2})
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestSaveInterviewAssignsIDAndDefaults(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.SaveInterview(ctx, Interview{Title: "Backend", Company: "Acme", Tags: Tags{"go", "sql"}})
	if err != nil {
		t.Fatalf("SaveInterview: %v", err)
	}
	if id == "" {
		t.Fatal("expected an id")
	}
	got, err := s.InterviewByID(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("InterviewByID = %v, %v", got, err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.Date.IsZero() {
		t.Error("date was not stamped")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "sql" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestSaveInterviewUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := Interview{Title: "v1", Company: "Acme"}
	id, err := s.SaveInterview(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	stored, _ := s.InterviewByID(ctx, id)
	stored.Title = "v2"
	stored.Company = ""
	stored.Status = StatusReviewed

	id2, err := s.SaveInterview(ctx, *stored)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id2 != id {
		t.Fatalf("upsert returned %q, want %q", id2, id)
	}
	all, err := s.AllInterviews(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("len(all) = %d, want 1", len(all))
	}
	if all[0].Title != "v2" || all[0].Company != "" || all[0].Status != StatusReviewed {
		t.Errorf("record not replaced: %+v", all[0])
	}
}

func TestSaveInterviewRejectsUnknownStatus(t *testing.T) {
	s := testStore(t)
	_, err := s.SaveInterview(context.Background(), Interview{Title: "x", Status: "archived"})
	if !errors.Is(err, apperr.ErrWriteFailed) {
		t.Fatalf("err = %v, want ErrWriteFailed", err)
	}
}

func TestInterviewByIDMissing(t *testing.T) {
	s := testStore(t)
	got, err := s.InterviewByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestTranscriptRoundTripAndUpdate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.SaveTranscript(ctx, NewTranscript{InterviewID: "X", Content: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.TranscriptByInterviewID(ctx, "X")
	if err != nil || got == nil {
		t.Fatalf("TranscriptByInterviewID = %v, %v", got, err)
	}
	if got.Content != "abc" || got.ID != id {
		t.Errorf("got %+v", got)
	}

	if err := s.UpdateTranscript(ctx, id, "xyz"); err != nil {
		t.Fatalf("UpdateTranscript: %v", err)
	}
	got, _ = s.TranscriptByID(ctx, id)
	if got == nil || got.Content != "xyz" {
		t.Errorf("after update: %+v", got)
	}
}

func TestUpdateTranscriptNotFound(t *testing.T) {
	s := testStore(t)
	err := s.UpdateTranscript(context.Background(), "missing", "x")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if errors.Is(err, apperr.ErrWriteFailed) {
		t.Error("not-found must not be reported as a write failure")
	}
}

func TestVideoLookup(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.SaveVideo(ctx, NewVideo{InterviewID: "iv", Blob: []byte{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveVideo(ctx, NewVideo{InterviewID: "iv", Blob: []byte{4}}); err != nil {
		t.Fatal(err)
	}

	got, err := s.VideoByInterviewID(ctx, "iv")
	if err != nil || got == nil {
		t.Fatalf("VideoByInterviewID = %v, %v", got, err)
	}
	if got.ID != first || len(got.Blob) != 3 {
		t.Errorf("got %s (%d bytes), want %s", got.ID, len(got.Blob), first)
	}
	all, _ := s.VideosByInterviewID(ctx, "iv")
	if len(all) != 2 {
		t.Errorf("len = %d, want 2", len(all))
	}
	none, err := s.VideoByInterviewID(ctx, "other")
	if err != nil || none != nil {
		t.Errorf("expected nil for unknown interview, got %v, %v", none, err)
	}
}

func TestDeleteInterviewCascades(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, _ := s.SaveInterview(ctx, Interview{Title: "to delete"})
	keep, _ := s.SaveInterview(ctx, Interview{Title: "keep"})
	for i := 0; i < 3; i++ {
		if _, err := s.SaveVideo(ctx, NewVideo{InterviewID: id, Blob: []byte("v")}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.SaveTranscript(ctx, NewTranscript{InterviewID: id, Content: "t"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveTranscript(ctx, NewTranscript{InterviewID: keep, Content: "k"}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteInterview(ctx, id); err != nil {
		t.Fatalf("DeleteInterview: %v", err)
	}
	if err := s.DeleteInterview(ctx, id); err != nil {
		t.Fatalf("second DeleteInterview: %v", err)
	}

	if got, _ := s.InterviewByID(ctx, id); got != nil {
		t.Error("interview still present")
	}
	if v, _ := s.VideoByInterviewID(ctx, id); v != nil {
		t.Error("video still present")
	}
	if tr, _ := s.TranscriptByInterviewID(ctx, id); tr != nil {
		t.Error("transcript still present")
	}
	if tr, _ := s.TranscriptByInterviewID(ctx, keep); tr == nil {
		t.Error("unrelated transcript was deleted")
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestPing(t *testing.T) {
	s := testStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
