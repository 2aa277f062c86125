package organizer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"slate/internal/logging"
	"slate/internal/organizer"
	"slate/internal/pipeline"
	"slate/internal/services"
	"slate/internal/staging"
	"slate/internal/testsupport"
)

func newDeliverableResult(t *testing.T, stagingDir string) pipeline.Result {
	t.Helper()

	ws := staging.NewWorkspace(stagingDir, "job-1")
	if err := ws.Create(); err != nil {
		t.Fatalf("create workspace: %v", err)
	}

	paths := []string{
		filepath.Join(ws.EncodedDir, "movie_part1.mp4"),
		filepath.Join(ws.EncodedDir, "movie_part2.mp4"),
		filepath.Join(ws.ThumbsDir, "movie.jpg"),
	}
	for _, path := range paths {
		testsupport.WriteFile(t, path, 2048)
	}

	return pipeline.Result{
		JobID:     "job-1",
		Source:    "/inbox/movie.mkv",
		Workspace: ws,
		Artifacts: []pipeline.Artifact{
			{Path: paths[0], Name: "movie_part1.mp4", Kind: pipeline.ArtifactVideo, SizeBytes: 2048, PartIndex: 1, TotalParts: 2},
			{Path: paths[1], Name: "movie_part2.mp4", Kind: pipeline.ArtifactVideo, SizeBytes: 2048, PartIndex: 2, TotalParts: 2},
			{Path: paths[2], Name: "movie.jpg", Kind: pipeline.ArtifactThumbnail, SizeBytes: 2048},
		},
	}
}

func TestDeliverMovesArtifactsAndRemovesWorkspace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := newDeliverableResult(t, cfg.Paths.StagingDir)
	org := organizer.New(cfg, logging.NewNop())

	delivered, err := org.Deliver(context.Background(), result)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	want := []string{
		filepath.Join(cfg.Paths.LibraryDir, "movie", "movie_part1.mp4"),
		filepath.Join(cfg.Paths.LibraryDir, "movie", "movie_part2.mp4"),
		filepath.Join(cfg.Paths.LibraryDir, "movie", "movie.jpg"),
	}
	if len(delivered) != len(want) {
		t.Fatalf("delivered %d paths, want %d", len(delivered), len(want))
	}
	for i, path := range want {
		if delivered[i] != path {
			t.Errorf("delivered[%d] = %q, want %q", i, delivered[i], path)
		}
		if _, statErr := os.Stat(path); statErr != nil {
			t.Errorf("delivered file missing: %v", statErr)
		}
	}

	if _, err := os.Stat(result.Workspace.Root); !os.IsNotExist(err) {
		t.Error("workspace should be removed after delivery")
	}
}

func TestDeliverFailureLeavesRemainingArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := newDeliverableResult(t, cfg.Paths.StagingDir)
	// Break the second artifact so the first succeeds and the rest stall.
	if err := os.Remove(result.Artifacts[1].Path); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}

	org := organizer.New(cfg, logging.NewNop())
	delivered, err := org.Deliver(context.Background(), result)
	if !errors.Is(err, services.ErrDelivery) {
		t.Fatalf("expected delivery error, got %v", err)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected 1 delivered path before failure, got %d", len(delivered))
	}

	// Workspace must survive for inspection, thumbnail included.
	if _, statErr := os.Stat(result.Workspace.Root); statErr != nil {
		t.Errorf("workspace should survive failed delivery: %v", statErr)
	}
	if _, statErr := os.Stat(result.Artifacts[2].Path); statErr != nil {
		t.Errorf("undelivered artifact should remain: %v", statErr)
	}
}

func TestDeliverValidatesInputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, logging.NewNop())

	if _, err := org.Deliver(context.Background(), pipeline.Result{Source: "x.mkv"}); !errors.Is(err, services.ErrValidation) {
		t.Errorf("expected validation error for empty artifact list, got %v", err)
	}

	cfg.Paths.LibraryDir = ""
	result := newDeliverableResult(t, cfg.Paths.StagingDir)
	if _, err := org.Deliver(context.Background(), result); !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("expected configuration error without library dir, got %v", err)
	}
}

func TestMoveToReviewAllocatesUniqueNames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, logging.NewNop())

	inbox := t.TempDir()
	first := filepath.Join(inbox, "movie.mkv")
	second := filepath.Join(inbox, "movie.mkv")

	testsupport.WriteFile(t, first, 128)
	firstTarget, err := org.MoveToReview(context.Background(), first)
	if err != nil {
		t.Fatalf("MoveToReview: %v", err)
	}
	if firstTarget != filepath.Join(cfg.Paths.ReviewDir, "movie.mkv") {
		t.Errorf("first target = %q", firstTarget)
	}

	testsupport.WriteFile(t, second, 128)
	secondTarget, err := org.MoveToReview(context.Background(), second)
	if err != nil {
		t.Fatalf("MoveToReview second: %v", err)
	}
	if secondTarget != filepath.Join(cfg.Paths.ReviewDir, "movie-1.mkv") {
		t.Errorf("second target = %q", secondTarget)
	}
	for _, path := range []string{firstTarget, secondTarget} {
		if _, statErr := os.Stat(path); statErr != nil {
			t.Errorf("review file missing: %v", statErr)
		}
	}
}

func TestOrganizerHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, logging.NewNop())
	if health := org.HealthCheck(context.Background()); !health.Ready {
		t.Errorf("expected healthy organizer: %s", health.Detail)
	}

	cfg.Paths.LibraryDir = "  "
	if health := org.HealthCheck(context.Background()); health.Ready {
		t.Error("expected unhealthy organizer without library dir")
	}

	nilOrg := organizer.New(nil, logging.NewNop())
	if health := nilOrg.HealthCheck(context.Background()); health.Ready {
		t.Error("expected unhealthy organizer without config")
	}
}
