package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slate/internal/config"
	"slate/internal/encoding"
	"slate/internal/logging"
	"slate/internal/media/analysis"
	"slate/internal/media/ffprobe"
	"slate/internal/pipeline"
	"slate/internal/preset"
	"slate/internal/segment"
	"slate/internal/services"
	"slate/internal/services/ffmpeg"
	"slate/internal/testsupport"
	"slate/internal/thumbnail"
)

// fakeFFmpegClient stands in for the ffmpeg subprocess across all three
// invocation shapes, writing real files so filesystem assertions hold.
type fakeFFmpegClient struct {
	encodeErr       error
	encodeSizeBytes int64
	progress        []ffmpeg.ProgressUpdate

	frameErr error

	segmentFailAt   int
	segmentSize     int64
	segmentRequests []ffmpeg.SegmentRequest
}

func (f *fakeFFmpegClient) Encode(ctx context.Context, req ffmpeg.EncodeRequest, onProgress func(ffmpeg.ProgressUpdate)) error {
	if f.encodeErr != nil {
		return f.encodeErr
	}
	if err := writeBytes(req.OutputPath, f.encodeSizeBytes); err != nil {
		return err
	}
	if onProgress != nil {
		for _, update := range f.progress {
			onProgress(update)
		}
	}
	return nil
}

func (f *fakeFFmpegClient) CaptureFrame(ctx context.Context, req ffmpeg.FrameRequest) error {
	if f.frameErr != nil {
		return f.frameErr
	}
	return writeBytes(req.OutputPath, 2048)
}

func (f *fakeFFmpegClient) CopySegment(ctx context.Context, req ffmpeg.SegmentRequest) error {
	f.segmentRequests = append(f.segmentRequests, req)
	if f.segmentFailAt > 0 && len(f.segmentRequests) == f.segmentFailAt {
		return errors.New("boom: segment cut failed")
	}
	size := f.segmentSize
	if size == 0 {
		size = 1024
	}
	return writeBytes(req.OutputPath, size)
}

func writeBytes(path string, size int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	chunk := make([]byte, 64*1024)
	for i := range chunk {
		chunk[i] = 0x42
	}
	remaining := size
	for remaining > 0 {
		n := int64(len(chunk))
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(chunk[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

func sourceProbeResult() ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{
			{
				CodecType:  "video",
				CodecName:  "h264",
				Width:      1920,
				Height:     1080,
				RFrameRate: "30000/1001",
			},
			{
				CodecType:  "audio",
				CodecName:  "aac",
				Channels:   2,
				SampleRate: "48000",
			},
		},
		Format: ffprobe.Format{
			Duration: "120",
			Size:     "10485760",
			BitRate:  "974000",
		},
	}
}

func encodedProbeResult() ffprobe.Result {
	result := sourceProbeResult()
	result.Format.Duration = "119.9"
	return result
}

// newTestPipeline wires real components over the fake ffmpeg client and
// stubbed probes.
func newTestPipeline(t *testing.T, cfg *config.Config, client *fakeFFmpegClient) *pipeline.Pipeline {
	t.Helper()
	restoreAnalysis := analysis.SetInspectForTests(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return sourceProbeResult(), nil
	})
	t.Cleanup(restoreAnalysis)
	restoreEncoding := encoding.SetInspectForTests(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return encodedProbeResult(), nil
	})
	t.Cleanup(restoreEncoding)

	logger := logging.NewNop()
	return pipeline.NewWithComponents(cfg, logger, pipeline.Components{
		Analyzer:    analysis.NewAnalyzer(cfg, logger),
		Presets:     preset.NewResolver(logger),
		Transcoder:  encoding.NewTranscoderWithClient(cfg, logger, client),
		Thumbnailer: thumbnail.NewExtractorWithClient(cfg, logger, client),
		Splitter:    segment.NewSplitterWithClient(cfg, logger, client),
	})
}

func newSource(t *testing.T) string {
	t.Helper()
	source := filepath.Join(t.TempDir(), "movie.mkv")
	testsupport.WriteFile(t, source, 4096)
	return source
}

func stagingEntries(t *testing.T, cfg *config.Config) []string {
	t.Helper()
	entries, err := os.ReadDir(cfg.Paths.StagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read staging dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestRunProducesOrderedArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxPartSize(2))
	client := &fakeFFmpegClient{encodeSizeBytes: 5 * 1024 * 1024, segmentSize: 2 * 1024 * 1024}
	p := newTestPipeline(t, cfg, client)
	source := newSource(t)

	result, err := p.Run(context.Background(), source)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.JobID == "" {
		t.Error("expected a job id")
	}
	if result.Source != source {
		t.Errorf("Source = %q, want %q", result.Source, source)
	}
	if result.Metadata.DurationSeconds != 120 {
		t.Errorf("DurationSeconds = %v, want 120", result.Metadata.DurationSeconds)
	}
	if result.Preset != preset.Default() {
		t.Errorf("Preset = %+v, want defaults", result.Preset)
	}

	if len(result.Artifacts) != 4 {
		t.Fatalf("expected 4 artifacts, got %d: %+v", len(result.Artifacts), result.Artifacts)
	}
	for i := 0; i < 3; i++ {
		artifact := result.Artifacts[i]
		if artifact.Kind != pipeline.ArtifactVideo {
			t.Errorf("artifact %d kind = %q, want video", i, artifact.Kind)
		}
		wantName := fmt.Sprintf("movie_part%d.mp4", i+1)
		if artifact.Name != wantName {
			t.Errorf("artifact %d name = %q, want %q", i, artifact.Name, wantName)
		}
		if artifact.PartIndex != i+1 || artifact.TotalParts != 3 {
			t.Errorf("artifact %d tagged %d/%d, want %d/3", i, artifact.PartIndex, artifact.TotalParts, i+1)
		}
		if _, statErr := os.Stat(artifact.Path); statErr != nil {
			t.Errorf("artifact %d missing on disk: %v", i, statErr)
		}
	}
	last := result.Artifacts[3]
	if last.Kind != pipeline.ArtifactThumbnail {
		t.Fatalf("last artifact kind = %q, want thumbnail", last.Kind)
	}
	if last.Name != "movie.jpg" {
		t.Errorf("thumbnail name = %q, want movie.jpg", last.Name)
	}
	if last.PartIndex != 0 || last.TotalParts != 0 {
		t.Error("thumbnail must not carry part tags")
	}

	// Pre-split encode is an intermediate and must be gone.
	preSplit := filepath.Join(result.Workspace.EncodedDir, "movie.mp4")
	if _, err := os.Stat(preSplit); !os.IsNotExist(err) {
		t.Error("pre-split encode should have been deleted")
	}
	// Workspace survives success until delivery.
	if _, err := os.Stat(result.Workspace.Root); err != nil {
		t.Errorf("workspace should survive success: %v", err)
	}

	for _, stage := range []string{"analyze", "transcode", "thumbnail", "split"} {
		if _, ok := result.StageDurations[stage]; !ok {
			t.Errorf("missing stage duration for %q", stage)
		}
	}
}

func TestRunPassthroughKeepsSingleArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxPartSize(98))
	client := &fakeFFmpegClient{encodeSizeBytes: 1024 * 1024}
	p := newTestPipeline(t, cfg, client)

	result, err := p.Run(context.Background(), newSource(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(result.Artifacts))
	}
	video := result.Artifacts[0]
	if video.Kind != pipeline.ArtifactVideo {
		t.Fatalf("first artifact kind = %q, want video", video.Kind)
	}
	if video.Name != "movie.mp4" {
		t.Errorf("video name = %q, want movie.mp4", video.Name)
	}
	if video.PartIndex != 0 || video.TotalParts != 0 {
		t.Error("unsplit video must not carry part tags")
	}
	// Same file, not a copy.
	if video.Path != filepath.Join(result.Workspace.EncodedDir, "movie.mp4") {
		t.Errorf("video path = %q, want encode in place", video.Path)
	}
	if len(client.segmentRequests) != 0 {
		t.Errorf("expected no segment cuts, got %d", len(client.segmentRequests))
	}
	if result.Artifacts[1].Kind != pipeline.ArtifactThumbnail {
		t.Error("second artifact should be the thumbnail")
	}
}

func TestRunAnalyzeFailureCleansStaging(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &fakeFFmpegClient{encodeSizeBytes: 1024}
	p := newTestPipeline(t, cfg, client)

	restore := analysis.SetInspectForTests(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("unreadable input")
	})
	defer restore()

	_, err := p.Run(context.Background(), newSource(t))
	if !errors.Is(err, services.ErrAnalysis) {
		t.Fatalf("expected analysis error, got %v", err)
	}
	if entries := stagingEntries(t, cfg); len(entries) != 0 {
		t.Errorf("staging dir should be empty after failure, found %v", entries)
	}
}

func TestRunTranscodeFailureCleansStaging(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &fakeFFmpegClient{encodeErr: errors.New("boom: encoder exploded")}
	p := newTestPipeline(t, cfg, client)
	source := newSource(t)

	_, err := p.Run(context.Background(), source)
	if !errors.Is(err, services.ErrTranscode) {
		t.Fatalf("expected transcode error, got %v", err)
	}
	if entries := stagingEntries(t, cfg); len(entries) != 0 {
		t.Errorf("staging dir should be empty after failure, found %v", entries)
	}
	// The source is never the pipeline's to delete.
	if _, statErr := os.Stat(source); statErr != nil {
		t.Errorf("source should be untouched: %v", statErr)
	}
}

func TestRunThumbnailFailureCleansStaging(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := &fakeFFmpegClient{encodeSizeBytes: 1024, frameErr: errors.New("boom: no frame")}
	p := newTestPipeline(t, cfg, client)

	_, err := p.Run(context.Background(), newSource(t))
	if !errors.Is(err, services.ErrThumbnail) {
		t.Fatalf("expected thumbnail error, got %v", err)
	}
	if entries := stagingEntries(t, cfg); len(entries) != 0 {
		t.Errorf("staging dir should be empty after failure, found %v", entries)
	}
}

func TestRunSplitFailureCleansStaging(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxPartSize(2))
	client := &fakeFFmpegClient{encodeSizeBytes: 5 * 1024 * 1024, segmentFailAt: 2}
	p := newTestPipeline(t, cfg, client)

	_, err := p.Run(context.Background(), newSource(t))
	if !errors.Is(err, services.ErrSplit) {
		t.Fatalf("expected split error, got %v", err)
	}
	if entries := stagingEntries(t, cfg); len(entries) != 0 {
		t.Errorf("staging dir should be empty after failure, found %v", entries)
	}
}

func TestRunForwardsEncodeProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxPartSize(98))
	client := &fakeFFmpegClient{
		encodeSizeBytes: 1024,
		progress: []ffmpeg.ProgressUpdate{
			{Percent: 0},
			{Percent: 42.5},
			{Percent: 100, Done: true},
		},
	}
	p := newTestPipeline(t, cfg, client)

	var seen []float64
	_, err := p.Run(context.Background(), newSource(t), pipeline.WithEncodeProgress(func(percent float64) {
		seen = append(seen, percent)
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []float64{0, 42.5, 100}
	if len(seen) != len(want) {
		t.Fatalf("progress calls = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestRunValidatesInputs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := newTestPipeline(t, cfg, &fakeFFmpegClient{encodeSizeBytes: 1024})

	if _, err := p.Run(context.Background(), "   "); !errors.Is(err, services.ErrValidation) {
		t.Errorf("expected validation error for blank source, got %v", err)
	}

	nilCfg := pipeline.NewWithComponents(nil, logging.NewNop(), pipeline.Components{})
	if _, err := nilCfg.Run(context.Background(), "in.mkv"); !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("expected configuration error without config, got %v", err)
	}
}

func TestRunResultAccessors(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxPartSize(2))
	client := &fakeFFmpegClient{encodeSizeBytes: 5 * 1024 * 1024, segmentSize: 2 * 1024 * 1024}
	p := newTestPipeline(t, cfg, client)

	result, err := p.Run(context.Background(), newSource(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if videos := result.VideoArtifacts(); len(videos) != 3 {
		t.Errorf("VideoArtifacts = %d, want 3", len(videos))
	}
	thumb, ok := result.Thumbnail()
	if !ok {
		t.Fatal("expected a thumbnail artifact")
	}
	if !strings.HasSuffix(thumb.Name, ".jpg") {
		t.Errorf("thumbnail name = %q", thumb.Name)
	}
}

func TestPipelineHealthChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	p := pipeline.New(cfg, logging.NewNop())

	checks := p.HealthChecks(context.Background())
	if len(checks) != 4 {
		t.Fatalf("expected 4 health checks, got %d", len(checks))
	}
	for _, check := range checks {
		if !check.Ready {
			t.Errorf("component %s unhealthy: %s", check.Name, check.Detail)
		}
	}
}
