package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	remote "github.com/masad-stock/skillbridge-sub000/internal/clients/remote"
	offline "github.com/masad-stock/skillbridge-sub000/internal/data/repos/offline"
	events "github.com/masad-stock/skillbridge-sub000/internal/events"
	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// DownloadConfig tunes the course download pipeline.
type DownloadConfig struct {
	MaxConcurrent int
	// Terminal states linger this long for late Progress polls before the
	// entry is dropped.
	StateRetention time.Duration
}

const (
	defaultMaxConcurrentDownloads = 2
	defaultStateRetention         = 30 * time.Second
)

func (c DownloadConfig) withDefaults() DownloadConfig {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrentDownloads
	}
	if c.StateRetention <= 0 {
		c.StateRetention = defaultStateRetention
	}
	return c
}

type DownloadService interface {
	// Download runs the full fetch-transcode-store pipeline for one course.
	// It blocks until the download reaches a terminal state.
	Download(ctx context.Context, courseID string, opts types.DownloadOptions) (*types.CourseBundle, error)
	Pause(courseID string) error
	Resume(ctx context.Context, courseID string) error
	Cancel(courseID string) error
	Progress(courseID string) (*types.DownloadState, error)
	Active() []*types.DownloadState
}

type downloadState struct {
	types.DownloadState

	// pause/cancel are observed between modules and between images.
	pauseRequested  bool
	cancelRequested bool
	resumeCh        chan struct{}
}

type downloadService struct {
	db         *gorm.DB
	log        *logger.Logger
	cfg        DownloadConfig
	client     remote.ContentClient
	courses    offline.CourseRepo
	bus        *events.Bus
	transcoder *imageTranscoder

	sem chan struct{}

	mu     sync.Mutex
	states map[string]*downloadState
}

func NewDownloadService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg DownloadConfig,
	client remote.ContentClient,
	courses offline.CourseRepo,
	bus *events.Bus,
) DownloadService {
	cfg = cfg.withDefaults()
	return &downloadService{
		db:         db,
		log:        baseLog.With("service", "download"),
		cfg:        cfg,
		client:     client,
		courses:    courses,
		bus:        bus,
		transcoder: newImageTranscoder(baseLog),
		sem:        make(chan struct{}, cfg.MaxConcurrent),
		states:     make(map[string]*downloadState),
	}
}

func (s *downloadService) Download(ctx context.Context, courseID string, opts types.DownloadOptions) (*types.CourseBundle, error) {
	if courseID == "" {
		return nil, fmt.Errorf("%w: course id required", pkgerrors.ErrInvalidArgument)
	}
	if opts.ImageQuality == "" {
		opts.ImageQuality = types.QualityMedium
	}

	s.mu.Lock()
	if st, ok := s.states[courseID]; ok && !isTerminal(st.Status) {
		s.mu.Unlock()
		return nil, pkgerrors.ErrDownloadActive
	}
	st := &downloadState{
		DownloadState: types.DownloadState{
			CourseID:  courseID,
			Status:    types.DownloadDownloading,
			StartedAt: time.Now().UTC(),
			Options:   opts,
		},
		resumeCh: make(chan struct{}),
	}
	s.states[courseID] = st
	s.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		s.finish(st, types.DownloadCancelled, ctx.Err())
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	s.log.Info("course download started", "course_id", courseID, "text_only", opts.TextOnly, "image_quality", opts.ImageQuality)
	s.bus.Publish(events.Event{Topic: events.TopicDownloadStarted, Payload: s.snapshot(st)})

	bundle, err := s.run(ctx, st)
	if err != nil {
		return nil, err
	}
	return bundle, nil
}

// run executes the pipeline for an already-registered state. Shared by
// Download and Resume.
func (s *downloadService) run(ctx context.Context, st *downloadState) (*types.CourseBundle, error) {
	course, err := s.client.FetchCourse(ctx, st.CourseID)
	if err != nil {
		s.finish(st, types.DownloadFailed, err)
		return nil, fmt.Errorf("fetch course %s: %w", st.CourseID, err)
	}

	s.withState(st, func() {
		st.TotalBytes = estimateSize(course, st.Options)
		st.DownloadedBytes = 0
	})

	bundle := &types.CourseBundle{
		ID:              course.ID,
		Title:           course.Title,
		Category:        course.Category,
		DownloadOptions: st.Options,
		SyncStatus:      types.SyncStatusSynced,
	}

	for _, rm := range course.Modules {
		if err := s.checkpoint(ctx, st); err != nil {
			return nil, err
		}
		mod, err := s.downloadModule(ctx, st, rm)
		if err != nil {
			s.finish(st, types.DownloadFailed, err)
			return nil, err
		}
		bundle.Modules = append(bundle.Modules, *mod)
	}

	if err := s.checkpoint(ctx, st); err != nil {
		return nil, err
	}

	bundle.SizeBytes = bundleSizeBytes(bundle)
	now := time.Now().UTC()
	bundle.DownloadedAt = now

	if err := s.courses.Save(ctx, nil, bundle); err != nil {
		s.finish(st, types.DownloadFailed, err)
		return nil, fmt.Errorf("store course bundle %s: %w", st.CourseID, err)
	}

	s.withState(st, func() {
		st.Status = types.DownloadCompleted
		st.Progress = 100
		st.CompletedAt = &now
	})
	s.log.Info("course download completed", "course_id", st.CourseID, "size_bytes", bundle.SizeBytes, "modules", len(bundle.Modules))
	s.bus.Publish(events.Event{Topic: events.TopicDownloadCompleted, Payload: s.snapshot(st)})
	s.scheduleCleanup(st.CourseID)
	return bundle, nil
}

func (s *downloadService) downloadModule(ctx context.Context, st *downloadState, rm remote.RemoteModule) (*types.CourseModule, error) {
	mod := &types.CourseModule{
		ID:          rm.ID,
		Title:       rm.Title,
		Description: rm.Description,
		TextContent: extractTextContent(rm),
		Transcript:  rm.VideoTranscript,
	}
	if mod.Transcript == "" && rm.VideoURL != "" {
		mod.Transcript = transcriptPlaceholder(rm)
	}
	if rm.VideoURL != "" {
		// Video metadata only; the media itself is never stored offline.
		mod.Video = &types.VideoMetadata{
			URL:             rm.VideoURL,
			DurationSeconds: rm.VideoDurationSeconds,
			Thumbnail:       rm.VideoThumbnail,
		}
	}
	s.addBytes(st, int64(len(mod.TextContent)+len(mod.Transcript)))

	if st.Options.TextOnly {
		return mod, nil
	}

	for _, imageURL := range moduleImageURLs(rm) {
		if err := s.checkpoint(ctx, st); err != nil {
			return nil, err
		}
		asset, err := s.downloadImage(ctx, st, imageURL)
		if err != nil {
			// A missing image never fails the course.
			s.log.Warn("image skipped", "course_id", st.CourseID, "url", imageURL, "error", err)
			continue
		}
		mod.Images = append(mod.Images, *asset)
	}
	return mod, nil
}

func (s *downloadService) downloadImage(ctx context.Context, st *downloadState, imageURL string) (*types.ImageAsset, error) {
	data, contentType, err := s.client.FetchImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	originalSize := len(data)
	out, outType, optimized, err := s.transcoder.Transcode(data, contentType, st.Options.ImageQuality)
	if err != nil {
		// Store the original rather than lose the image.
		s.log.Warn("image transcode failed, storing original", "url", imageURL, "error", err)
		out, outType, optimized = data, contentType, false
	}
	s.addBytes(st, int64(len(out)))
	return &types.ImageAsset{
		URL:          imageURL,
		ContentType:  outType,
		Data:         out,
		OriginalSize: int64(originalSize),
		Size:         int64(len(out)),
		Optimized:    optimized,
	}, nil
}

var imgSrcRe = regexp.MustCompile(`<img[^>]+src="([^">]+)"`)
var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

func moduleImageURLs(rm remote.RemoteModule) []string {
	var urls []string
	if rm.Thumbnail != "" {
		urls = append(urls, rm.Thumbnail)
	}
	for _, m := range imgSrcRe.FindAllStringSubmatch(rm.Content, -1) {
		urls = append(urls, m[1])
	}
	if rm.VideoThumbnail != "" {
		urls = append(urls, rm.VideoThumbnail)
	}
	return urls
}

// extractTextContent flattens a module into plain text for offline reading.
func extractTextContent(rm remote.RemoteModule) string {
	var b strings.Builder
	if rm.Title != "" {
		b.WriteString(rm.Title)
		b.WriteString("\n\n")
	}
	if rm.Description != "" {
		b.WriteString(rm.Description)
		b.WriteString("\n\n")
	}
	if rm.Content != "" {
		b.WriteString(htmlTagRe.ReplaceAllString(rm.Content, ""))
	}
	return b.String()
}

func transcriptPlaceholder(rm remote.RemoteModule) string {
	desc := rm.Description
	if desc == "" {
		desc = "No description available"
	}
	return fmt.Sprintf("Video transcript not available.\n\nModule: %s\nDescription: %s\n\nThis module includes video content that requires an internet connection to view.", rm.Title, desc)
}

// estimateSize predicts the bundle size before anything is fetched: exact
// text bytes plus a per-tier budget for each referenced image.
func estimateSize(course *remote.RemoteCourse, opts types.DownloadOptions) int64 {
	var total int64
	imageCount := 0
	for _, rm := range course.Modules {
		total += int64(len(extractTextContent(rm)))
		transcript := rm.VideoTranscript
		if transcript == "" && rm.VideoURL != "" {
			transcript = transcriptPlaceholder(rm)
		}
		total += int64(len(transcript))
		imageCount += len(moduleImageURLs(rm))
	}
	if !opts.TextOnly {
		total += int64(imageCount) * int64(targetBytesFor(opts.ImageQuality))
	}
	return total
}

func bundleSizeBytes(b *types.CourseBundle) int64 {
	var n int64
	for _, m := range b.Modules {
		n += int64(len(m.TextContent) + len(m.Transcript))
		for _, img := range m.Images {
			n += img.Size
		}
	}
	return n
}

// checkpoint observes pause and cancel requests between units of work and
// blocks while paused. Returns a non-nil error when the download ends here.
// The pause flag, the status flip, and the channel capture share one critical
// section so a concurrent Resume cannot be overwritten with a stale paused
// status.
func (s *downloadService) checkpoint(ctx context.Context, st *downloadState) error {
	for {
		if ctx.Err() != nil {
			s.finish(st, types.DownloadCancelled, ctx.Err())
			return ctx.Err()
		}

		s.mu.Lock()
		if st.cancelRequested {
			s.mu.Unlock()
			s.finish(st, types.DownloadCancelled, nil)
			return pkgerrors.ErrNoDownload
		}
		if !st.pauseRequested {
			s.mu.Unlock()
			return nil
		}
		now := time.Now().UTC()
		st.Status = types.DownloadPaused
		st.PausedAt = &now
		resumeCh := st.resumeCh
		s.mu.Unlock()

		s.bus.Publish(events.Event{Topic: events.TopicDownloadPaused, Payload: s.snapshot(st)})
		select {
		case <-resumeCh:
		case <-ctx.Done():
			s.finish(st, types.DownloadCancelled, ctx.Err())
			return ctx.Err()
		}
	}
}

func (s *downloadService) Pause(courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[courseID]
	if !ok || isTerminal(st.Status) {
		return pkgerrors.ErrNoDownload
	}
	st.pauseRequested = true
	s.log.Info("course download pause requested", "course_id", courseID)
	return nil
}

func (s *downloadService) Resume(ctx context.Context, courseID string) error {
	s.mu.Lock()
	st, ok := s.states[courseID]
	if !ok || isTerminal(st.Status) {
		s.mu.Unlock()
		return pkgerrors.ErrNoDownload
	}
	if !st.pauseRequested {
		s.mu.Unlock()
		return fmt.Errorf("%w: download for course %s is not paused", pkgerrors.ErrInvalidArgument, courseID)
	}
	st.pauseRequested = false
	now := time.Now().UTC()
	st.Status = types.DownloadDownloading
	st.ResumedAt = &now
	close(st.resumeCh)
	st.resumeCh = make(chan struct{})
	s.mu.Unlock()

	s.log.Info("course download resumed", "course_id", courseID)
	s.bus.Publish(events.Event{Topic: events.TopicDownloadResumed, Payload: s.snapshot(st)})
	return nil
}

func (s *downloadService) Cancel(courseID string) error {
	s.mu.Lock()
	st, ok := s.states[courseID]
	if !ok || isTerminal(st.Status) {
		s.mu.Unlock()
		return pkgerrors.ErrNoDownload
	}
	st.cancelRequested = true
	if st.pauseRequested {
		// Unblock a paused loop so it can observe the cancel.
		st.pauseRequested = false
		close(st.resumeCh)
		st.resumeCh = make(chan struct{})
	}
	s.mu.Unlock()
	s.log.Info("course download cancel requested", "course_id", courseID)
	return nil
}

func (s *downloadService) Progress(courseID string) (*types.DownloadState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[courseID]
	if !ok {
		return nil, pkgerrors.ErrNoDownload
	}
	return st.DownloadState.Clone(), nil
}

func (s *downloadService) Active() []*types.DownloadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.DownloadState
	for _, st := range s.states {
		if !isTerminal(st.Status) {
			out = append(out, st.DownloadState.Clone())
		}
	}
	return out
}

func isTerminal(status types.DownloadStatus) bool {
	switch status {
	case types.DownloadCompleted, types.DownloadFailed, types.DownloadCancelled:
		return true
	}
	return false
}

// addBytes advances the byte counter and recomputes progress, capped at 99
// until the bundle is saved.
func (s *downloadService) addBytes(st *downloadState, n int64) {
	s.withState(st, func() {
		st.DownloadedBytes += n
		if st.TotalBytes > 0 {
			p := float64(st.DownloadedBytes) / float64(st.TotalBytes) * 100
			if p > 99 {
				p = 99
			}
			if p > st.Progress {
				st.Progress = p
			}
		}
	})
	s.bus.Publish(events.Event{Topic: events.TopicDownloadProgress, Payload: s.snapshot(st)})
}

func (s *downloadService) finish(st *downloadState, status types.DownloadStatus, cause error) {
	now := time.Now().UTC()
	s.mu.Lock()
	if isTerminal(st.Status) {
		s.mu.Unlock()
		return
	}
	st.Status = status
	switch status {
	case types.DownloadFailed:
		st.CompletedAt = &now
		if cause != nil {
			st.Error = cause.Error()
		}
	case types.DownloadCancelled:
		st.CancelledAt = &now
		if cause != nil {
			st.Error = cause.Error()
		}
	}
	s.mu.Unlock()
	switch status {
	case types.DownloadFailed:
		s.log.Warn("course download failed", "course_id", st.CourseID, "error", cause)
		s.bus.Publish(events.Event{Topic: events.TopicDownloadFailed, Payload: s.snapshot(st)})
	case types.DownloadCancelled:
		s.log.Info("course download cancelled", "course_id", st.CourseID)
		s.bus.Publish(events.Event{Topic: events.TopicDownloadCancelled, Payload: s.snapshot(st)})
	}
	s.scheduleCleanup(st.CourseID)
}

func (s *downloadService) withState(st *downloadState, fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
}

func (s *downloadService) snapshot(st *downloadState) *types.DownloadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return st.DownloadState.Clone()
}

func (s *downloadService) scheduleCleanup(courseID string) {
	time.AfterFunc(s.cfg.StateRetention, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if st, ok := s.states[courseID]; ok && isTerminal(st.Status) {
			delete(s.states, courseID)
		}
	})
}
