package mapview

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwise1/hazard_map/internal/logger"
	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/internal/task"
	"github.com/bwise1/hazard_map/util"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxImageBytes     int64 = 10 << 20
	DefaultSubmitPoints            = 20
	DefaultViewPoints              = 5
	defaultUploadConcurrency       = 4
)

// ReportDraft is the reporter's form input. Status is accepted for
// completeness and ignored; new reports are always pending.
type ReportDraft struct {
	Title           string
	Description     string
	Category        string
	Severity        int
	Position        *orb.Point
	Status          string
	OriginalImage   *model.Image
	ProcessedImages []model.Image
}

// Outcome is the result of a successful submission. Warnings carries the
// per-file upload failures. Analysis is nil when no original image was
// supplied.
type Outcome struct {
	Report   model.Report
	Warnings []error
	Analysis *task.Task[model.AnalysisResult]
	Points   *task.Task[struct{}]
}

type SubmitterConfig struct {
	MaxImageBytes     int64
	SubmitPoints      int
	UploadConcurrency int
}

// Submitter runs the report submission flow against the external services.
type Submitter struct {
	api      ReportAPI
	uploader ImageUploader
	analyzer Analyzer
	points   PointAwarder
	cfg      SubmitterConfig
	log      *logger.Logger
}

func NewSubmitter(api ReportAPI, uploader ImageUploader, analyzer Analyzer, points PointAwarder, cfg SubmitterConfig, log *logger.Logger) *Submitter {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.SubmitPoints == 0 {
		cfg.SubmitPoints = DefaultSubmitPoints
	}
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = defaultUploadConcurrency
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Submitter{
		api:      api,
		uploader: uploader,
		analyzer: analyzer,
		points:   points,
		cfg:      cfg,
		log:      log.WithComponent("submitter"),
	}
}

// ValidateDraft checks the draft locally. Checks run in a fixed order and
// the first failure is returned. Empty category and zero severity fall
// back to "other" and 1.
func ValidateDraft(d ReportDraft, maxImageBytes int64) error {
	if d.Position == nil {
		return &ValidationError{Reason: ReasonMissingLocation}
	}
	if !util.NotBlank(d.Title) {
		return &ValidationError{Reason: ReasonMissingTitle}
	}
	if c := d.Category; c != "" && !isCategory(c) {
		return &ValidationError{Reason: ReasonInvalidCategory, Detail: c}
	}
	if s := d.Severity; s != 0 && (s < model.MinSeverity || s > model.MaxSeverity) {
		return &ValidationError{Reason: ReasonInvalidSeverity, Detail: fmt.Sprintf("%d", s)}
	}
	if d.OriginalImage != nil {
		if err := ValidateImage(*d.OriginalImage, maxImageBytes); err != nil {
			return err
		}
	}
	for _, img := range d.ProcessedImages {
		if err := ValidateImage(img, maxImageBytes); err != nil {
			return err
		}
	}
	return nil
}

// ValidateImage accepts non-empty image content no larger than max bytes.
// Both the declared type and the sniffed content must be image/*.
func ValidateImage(img model.Image, max int64) error {
	invalid := func(detail string) error {
		return &ValidationError{Reason: ReasonInvalidImage, Detail: fmt.Sprintf("%s: %s", img.Name, detail)}
	}
	if img.Size() == 0 {
		return invalid("empty file")
	}
	if img.Size() > max {
		return invalid(fmt.Sprintf("%d bytes exceeds limit of %d", img.Size(), max))
	}
	if img.ContentType != "" && !strings.HasPrefix(img.ContentType, "image/") {
		return invalid("declared type " + img.ContentType)
	}
	if mt := mimetype.Detect(img.Data); !strings.HasPrefix(mt.String(), "image/") {
		return invalid("content is " + mt.String())
	}
	return nil
}

func isCategory(c string) bool {
	for _, known := range model.Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Submit validates the draft, uploads its images, creates the report and
// starts the analysis and point-award tasks. Only validation and record
// creation failures are returned as errors.
func (s *Submitter) Submit(ctx context.Context, sess Session, d ReportDraft) (Outcome, error) {
	if err := ValidateDraft(d, s.cfg.MaxImageBytes); err != nil {
		return Outcome{}, err
	}

	processed, warnings := s.uploadProcessed(ctx, d.ProcessedImages)

	var imageURL *string
	if d.OriginalImage != nil {
		url, err := s.uploader.UploadImage(ctx, *d.OriginalImage, model.ImageOriginal)
		if err != nil {
			warnings = append(warnings, &UploadError{Name: d.OriginalImage.Name, Kind: model.ImageOriginal, Err: err})
		} else {
			imageURL = &url
		}
	}

	req := model.CreateReportRequest{
		UserID:             sess.UserID,
		Title:              strings.TrimSpace(d.Title),
		Category:           d.Category,
		Severity:           d.Severity,
		Latitude:           d.Position.Lat(),
		Longitude:          d.Position.Lon(),
		Status:             model.StatusPending,
		ImageURL:           imageURL,
		ProcessedImageURLs: processed,
	}
	if req.Category == "" {
		req.Category = model.CategoryOther
	}
	if req.Severity == 0 {
		req.Severity = model.MinSeverity
	}
	req.Description = util.StrPtr(strings.TrimSpace(d.Description))

	report, err := s.api.CreateReport(ctx, req)
	if err != nil {
		return Outcome{}, &PersistenceError{Err: err}
	}
	if report.ProcessedImageURLs == nil {
		report.ProcessedImageURLs = []string{}
	}

	out := Outcome{Report: report, Warnings: warnings}

	bg := context.WithoutCancel(ctx)
	if d.OriginalImage != nil && s.analyzer != nil {
		img := *d.OriginalImage
		out.Analysis = task.Go(bg, func(ctx context.Context) (model.AnalysisResult, error) {
			res, err := s.analyzer.AnalyzeReportImage(ctx, report.ID, img)
			if err != nil {
				return model.AnalysisResult{}, &AnalysisError{ReportID: report.ID, Err: err}
			}
			return res, nil
		})
	}
	out.Points = s.award(bg, sess.UserID, report.ID, s.cfg.SubmitPoints)

	return out, nil
}

// award starts a point-award task. Failures are logged only.
func (s *Submitter) award(ctx context.Context, userID, reportID uuid.UUID, delta int) *task.Task[struct{}] {
	if s.points == nil || userID == uuid.Nil {
		return task.Done(struct{}{}, nil)
	}
	return task.Go(ctx, func(ctx context.Context) (struct{}, error) {
		if err := s.points.AwardPoints(ctx, userID, reportID, delta); err != nil {
			s.log.LogError(ctx, err, "awarding points failed", "user_id", userID.String(), "report_id", reportID.String(), "delta", delta)
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
}

// uploadProcessed uploads images concurrently. Successful URLs keep the
// input order; failures are dropped and returned as warnings.
func (s *Submitter) uploadProcessed(ctx context.Context, images []model.Image) ([]string, []error) {
	if len(images) == 0 {
		return []string{}, nil
	}

	urls := make([]string, len(images))
	errs := make([]error, len(images))

	var g errgroup.Group
	g.SetLimit(s.cfg.UploadConcurrency)
	for i, img := range images {
		g.Go(func() error {
			url, err := s.uploader.UploadImage(ctx, img, model.ImageProcessed)
			if err != nil {
				errs[i] = &UploadError{Name: img.Name, Kind: model.ImageProcessed, Err: err}
				return nil
			}
			urls[i] = url
			return nil
		})
	}
	_ = g.Wait()

	kept := make([]string, 0, len(images))
	var warnings []error
	for i := range images {
		if errs[i] != nil {
			s.log.Warn("processed image upload failed", "name", images[i].Name, "error", errs[i])
			warnings = append(warnings, errs[i])
			continue
		}
		kept = append(kept, urls[i])
	}
	return kept, warnings
}
