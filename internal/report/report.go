// Package report validates and files moderation reports.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/oggyb/devmatch/internal/activity"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/events"
	"github.com/oggyb/devmatch/internal/latency"
	"github.com/oggyb/devmatch/internal/repository"
)

const (
	TypeUser    = "user"
	TypeContent = "content"
	TypeBug     = "bug"

	MaxEvidenceBytes  = 5 * 1024 * 1024
	MinDescription    = 10
	MaxContactInfoLen = 200
)

type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Category struct {
	Label         string   `json:"label"`
	Value         string   `json:"value"`
	Subcategories []Option `json:"subcategories"`
}

var userCategories = []Category{
	{Label: "Harassment", Value: "harassment", Subcategories: []Option{
		{"Bullying", "bullying"}, {"Hate Speech", "hate_speech"}, {"Threats", "threats"}, {"Stalking", "stalking"},
	}},
	{Label: "Impersonation", Value: "impersonation", Subcategories: []Option{
		{"Fake Profile", "fake_profile"}, {"Identity Theft", "identity_theft"}, {"Misleading Information", "misleading_info"},
	}},
	{Label: "Inappropriate Behavior", Value: "inappropriate", Subcategories: []Option{
		{"Spam", "spam"}, {"Scam", "scam"}, {"Offensive Language", "offensive_language"},
	}},
}

var contentCategories = []Category{
	{Label: "Inappropriate Content", Value: "inappropriate_content", Subcategories: []Option{
		{"Adult Content", "adult"}, {"Violence", "violence"}, {"Hate Speech", "hate_speech"}, {"Disturbing Content", "disturbing"},
	}},
	{Label: "Copyright Violation", Value: "copyright", Subcategories: []Option{
		{"Stolen Content", "stolen"}, {"Unauthorized Use", "unauthorized"}, {"Trademark Violation", "trademark"},
	}},
	{Label: "Misinformation", Value: "misinformation", Subcategories: []Option{
		{"Fake News", "fake_news"}, {"Misleading Content", "misleading"}, {"False Information", "false_info"},
	}},
}

// Categories returns the catalog for a report type. Every type other than
// "user" uses the content catalog.
func Categories(reportType string) []Category {
	if reportType == TypeUser {
		return userCategories
	}
	return contentCategories
}

// Title is the heading shown for a report type.
func Title(reportType string) string {
	switch reportType {
	case TypeUser:
		return "Report User"
	case TypeContent:
		return "Report Content"
	case TypeBug:
		return "Report Bug"
	}
	return "Submit Report"
}

// Form is a report as submitted.
type Form struct {
	Type         string `validate:"oneof=user content bug"`
	TargetID     string `validate:"required,max=64"`
	Category     string
	Subcategory  string
	Description  string
	EvidenceSize int64  `validate:"gte=0"`
	ContactInfo  string `validate:"max=200"`
}

// ValidationError maps form fields to user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid report: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

var validate = validator.New()

// Validate checks a form against the catalog and the size limits.
// It returns nil or a *ValidationError.
func Validate(f Form) error {
	fields := map[string]string{}

	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			switch fe.Field() {
			case "Type":
				fields["type"] = "Please select a report type"
			case "TargetID":
				fields["targetId"] = "Please select what you are reporting"
			case "EvidenceSize":
				fields["evidence"] = "Invalid evidence file"
			case "ContactInfo":
				fields["contactInfo"] = "Contact information must not exceed 200 characters"
			}
		}
	}

	category, ok := findCategory(Categories(f.Type), f.Category)
	switch {
	case f.Category == "":
		fields["category"] = "Please select a category"
	case !ok:
		fields["category"] = "Please select a valid category"
	case f.Subcategory == "":
		fields["subcategory"] = "Please select a subcategory"
	case !hasOption(category.Subcategories, f.Subcategory):
		fields["subcategory"] = "Please select a valid subcategory"
	}

	desc := strings.TrimSpace(f.Description)
	if desc == "" {
		fields["description"] = "Please provide a description"
	} else if len([]rune(desc)) < MinDescription {
		fields["description"] = fmt.Sprintf("Description must be at least %d characters long", MinDescription)
	}

	if f.EvidenceSize > MaxEvidenceBytes {
		fields["evidence"] = "File size must not exceed 5MB"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func findCategory(cats []Category, value string) (Category, bool) {
	for _, c := range cats {
		if c.Value == value {
			return c, true
		}
	}
	return Category{}, false
}

func hasOption(opts []Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}

// ActivityRecorder logs activity without failing the caller.
type ActivityRecorder interface {
	Record(ctx context.Context, userID string, action activity.Action, md activity.Metadata)
}

type Service struct {
	repo      *repository.ReportRepository
	activity  ActivityRecorder
	publisher events.Publisher
	net       *latency.Simulator
	log       *slog.Logger
}

func NewService(
	repo *repository.ReportRepository,
	recorder ActivityRecorder,
	publisher events.Publisher,
	net *latency.Simulator,
	log *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		activity:  recorder,
		publisher: publisher,
		net:       net,
		log:       log.With("module", "report"),
	}
}

// Submit validates the form, waits the simulated round trip and files the report.
func (s *Service) Submit(ctx context.Context, reporterID string, f Form) (db.Report, error) {
	reporterID, err := domain.CheckID("reporter_id", reporterID)
	if err != nil {
		return db.Report{}, err
	}
	f.TargetID = strings.TrimSpace(f.TargetID)
	f.ContactInfo = strings.TrimSpace(f.ContactInfo)
	if err := Validate(f); err != nil {
		return db.Report{}, err
	}

	if err := s.net.Wait(ctx, "submit report"); err != nil {
		return db.Report{}, err
	}

	r := db.Report{
		ID:           uuid.NewString(),
		ReporterID:   reporterID,
		Type:         f.Type,
		TargetID:     f.TargetID,
		Category:     f.Category,
		Subcategory:  f.Subcategory,
		Description:  strings.TrimSpace(f.Description),
		EvidenceSize: f.EvidenceSize,
		ContactInfo:  f.ContactInfo,
	}
	if err := s.repo.Create(ctx, &r); err != nil {
		s.log.Error("store report failed", "reporter", reporterID, "err", err)
		return db.Report{}, err
	}

	s.activity.Record(ctx, reporterID, activity.ActionReportSubmitted, activity.Metadata{Type: f.Type, UserID: f.TargetID})
	if err := s.publisher.Publish(ctx, events.ReportSubmitted, events.Event{
		UserID:     reporterID,
		OtherID:    f.TargetID,
		ResourceID: r.ID,
		Attributes: map[string]string{"type": f.Type, "category": f.Category, "subcategory": f.Subcategory},
	}); err != nil {
		s.log.Warn("report event not published", "report", r.ID, "err", err)
	}
	s.log.Info("report submitted", "report", r.ID, "reporter", reporterID, "type", f.Type)
	return r, nil
}

// History returns the reporter's reports, newest first.
func (s *Service) History(ctx context.Context, reporterID string) ([]db.Report, error) {
	return s.repo.ListByReporter(ctx, reporterID)
}
