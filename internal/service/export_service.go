package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/inkwell-press/editorial-api/internal/dto"
	"github.com/inkwell-press/editorial-api/internal/models"
	"github.com/inkwell-press/editorial-api/pkg/export"
	appErrors "github.com/inkwell-press/editorial-api/pkg/errors"
)

// ExportFormat selects the rendered report type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries the rendered bytes plus response metadata.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders submission listings into downloadable reports for
// content managers.
type ExportService struct {
	repo   submissionCatalog
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(repo submissionCatalog, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		repo:   repo,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

var exportHeaders = []string{"ID", "Title", "Category", "Status", "Priority", "Similarity", "Gate", "Version", "Created"}

// SubmissionsReport renders the filtered submission queue in the requested format.
func (s *ExportService) SubmissionsReport(ctx context.Context, query dto.SubmissionQuery, format ExportFormat, actor *models.JWTClaims) (*ExportResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleContentManager && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only content managers export reports")
	}

	limit := query.PageSize
	if limit <= 0 {
		limit = 200
	}
	submissions, err := s.repo.List(ctx, models.SubmissionFilter{
		Status:   query.Status,
		Category: strings.ToLower(strings.TrimSpace(query.Category)),
		Priority: query.Priority,
		Search:   strings.TrimSpace(query.Search),
		Limit:    limit,
	})
	if err != nil {
		return nil, mapStoreError(err, "list submissions for export")
	}

	dataset := export.Dataset{Headers: exportHeaders, Rows: make([]map[string]string, 0, len(submissions))}
	for _, sub := range submissions {
		similarity := ""
		if sub.SimilarityScore != nil {
			similarity = fmt.Sprintf("%.1f", *sub.SimilarityScore)
		}
		gate := ""
		if sub.GateDecision != nil {
			gate = string(*sub.GateDecision)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":         sub.ID,
			"Title":      sub.Title,
			"Category":   sub.Category,
			"Status":     string(sub.Status),
			"Priority":   string(sub.Priority),
			"Similarity": similarity,
			"Gate":       gate,
			"Version":    fmt.Sprintf("%d", sub.Version),
			"Created":    sub.CreatedAt.Format("2006-01-02"),
		})
	}

	switch format {
	case ExportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv report")
		}
		return &ExportResult{FileName: "submissions.csv", ContentType: "text/csv", Data: data}, nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, "Submission Queue")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render pdf report")
		}
		return &ExportResult{FileName: "submissions.pdf", ContentType: "application/pdf", Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format, use csv or pdf")
	}
}
