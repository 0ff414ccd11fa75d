package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/student-tracker-api/internal/models"
	"github.com/noah-isme/student-tracker-api/pkg/export"
	appErrors "github.com/noah-isme/student-tracker-api/pkg/errors"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type titledRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var leaderboardHeaders = []string{"Rank", "No", "Student", "Score", "Medals"}

// ExportService renders leaderboards into downloadable files.
type ExportService struct {
	csv  csvRenderer
	pdf  titledRenderer
	xlsx titledRenderer
	now  func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(csv csvRenderer, pdf, xlsx titledRenderer) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{csv: csv, pdf: pdf, xlsx: xlsx, now: time.Now}
}

// ParseExportFormat validates a user-supplied format, defaulting to CSV.
func ParseExportFormat(raw string) (models.ExportFormat, error) {
	switch f := models.ExportFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return models.ExportFormatCSV, nil
	case models.ExportFormatCSV, models.ExportFormatPDF, models.ExportFormatXLSX:
		return f, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// Leaderboard renders ranked entries in the requested format.
func (s *ExportService) Leaderboard(entries []models.LeaderboardEntry, title string, format models.ExportFormat) (*models.ExportFile, error) {
	data := export.Dataset{Headers: leaderboardHeaders, Rows: make([]map[string]string, 0, len(entries))}
	for _, e := range entries {
		data.Rows = append(data.Rows, map[string]string{
			"Rank":    strconv.Itoa(e.Rank),
			"No":      e.StudentNo,
			"Student": e.FullName,
			"Score":   strconv.FormatFloat(e.TotalScore, 'f', 2, 64),
			"Medals":  strconv.Itoa(e.MedalCount),
		})
	}

	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(data)
		contentType = "text/csv; charset=utf-8"
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(data, title)
		contentType = "application/pdf"
	case models.ExportFormatXLSX:
		payload, err = s.xlsx.Render(data, "Leaderboard")
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &models.ExportFile{
		Filename:    fmt.Sprintf("leaderboard_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}
