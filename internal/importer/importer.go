// Package importer turns uploaded spreadsheets into study materials.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/masteryquest/backend/internal/models"
	"github.com/masteryquest/backend/internal/progress"
	"github.com/xuri/excelize/v2"
)

// Registrar stores one material for a user.
type Registrar interface {
	RegisterMaterial(ctx context.Context, userID int64, nm progress.NewMaterial) (models.MaterialID, error)
}

// Config describes the sheet layout. Columns are spreadsheet letters.
type Config struct {
	SheetName      string // empty means the first sheet
	StartRow       int    // 1-based
	TitleColumn    string
	CategoryColumn string
	SourceColumn   string
	TextColumn     string
	MaxRows        int
}

// DefaultConfig expects a header row followed by title, category, source
// and text in columns A to D.
func DefaultConfig() Config {
	return Config{
		StartRow:       2,
		TitleColumn:    "A",
		CategoryColumn: "B",
		SourceColumn:   "C",
		TextColumn:     "D",
		MaxRows:        500,
	}
}

type Importer struct {
	registrar Registrar
	enricher  progress.ContentEnricher
	cfg       Config
}

// New returns an importer. enricher may be nil, in which case text is
// ignored and materials are stored without content.
func New(registrar Registrar, enricher progress.ContentEnricher, cfg Config) *Importer {
	return &Importer{registrar: registrar, enricher: enricher, cfg: cfg}
}

type row struct {
	title, category, source, text string
}

// Import reads an .xlsx workbook and registers one material per row. Row
// problems are reported in the response; only an unreadable workbook is an
// error.
func (im *Importer) Import(ctx context.Context, userID int64, r io.Reader) (*models.ImportResponse, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := im.cfg.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	resp := &models.ImportResponse{
		Imported:    []models.MaterialID{},
		SkippedRows: []int{},
	}

	cols, err := im.columnIndexes()
	if err != nil {
		return nil, err
	}

	processed := 0
	for i, cells := range rows {
		rowNum := i + 1
		if rowNum < im.cfg.StartRow {
			continue
		}
		if im.cfg.MaxRows > 0 && processed >= im.cfg.MaxRows {
			resp.Errors = append(resp.Errors, fmt.Sprintf("row limit %d reached, remaining rows ignored", im.cfg.MaxRows))
			break
		}

		rec := row{
			title:    cell(cells, cols[0]),
			category: cell(cells, cols[1]),
			source:   cell(cells, cols[2]),
			text:     cell(cells, cols[3]),
		}
		if rec == (row{}) {
			continue
		}
		processed++

		if rec.title == "" {
			resp.SkippedRows = append(resp.SkippedRows, rowNum)
			resp.Errors = append(resp.Errors, fmt.Sprintf("Row %d: title is required", rowNum))
			continue
		}

		id, err := im.importRow(ctx, userID, rec)
		if err != nil {
			resp.SkippedRows = append(resp.SkippedRows, rowNum)
			resp.Errors = append(resp.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		resp.Imported = append(resp.Imported, id)
	}

	log.Printf("[progress] user %d imported %d materials (%d rows skipped)", userID, len(resp.Imported), len(resp.SkippedRows))
	return resp, nil
}

func (im *Importer) importRow(ctx context.Context, userID int64, rec row) (models.MaterialID, error) {
	var content json.RawMessage
	if rec.text != "" && im.enricher != nil {
		data, quality, err := im.enricher.Enrich(ctx, rec.text)
		if err != nil {
			return "", err
		}
		if quality == "reject" {
			return "", fmt.Errorf("generated content rejected by quality check")
		}
		content = data
	}

	return im.registrar.RegisterMaterial(ctx, userID, progress.NewMaterial{
		Title:       rec.title,
		Category:    rec.category,
		SourceLabel: rec.source,
		Content:     content,
	})
}

func (im *Importer) columnIndexes() ([4]int, error) {
	var idx [4]int
	for i, name := range []string{im.cfg.TitleColumn, im.cfg.CategoryColumn, im.cfg.SourceColumn, im.cfg.TextColumn} {
		if name == "" {
			idx[i] = -1
			continue
		}
		n, err := excelize.ColumnNameToNumber(name)
		if err != nil {
			return idx, fmt.Errorf("invalid column %q: %w", name, err)
		}
		idx[i] = n - 1
	}
	return idx, nil
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
