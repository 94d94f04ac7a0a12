package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/masteryquest/backend/internal/models"
	"github.com/masteryquest/backend/internal/progress"
	"github.com/xuri/excelize/v2"
)

type fakeRegistrar struct {
	got []progress.NewMaterial
}

func (f *fakeRegistrar) RegisterMaterial(ctx context.Context, userID int64, nm progress.NewMaterial) (models.MaterialID, error) {
	f.got = append(f.got, nm)
	return fmt.Sprintf("m%d", len(f.got)), nil
}

type fakeEnricher struct {
	quality string
	fail    string
}

func (f *fakeEnricher) Enrich(ctx context.Context, text string) (json.RawMessage, string, error) {
	if text == f.fail {
		return nil, "", errors.New("generator unavailable")
	}
	return json.RawMessage(`{"title":"` + text + `"}`), f.quality, nil
}

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, r := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cellRef, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func TestImport_RegistersRows(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Title", "Category", "Source", "Text"},
		{"Photosynthesis", "Biology", "Ch. 3", "Plants convert light."},
		{"", "", "", ""},
		{"Mitosis", "Biology", "Ch. 4"},
	})

	reg := &fakeRegistrar{}
	im := New(reg, &fakeEnricher{quality: "passed"}, DefaultConfig())

	resp, err := im.Import(context.Background(), 1, buf)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	if len(resp.Imported) != 2 {
		t.Fatalf("imported %d, want 2 (errors: %v)", len(resp.Imported), resp.Errors)
	}
	if len(resp.SkippedRows) != 0 {
		t.Errorf("skipped rows = %v, want none", resp.SkippedRows)
	}

	first := reg.got[0]
	if first.Title != "Photosynthesis" || first.Category != "Biology" || first.SourceLabel != "Ch. 3" {
		t.Errorf("unexpected first material: %+v", first)
	}
	if !strings.Contains(string(first.Content), "Plants convert light.") {
		t.Errorf("first material content = %s, want generated bundle", first.Content)
	}
	if reg.got[1].Content != nil {
		t.Errorf("row without text should have no content, got %s", reg.got[1].Content)
	}
}

func TestImport_ReportsBadRows(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Title", "Category", "Source", "Text"},
		{"", "Biology", "", "orphan text"},
		{"Broken", "", "", "explode"},
		{"Fine", "", "", ""},
	})

	reg := &fakeRegistrar{}
	im := New(reg, &fakeEnricher{quality: "passed", fail: "explode"}, DefaultConfig())

	resp, err := im.Import(context.Background(), 1, buf)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}

	if len(resp.Imported) != 1 {
		t.Errorf("imported %d, want 1", len(resp.Imported))
	}
	if want := []int{2, 3}; len(resp.SkippedRows) != 2 || resp.SkippedRows[0] != want[0] || resp.SkippedRows[1] != want[1] {
		t.Errorf("skipped rows = %v, want %v", resp.SkippedRows, want)
	}
	if len(resp.Errors) != 2 {
		t.Errorf("errors = %v, want 2 entries", resp.Errors)
	}
}

func TestImport_RejectedQuality(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Title", "Category", "Source", "Text"},
		{"Weak", "", "", "short"},
	})

	reg := &fakeRegistrar{}
	im := New(reg, &fakeEnricher{quality: "reject"}, DefaultConfig())

	resp, err := im.Import(context.Background(), 1, buf)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if len(resp.Imported) != 0 || len(reg.got) != 0 {
		t.Errorf("rejected content should not be registered, got %v", resp.Imported)
	}
}

func TestImport_NoEnricher(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Title", "Category", "Source", "Text"},
		{"Plain", "", "", "text is ignored"},
	})

	reg := &fakeRegistrar{}
	resp, err := New(reg, nil, DefaultConfig()).Import(context.Background(), 1, buf)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if len(resp.Imported) != 1 || reg.got[0].Content != nil {
		t.Errorf("expected one material without content, got %+v", reg.got)
	}
}

func TestImport_RowLimit(t *testing.T) {
	rows := [][]interface{}{{"Title"}}
	for i := 0; i < 5; i++ {
		rows = append(rows, []interface{}{fmt.Sprintf("Item %d", i)})
	}
	cfg := DefaultConfig()
	cfg.MaxRows = 3

	reg := &fakeRegistrar{}
	resp, err := New(reg, nil, cfg).Import(context.Background(), 1, workbook(t, rows))
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if len(resp.Imported) != 3 {
		t.Errorf("imported %d, want 3", len(resp.Imported))
	}
	if len(resp.Errors) != 1 {
		t.Errorf("expected a row limit error, got %v", resp.Errors)
	}
}

func TestImport_NotAWorkbook(t *testing.T) {
	_, err := New(&fakeRegistrar{}, nil, DefaultConfig()).Import(context.Background(), 1, strings.NewReader("not a zip"))
	if err == nil {
		t.Fatal("expected error for invalid workbook")
	}
}
