package sequence

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"masterclass-pods/internal/logger"
	"masterclass-pods/models"
)

// LoadBlueprint decodes one blueprint JSON document.
func LoadBlueprint(r io.Reader) (models.Blueprint, error) {
	var bp models.Blueprint
	if err := json.NewDecoder(r).Decode(&bp); err != nil {
		return models.Blueprint{}, fmt.Errorf("decode blueprint: %w", err)
	}
	if err := Validate(bp); err != nil {
		return models.Blueprint{}, err
	}
	return bp, nil
}

// LoadBlueprintDir reads every *.json blueprint in dir, sorted by niche.
func LoadBlueprintDir(dir string) ([]models.Blueprint, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	var out []models.Blueprint
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		bp, err := LoadBlueprint(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Niche < out[j].Niche })
	return out, nil
}

// ExportJSON writes the sequences as an indented JSON object keyed by niche.
func ExportJSON(w io.Writer, seqs map[string][]models.SequenceEmail) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(seqs)
}

var xlsxHeaders = []string{"Position", "Day", "Kind", "Subject", "Body"}

// ExportXLSX writes one sheet per niche, in niche order.
func ExportXLSX(w io.Writer, seqs map[string][]models.SequenceEmail) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Error("Error closing Excel file", "error", err)
		}
	}()

	niches := make([]string, 0, len(seqs))
	for n := range seqs {
		niches = append(niches, n)
	}
	sort.Strings(niches)

	used := map[string]bool{}
	for i, niche := range niches {
		sheet := uniqueSheetName(niche, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}

		for col, header := range xlsxHeaders {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			f.SetCellValue(sheet, cell, header)
		}
		for r, e := range seqs[niche] {
			row := r + 2
			f.SetCellValue(sheet, fmt.Sprintf("A%d", row), e.Position)
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), e.Day)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), e.Kind)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), e.Subject)
			f.SetCellValue(sheet, fmt.Sprintf("E%d", row), e.Body)
		}
		f.SetColWidth(sheet, "D", "D", 50)
		f.SetColWidth(sheet, "E", "E", 100)
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// uniqueSheetName maps a niche to a valid, unused sheet name (<= 31 chars,
// no []:*?/\).
func uniqueSheetName(niche string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, niche)
	if name == "" {
		name = "sequence"
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}

	candidate := name
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf("_%d", i)
		r := []rune(name)
		if len(r)+len(suffix) > 31 {
			r = r[:31-len(suffix)]
		}
		candidate = string(r) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
