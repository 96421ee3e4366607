// Package export writes tier lists to spreadsheet workbooks.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/smileynet/wopt/internal/tier"
)

// ErrNoLists is returned when there is nothing to export.
var ErrNoLists = errors.New("export: no tier lists")

// Header is the column layout of every sheet.
var Header = []string{"Tier", "Weapon", "DPS", "Z"}

// SheetName returns the sheet title for a list, e.g. "Weapons (valby)".
func SheetName(l tier.List) string {
	name := fmt.Sprintf("%s (%s)", l.Kind.Title(), l.Mode)
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

// WriteTiersXLSX writes one sheet per list to path, rows in rank order.
func WriteTiersXLSX(path string, lists []tier.List) error {
	if len(lists) == 0 {
		return ErrNoLists
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	zFmt, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("export: number style: %w", err)
	}

	for i, l := range lists {
		sheet := SheetName(l)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("export: naming sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("export: creating sheet %q: %w", sheet, err)
		}

		if err := f.SetSheetRow(sheet, "A1", &Header); err != nil {
			return fmt.Errorf("export: writing header: %w", err)
		}
		if err := f.SetCellStyle(sheet, "A1", "D1", bold); err != nil {
			return fmt.Errorf("export: styling header: %w", err)
		}

		for r, e := range l.Entries {
			row := []any{string(e.Tier), e.Weapon, e.DPS, e.Z}
			if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", r+2), &row); err != nil {
				return fmt.Errorf("export: writing %s: %w", e.Weapon, err)
			}
		}
		if n := len(l.Entries); n > 0 {
			if err := f.SetCellStyle(sheet, "D2", fmt.Sprintf("D%d", n+1), zFmt); err != nil {
				return fmt.Errorf("export: styling z column: %w", err)
			}
		}
		_ = f.SetColWidth(sheet, "B", "B", 24)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: creating %s: %w", dir, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export: saving %s: %w", path, err)
	}
	return nil
}
