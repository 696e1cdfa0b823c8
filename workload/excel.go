package workload

import (
	"errors"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
)

const (
	SheetProcesses = "Processes"
	SheetMemory    = "Memory"
	SheetHoles     = "Holes"

	ColProcessName = "Process Name"
	ColSize        = "Size"
	ColTotalMemory = "TotalMemory"
	ColHoleID      = "Hole ID"
	ColStart       = "Start"
)

// ParseFile parses the workbook at path
func ParseFile(path string) (*Bundle, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, parseErrorf("failed to parse workbook: %v", err)
	}
	defer f.Close()
	return parseWorkbook(f)
}

// Parse reads an .xlsx workbook and validates it. Every failure is returned
// as a *ParseError.
func Parse(r io.Reader) (*Bundle, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, parseErrorf("failed to parse workbook: %v", err)
	}
	defer f.Close()
	return parseWorkbook(f)
}

func parseWorkbook(f *excelize.File) (*Bundle, error) {
	processRows, err := sheetRows(f, SheetProcesses, ColProcessName, ColSize)
	if err != nil {
		return nil, err
	}
	memoryRows, err := sheetRows(f, SheetMemory, ColTotalMemory)
	if err != nil {
		return nil, err
	}
	holeRows, err := sheetRows(f, SheetHoles, ColHoleID, ColStart, ColSize)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		Processes: make([]ProcessData, 0, len(processRows)),
		Holes:     make([]HoleData, 0, len(holeRows)),
	}

	fold := cases.Fold()
	seen := make(map[string]string)
	for _, row := range processRows {
		name := row[0]
		if name == "" || strings.EqualFold(name, ColProcessName) {
			continue
		}
		if row[1] == "" {
			return nil, parseErrorf("Process %q has a name but Size is missing", name)
		}
		size, ok := positiveInt(row[1])
		if !ok {
			return nil, parseErrorf("Process %q has invalid Size: must be a positive whole number", name)
		}
		key := fold.String(name)
		if _, dup := seen[key]; dup {
			return nil, parseErrorf("Duplicate process name found: %q", name)
		}
		seen[key] = name
		bundle.Processes = append(bundle.Processes, ProcessData{Name: name, Size: size})
	}

	if len(memoryRows) == 0 {
		return nil, parseErrorf("Memory sheet is empty")
	}
	var totalMemory string
	for _, row := range memoryRows {
		if row[0] != "" && !strings.EqualFold(row[0], ColTotalMemory) {
			totalMemory = row[0]
			break
		}
	}
	if totalMemory == "" {
		return nil, parseErrorf("TotalMemory is missing in Memory sheet")
	}
	total, ok := positiveInt(totalMemory)
	if !ok {
		return nil, parseErrorf("TotalMemory must be a positive whole number")
	}
	bundle.TotalMemory = total

	for _, row := range holeRows {
		id := row[0]
		if id == "" || strings.EqualFold(id, ColHoleID) {
			continue
		}
		if row[1] == "" {
			return nil, parseErrorf("Hole %q has a Hole ID but Start is missing", id)
		}
		if row[2] == "" {
			return nil, parseErrorf("Hole %q has a Hole ID but Size is missing", id)
		}
		start, ok := wholeNumber(row[1])
		if !ok || start < 0 {
			return nil, parseErrorf("Hole %q has invalid Start: must be a non-negative whole number", id)
		}
		size, ok := positiveInt(row[2])
		if !ok {
			return nil, parseErrorf("Hole %q has invalid Size: must be a positive whole number", id)
		}
		bundle.Holes = append(bundle.Holes, HoleData{ID: id, Start: start, Size: size})
	}
	if err := validateHoles(bundle.Holes, bundle.TotalMemory); err != nil {
		return nil, err
	}

	return bundle, nil
}

// sheetRows returns the data rows of a sheet projected onto the named
// columns, trimmed. Columns are located by the header row; a sheet without
// a header row yields no rows.
func sheetRows(f *excelize.File, sheet string, columns ...string) ([][]string, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, parseErrorf("%s sheet not found", sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, parseErrorf("failed to parse workbook: %v", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	positions := make([]int, len(columns))
	for i, col := range columns {
		positions[i] = -1
		for j, header := range rows[0] {
			if strings.EqualFold(strings.TrimSpace(header), col) {
				positions[i] = j
				break
			}
		}
		if positions[i] < 0 {
			return nil, parseErrorf("%s sheet is missing the %q column", sheet, col)
		}
	}

	projected := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		values := make([]string, len(columns))
		for i, pos := range positions {
			if pos < len(row) {
				values[i] = strings.TrimSpace(row[pos])
			}
		}
		projected = append(projected, values)
	}
	return projected, nil
}

func wholeNumber(s string) (int, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

func positiveInt(s string) (int, bool) {
	v, ok := wholeNumber(s)
	return v, ok && v > 0
}

// validateHoles checks that described holes fit in memory and do not overlap
func validateHoles(holes []HoleData, totalMemory int) error {
	sorted := make([]HoleData, len(holes))
	copy(sorted, holes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for i, h := range sorted {
		if h.Start+h.Size > totalMemory {
			return parseErrorf("Hole %q [%d, %d) lies outside memory of %d KB", h.ID, h.Start, h.Start+h.Size, totalMemory)
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.Start+prev.Size > h.Start {
				return parseErrorf("Hole %q overlaps hole %q", h.ID, prev.ID)
			}
		}
	}
	return nil
}

// IsParseError reports whether err is, or wraps, a *ParseError
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
