package workload

import (
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/xuri/excelize/v2"
)

var templateProcessNames = []string{"ProcessA", "ProcessB", "ProcessC", "ProcessD", "ProcessE", "ProcessF"}

// RandomBundle builds a valid demo workload: 3-6 processes of 50-249 KB,
// enough memory for one and a half times their total (at least 512 KB) and
// 2-4 non-overlapping holes laid out left to right.
func RandomBundle(rng *rand.Rand) *Bundle {
	numProcesses := rng.Intn(4) + 3
	b := &Bundle{
		Processes: make([]ProcessData, 0, numProcesses),
	}

	totalSize := 0
	for i := 0; i < numProcesses; i++ {
		size := rng.Intn(200) + 50
		totalSize += size
		b.Processes = append(b.Processes, ProcessData{Name: templateProcessNames[i], Size: size})
	}
	b.TotalMemory = int(math.Max(512, math.Ceil(float64(totalSize)*1.5)))

	numHoles := rng.Intn(3) + 2
	slot := b.TotalMemory / (numHoles + 1)
	start := 0
	for i := 0; i < numHoles; i++ {
		size := rng.Intn(int(float64(slot)*0.8)) + int(float64(slot)*0.2)
		gap := rng.Intn(50) + 20
		b.Holes = append(b.Holes, HoleData{ID: fmt.Sprintf("Hole%d", i+1), Start: start, Size: size})
		start += size + gap
	}

	// Scale starts and sizes together so the layout stays ordered and disjoint
	last := b.Holes[len(b.Holes)-1]
	if end := last.Start + last.Size; end > b.TotalMemory {
		scale := float64(b.TotalMemory) / float64(end)
		for i := range b.Holes {
			b.Holes[i].Start = int(float64(b.Holes[i].Start) * scale)
			b.Holes[i].Size = int(math.Max(1, math.Floor(float64(b.Holes[i].Size)*scale)))
		}
	}

	return b
}

// Workbook renders the bundle as a workbook with Processes, Memory and Holes sheets
func (b *Bundle) Workbook() (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetProcesses); err != nil {
		f.Close()
		return nil, err
	}
	for _, sheet := range []string{SheetMemory, SheetHoles} {
		if _, err := f.NewSheet(sheet); err != nil {
			f.Close()
			return nil, err
		}
	}

	rows := map[string][][]interface{}{
		SheetProcesses: {{ColProcessName, ColSize}},
		SheetMemory:    {{ColTotalMemory}, {b.TotalMemory}},
		SheetHoles:     {{ColHoleID, ColStart, ColSize}},
	}
	for _, p := range b.Processes {
		rows[SheetProcesses] = append(rows[SheetProcesses], []interface{}{p.Name, p.Size})
	}
	for _, h := range b.Holes {
		rows[SheetHoles] = append(rows[SheetHoles], []interface{}{h.ID, h.Start, h.Size})
	}

	for sheet, sheetRows := range rows {
		for i, row := range sheetRows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				f.Close()
				return nil, err
			}
			row := row
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				f.Close()
				return nil, fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
			}
		}
	}
	f.SetActiveSheet(0)

	return f, nil
}

// GenerateTemplate returns a workbook holding a random demo workload
func GenerateTemplate(rng *rand.Rand) (*excelize.File, error) {
	return RandomBundle(rng).Workbook()
}

// WriteTemplate writes a random demo workbook to w
func WriteTemplate(w io.Writer, rng *rand.Rand) error {
	f, err := GenerateTemplate(rng)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
