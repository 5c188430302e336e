// Package demand loads and extends the viewer demand tables consumed by the
// simulation.
package demand

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/signalsfoundry/leo-transcode-sim/model"
)

// ErrMalformedCSV indicates a demand file that cannot be interpreted.
var ErrMalformedCSV = errors.New("malformed demand csv")

// LoadFile opens path and parses it with LoadCSV.
func LoadFile(path string, bitrates []model.Bitrate, regions int) (model.DemandSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open demand file: %w", err)
	}
	defer f.Close()

	series, err := LoadCSV(f, bitrates, regions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}

// LoadCSV parses a demand table with a header row naming the columns
// t, region, k1..kN. Column ki holds the viewer count of bitrates[i-1].
//
// A missing t column puts every row in slot 1; a missing ki column or an
// empty cell reads as zero. Rows for regions outside [1, regions] are
// skipped. Every region of a slot that appears in the file gets an entry for
// every bitrate.
func LoadCSV(r io.Reader, bitrates []model.Bitrate, regions int) (model.DemandSeries, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMalformedCSV)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	regionCol, ok := cols["region"]
	if !ok {
		return nil, fmt.Errorf("%w: no region column in header %v", ErrMalformedCSV, header)
	}
	slotCol, hasSlot := cols["t"]

	series := model.DemandSeries{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}

		region, err := intCell(rec, regionCol)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d region: %v", ErrMalformedCSV, line, err)
		}
		if region < 1 || region > regions {
			continue
		}
		slot := 1
		if hasSlot {
			if slot, err = intCell(rec, slotCol); err != nil {
				return nil, fmt.Errorf("%w: line %d t: %v", ErrMalformedCSV, line, err)
			}
			if slot < 1 {
				return nil, fmt.Errorf("%w: line %d: slot %d before 1", ErrMalformedCSV, line, slot)
			}
		}

		for i, b := range bitrates {
			count := 0.0
			if col, ok := cols["k"+strconv.Itoa(i+1)]; ok {
				if count, err = floatCell(rec, col); err != nil {
					return nil, fmt.Errorf("%w: line %d k%d: %v", ErrMalformedCSV, line, i+1, err)
				}
				if count < 0 {
					return nil, fmt.Errorf("%w: line %d k%d: negative viewer count %v", ErrMalformedCSV, line, i+1, count)
				}
			}
			series.Set(slot, region, b, count)
		}
	}
	return series, nil
}

func cell(rec []string, col int) string {
	if col >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[col])
}

func intCell(rec []string, col int) (int, error) {
	v := cell(rec, col)
	if v == "" {
		return 0, errors.New("empty cell")
	}
	// spreadsheets export whole numbers as "3.0"
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not a whole number", v)
	}
	return int(f), nil
}

func floatCell(rec []string, col int) (float64, error) {
	v := cell(rec, col)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite count", v)
	}
	return f, nil
}
