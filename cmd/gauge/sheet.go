package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/streamflow-engine/internal/domain"
)

// readFieldSheet parses a CSV field sheet. The header names the columns
// (distance, depth, method, n_02d, t_02d, n_06d, t_06d, n_08d, t_08d,
// meter_id, angle, index) in any order; blank cells are missing values.
func readFieldSheet(r io.Reader) ([]domain.VerticalRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"distance", "depth"} {
		if _, ok := colIdx[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	var rows []domain.VerticalRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := parseSheetRow(rec, colIdx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseSheetRow(rec []string, colIdx map[string]int) (domain.VerticalRow, error) {
	get := func(col string) string {
		if i, ok := colIdx[col]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	var (
		row      domain.VerticalRow
		firstErr error
	)
	num := func(col string) *float64 {
		s := get(col)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("column %s: %q is not a number", col, s)
		}
		return &v
	}

	row.Distance = num("distance")
	row.Depth = num("depth")
	row.Method = get("method")
	row.N02, row.T02 = num("n_02d"), num("t_02d")
	row.N06, row.T06 = num("n_06d"), num("t_06d")
	row.N08, row.T08 = num("n_08d"), num("t_08d")
	row.MeterID = get("meter_id")
	row.Angle = num("angle")
	row.Index = num("index")

	return row, firstErr
}
