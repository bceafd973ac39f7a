package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/mo"

	"ragledger/internal/models"
)

const bom = "\ufeff"

// parseCSV renders each data row as a labelled block and joins them into a single page without a number.
//
//	Row 1:
//	date: 2024-01-02
//	amount: 10.00
func parseCSV(r io.Reader) ([]models.Page, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], bom)

	var rows []string
	for n := 1; ; n++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", n, err)
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("csv row %d has %d fields, header has %d", n, len(record), len(header))
		}
		rows = append(rows, formatRow(n, header, record))
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return []models.Page{{Text: strings.Join(rows, "\n\n"), Number: mo.None[int]()}}, nil
}

func formatRow(n int, header, record []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Row %d:\n", n)
	for i, col := range header {
		var val string
		if i < len(record) {
			val = record[i]
		}
		fmt.Fprintf(&b, "%s: %s\n", col, val)
	}
	return b.String()
}
