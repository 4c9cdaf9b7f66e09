package inbound

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
)

const (
	ColumnFullName = "Full Name"
	ColumnEmail    = "Email"
)

var ErrMissingColumn = errors.New("recipients: missing column")

// ReadRecipients parses a CSV document with at least the "Full Name" and
// "Email" columns. Header names match case-insensitively and rows keep file
// order. Cells are not validated here.
func ReadRecipients(r io.Reader) ([]entity.Recipient, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, ColumnFullName)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	nameIdx, emailIdx := -1, -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(h, ColumnFullName):
			nameIdx = i
		case strings.EqualFold(h, ColumnEmail):
			emailIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, ColumnFullName)
	}
	if emailIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, ColumnEmail)
	}

	var recipients []entity.Recipient
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(recipients)+2, err)
		}

		recipients = append(recipients, entity.Recipient{
			FullName: cell(row, nameIdx),
			Email:    cell(row, emailIdx),
		})
	}

	return recipients, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
