package enrollment

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/quizforge/core"
)

var (
	errRosterUnreadable = "file is not a valid xlsx workbook"
	errRosterEmpty      = "roster has no rows"
	errRosterNoEmail    = "roster header must contain an email column"
)

// Roster is an uploaded xlsx workbook listing students.
// The first sheet must start with a header row holding "name" and "email" columns (any case and order).
type Roster struct {
	Content io.Reader
}

type rosterRow struct {
	line  int // 1-based sheet row
	name  string
	email string
}

func rosterError(msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: "file", Error: msg})
}

func (r Roster) rows() ([]rosterRow, error) {
	f, err := excelize.OpenReader(r.Content)
	if err != nil {
		return nil, rosterError(errRosterUnreadable)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, rosterError(errRosterEmpty)
	}
	sheetRows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "reading roster rows")
	}
	if len(sheetRows) < 2 {
		return nil, rosterError(errRosterEmpty)
	}

	nameCol, emailCol := -1, -1
	for i, cell := range sheetRows[0] {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "name":
			nameCol = i
		case "email":
			emailCol = i
		}
	}
	if emailCol < 0 {
		return nil, rosterError(errRosterNoEmail)
	}

	cellAt := func(row []string, col int) string {
		if col < 0 || col >= len(row) {
			return ""
		}
		return row[col]
	}

	rows := make([]rosterRow, 0, len(sheetRows)-1)
	for i, row := range sheetRows[1:] {
		name := core.CleanString(cellAt(row, nameCol))
		email := core.CleanString(cellAt(row, emailCol), true /* lower */)
		if name == "" && email == "" {
			continue // blank line
		}
		rows = append(rows, rosterRow{line: i + 2, name: name, email: email})
	}
	return rows, nil
}
