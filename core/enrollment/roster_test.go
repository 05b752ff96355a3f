package enrollment

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/quizforge/core"
)

func buildWorkbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestRoster_rows(t *testing.T) {
	checkFileErr := func(t *testing.T, err error, msg string) {
		t.Helper()
		var verr *core.ValidationError
		require.True(t, errors.As(err, &verr), "err = %v", err)
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, "file", verr.Fields[0].Field)
		assert.Equal(t, msg, verr.Fields[0].Error)
	}

	t.Run("not a workbook", func(t *testing.T) {
		_, err := Roster{Content: strings.NewReader("name,email\nhero,hero@test.cd")}.rows()
		checkFileErr(t, err, errRosterUnreadable)
	})

	t.Run("header only", func(t *testing.T) {
		_, err := Roster{Content: buildWorkbook(t, []interface{}{"Name", "Email"})}.rows()
		checkFileErr(t, err, errRosterEmpty)
	})

	t.Run("no email column", func(t *testing.T) {
		_, err := Roster{Content: buildWorkbook(t,
			[]interface{}{"Name", "Phone"},
			[]interface{}{"Hero", "+243810000000"},
		)}.rows()
		checkFileErr(t, err, errRosterNoEmail)
	})

	t.Run("rows", func(t *testing.T) {
		rows, err := Roster{Content: buildWorkbook(t,
			[]interface{}{"ID", " EMAIL ", "name"},
			[]interface{}{1, "Hero@Test.cd ", "  Hero "},
			[]interface{}{2, "", ""},
			[]interface{}{3, "zero@test.cd"},
			[]interface{}{4, "", "Nameless"},
		)}.rows()
		require.NoError(t, err)
		assert.Equal(t, []rosterRow{
			{line: 2, name: "Hero", email: "hero@test.cd"},
			{line: 4, name: "", email: "zero@test.cd"},
			{line: 5, name: "Nameless", email: ""},
		}, rows)
	})
}
