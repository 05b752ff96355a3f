package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "algebra", want: "algebra"},
		{name: "percent", in: "100%", want: `100\%`},
		{name: "underscore", in: "exam_1", want: `exam\_1`},
		{name: "backslash", in: `a\b`, want: `a\\b`},
		{name: "all wildcards", in: `%_\`, want: `\%\_\\`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeLike(tt.in))
		})
	}
}

func TestSearchAny(t *testing.T) {
	query, args, err := psql.Select("id").From("exams").Where(searchAny("50%_off", "title", "description")).ToSql()
	require.NoError(t, err)
	assert.Equal(t, `SELECT id FROM exams WHERE (title ILIKE $1 ESCAPE '\' OR description ILIKE $2 ESCAPE '\')`, query)
	assert.Equal(t, []interface{}{`%50\%\_off%`, `%50\%\_off%`}, args)
}
