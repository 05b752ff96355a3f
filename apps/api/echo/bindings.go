package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/quizforge/core"
)

var orderingParam = "ordering"

// orderable fields per resource: {query field: column}
var (
	userOrderingFields = map[string]string{
		"name": "name", "username": "username", "email": "email", "created_at": "created_at", "last_login": "last_login",
	}
	institutionOrderingFields = map[string]string{"name": "name", "created_at": "created_at"}
	classOrderingFields       = map[string]string{"name": "name", "created_at": "created_at", "updated_at": "updated_at"}
	examOrderingFields        = map[string]string{
		"title": "title", "start_time": "start_time", "created_at": "created_at", "duration_minutes": "duration_minutes",
	}
	documentOrderingFields = map[string]string{"name": "name", "created_at": "created_at", "size": "size"}
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=a,-b` and keeps the fields present in allowed.
func (ord *Ordering) Bind(ctx echo.Context, allowed map[string]string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	var parsed []core.DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		parsed = append(parsed, core.DBOrdering{Field: field, Ascending: !descending})
	}
	ord.Orderings = core.FilterOrderings(parsed, allowed)
}
