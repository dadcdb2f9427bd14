package repositories

import (
	"fmt"
	"strings"
)

// Sortable columns per listing. Sort columns are spliced into SQL, so they
// must be validated against these whitelists; anything else falls back to
// created_at.
var (
	userSortColumns = map[string]bool{
		"created_at": true,
		"updated_at": true,
		"email":      true,
		"name":       true,
		"rating":     true,
	}
	rideSortColumns = map[string]bool{
		"created_at": true,
		"updated_at": true,
		"status":     true,
		"fare":       true,
	}
	paymentSortColumns = map[string]bool{
		"created_at": true,
		"updated_at": true,
		"status":     true,
		"amount":     true,
	}
)

// orderByClause builds the ORDER BY fragment for a list query. Unknown or
// empty sort columns fall back to created_at; any direction other than "asc"
// means descending, so the default listing order is newest first.
func orderByClause(sortBy, sortOrder string, allowed map[string]bool) string {
	column := "created_at"
	if allowed[sortBy] {
		column = sortBy
	}

	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}

	return fmt.Sprintf(` ORDER BY %s %s`, column, direction)
}
