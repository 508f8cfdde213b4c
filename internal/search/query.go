// Package search implements the user directory query pipeline: an immutable
// query builder that turns whitelisted request parameters into parameterized
// SQL fragments, and a service that combines filtering, sorting, counting
// and pagination into a single result.
package search

import "strings"

// Sortable columns and their default directions.  Anything outside this
// table silently falls back to sorting by name.
var sortColumns = map[string]string{
	"name":       "asc",
	"email":      "asc",
	"role":       "asc",
	"created_at": "desc",
}

const defaultSortField = "name"

// condition is one AND-combined predicate: a SQL fragment with placeholders
// and its arguments.
type condition struct {
	expr string
	args []any
}

// Query is an immutable description of a filtered, sorted view over the
// users table.  Every refinement returns a new Query; a base query can be
// shared across branches without any step observing another's filters.
type Query struct {
	conds     []condition
	sortField string
	sortDesc  bool
}

// NewQuery returns the unfiltered query with the default sort (name asc).
func NewQuery() Query {
	return Query{sortField: defaultSortField}
}

// with returns a copy of q with one more predicate appended.  The backing
// slice is cloned so refinements of a shared base never alias each other.
func (q Query) with(expr string, args ...any) Query {
	conds := make([]condition, len(q.conds), len(q.conds)+1)
	copy(conds, q.conds)
	q.conds = append(conds, condition{expr: expr, args: args})
	return q
}

// MatchAny filters on a case-insensitive substring match against name OR
// email.  Blank terms are a no-op.
func (q Query) MatchAny(term string) Query {
	term = strings.TrimSpace(term)
	if term == "" {
		return q
	}
	pat := likePattern(term)
	return q.with("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", pat, pat)
}

// MatchName filters on a case-insensitive substring match against name.
func (q Query) MatchName(name string) Query {
	name = strings.TrimSpace(name)
	if name == "" {
		return q
	}
	return q.with("LOWER(name) LIKE ?", likePattern(name))
}

// MatchEmail filters on a case-insensitive substring match against email.
func (q Query) MatchEmail(email string) Query {
	email = strings.TrimSpace(email)
	if email == "" {
		return q
	}
	return q.with("LOWER(email) LIKE ?", likePattern(email))
}

// WithRole filters on an exact role match.  Filtering by role also hides
// inactive accounts; the upstream product behaves this way and directory
// consumers rely on it, so it is kept even though role and active look like
// independent dimensions.
func (q Query) WithRole(role string) Query {
	role = strings.TrimSpace(role)
	if role == "" {
		return q
	}
	return q.with("role = ?", role).with("active = ?", true)
}

// WithActive filters on the active flag.  "true" and "false" in any case
// are coerced to booleans; any other value is passed to the database as-is,
// matching the permissive behavior of the original directory.
func (q Query) WithActive(value string) Query {
	value = strings.TrimSpace(value)
	if value == "" {
		return q
	}
	switch strings.ToLower(value) {
	case "true":
		return q.with("active = ?", true)
	case "false":
		return q.with("active = ?", false)
	}
	return q.with("active = ?", value)
}

// OrderBy sets the sort field and direction.  Unknown fields fall back to
// name; unknown directions fall back to the field's default (asc everywhere
// except created_at, which defaults to newest first).  Sorting never errors.
func (q Query) OrderBy(field, order string) Query {
	field = strings.TrimSpace(field)
	def, ok := sortColumns[field]
	if !ok {
		field = defaultSortField
		def = sortColumns[field]
	}
	dir := strings.ToLower(strings.TrimSpace(order))
	if dir != "asc" && dir != "desc" {
		dir = def
	}
	q.sortField = field
	q.sortDesc = dir == "desc"
	return q
}

// Where renders the AND-combined predicate list as a SQL fragment plus its
// ordered arguments.  With no filters it returns "1=1" so callers can
// always interpolate it after WHERE.
func (q Query) Where() (string, []any) {
	if len(q.conds) == 0 {
		return "1=1", nil
	}
	exprs := make([]string, 0, len(q.conds))
	var args []any
	for _, c := range q.conds {
		exprs = append(exprs, c.expr)
		args = append(args, c.args...)
	}
	return strings.Join(exprs, " AND "), args
}

// OrderClause renders the ORDER BY expression.  The column comes from the
// closed sortColumns table, never from request input.
func (q Query) OrderClause() string {
	dir := "ASC"
	if q.sortDesc {
		dir = "DESC"
	}
	return q.sortField + " " + dir
}

func likePattern(term string) string {
	return "%" + strings.ToLower(term) + "%"
}
