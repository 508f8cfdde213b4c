package search

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// condParts splits a rendered WHERE fragment back into its AND-combined
// predicates so tests can compare filter sets independent of order.
func condParts(q Query) []string {
	cond, _ := q.Where()
	parts := strings.Split(cond, " AND ")
	sort.Strings(parts)
	return parts
}

func TestWhereWithoutFilters(t *testing.T) {
	cond, args := NewQuery().Where()
	assert.Equal(t, "1=1", cond)
	assert.Empty(t, args)
}

func TestMatchNameIsCaseInsensitiveSubstring(t *testing.T) {
	cond, args := NewQuery().MatchName("JoÃo").Where()
	assert.Equal(t, "LOWER(name) LIKE ?", cond)
	require.Len(t, args, 1)
	assert.Equal(t, "%joÃo%", args[0])
}

func TestMatchAnySearchesNameOrEmail(t *testing.T) {
	cond, args := NewQuery().MatchAny("jo").Where()
	assert.Equal(t, "(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", cond)
	assert.Equal(t, []any{"%jo%", "%jo%"}, args)
}

func TestBlankFiltersAreNoOps(t *testing.T) {
	q := NewQuery().
		MatchAny("").
		MatchName("  ").
		MatchEmail("").
		WithRole("").
		WithActive(" ")
	cond, args := q.Where()
	assert.Equal(t, "1=1", cond)
	assert.Empty(t, args)
}

func TestRoleFilterAlsoHidesInactive(t *testing.T) {
	cond, args := NewQuery().WithRole("admin").Where()
	assert.Equal(t, "role = ? AND active = ?", cond)
	assert.Equal(t, []any{"admin", true}, args)
}

func TestActiveFilterCoercion(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"TRUE", true},
		{"False", false},
		{"false", false},
		{"maybe", "maybe"},
	}
	for _, tt := range tests {
		_, args := NewQuery().WithActive(tt.in).Where()
		require.Len(t, args, 1, "input %q", tt.in)
		assert.Equal(t, tt.want, args[0], "input %q", tt.in)
	}
}

func TestFilterOrderDoesNotChangePredicateSet(t *testing.T) {
	a := NewQuery().MatchName("jo").WithActive("true")
	b := NewQuery().WithActive("true").MatchName("jo")
	assert.Equal(t, condParts(a), condParts(b))
}

func TestBaseQueryReuseAcrossBranches(t *testing.T) {
	base := NewQuery().WithActive("true")
	byName := base.MatchName("jo")
	byEmail := base.MatchEmail("corp.com")

	baseCond, _ := base.Where()
	assert.Equal(t, "active = ?", baseCond)

	nameCond, _ := byName.Where()
	assert.Contains(t, nameCond, "LOWER(name) LIKE ?")
	assert.NotContains(t, nameCond, "email")

	emailCond, _ := byEmail.Where()
	assert.Contains(t, emailCond, "LOWER(email) LIKE ?")
	assert.NotContains(t, emailCond, "name")
}

func TestOrderByDefaults(t *testing.T) {
	tests := []struct {
		field, order string
		want         string
	}{
		{"", "", "name ASC"},
		{"name", "", "name ASC"},
		{"name", "desc", "name DESC"},
		{"email", "DESC", "email DESC"},
		{"email", "sideways", "email ASC"},
		{"created_at", "", "created_at DESC"},
		{"created_at", "asc", "created_at ASC"},
		{"height", "", "name ASC"},
		{"height", "desc", "name DESC"},
		{"password_hash", "", "name ASC"},
	}
	for _, tt := range tests {
		got := NewQuery().OrderBy(tt.field, tt.order).OrderClause()
		assert.Equal(t, tt.want, got, "sort_by=%q order=%q", tt.field, tt.order)
	}
}

func TestOrderByNeverTrustsInput(t *testing.T) {
	// A hostile sort field must not survive into the ORDER BY clause.
	clause := NewQuery().OrderBy("name; DROP TABLE users", "asc").OrderClause()
	assert.Equal(t, "name ASC", clause)
}
