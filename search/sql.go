package search

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

var sqlColumns = map[string]bool{
	ColJobsite: true, ColPosition: true, ColEvaluator: true, ColEmployer: true, ColName: true,
	ColJobType: true, ColSex: true, ColControlNumber: true, ColCreatedAt: true, ColDeletedAt: true,
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Where renders conditions as an AND-joined SQL boolean expression. placeholder(n) returns the
// dialect's bind marker for the n-th argument, counting from firstArg. An empty condition list
// renders as "1=1".
//
// Text conditions with non-ASCII values are skipped: SQL LOWER does not fold them the way
// Normalize does, and the rendered fragment must never drop a row Match would accept.
func Where(conds []Condition, firstArg int, placeholder func(n int) string) (string, []any, error) {
	if len(conds) == 0 {
		return "1=1", nil, nil
	}
	var (
		parts []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return placeholder(firstArg + len(args) - 1)
	}
	for _, c := range conds {
		if !sqlColumns[c.Column] {
			return "", nil, fmt.Errorf("search: column %q cannot be queried", c.Column)
		}
		if v, ok := c.Value.(string); ok && !isASCII(v) {
			continue
		}
		switch c.Op {
		case OpEquals:
			parts = append(parts, fmt.Sprintf("LOWER(TRIM(%s)) = %s", c.Column, next(c.Value)))
		case OpContains:
			v, _ := c.Value.(string)
			parts = append(parts, fmt.Sprintf(`LOWER(%s) LIKE %s ESCAPE '\'`, c.Column, next("%"+likeEscaper.Replace(v)+"%")))
		case OpAtOrAfter:
			parts = append(parts, fmt.Sprintf("%s >= %s", c.Column, next(c.Value)))
		case OpBefore:
			parts = append(parts, fmt.Sprintf("%s < %s", c.Column, next(c.Value)))
		case OpIsNull:
			parts = append(parts, c.Column+" IS NULL")
		case OpNotNull:
			parts = append(parts, c.Column+" IS NOT NULL")
		default:
			return "", nil, fmt.Errorf("search: unsupported operator %d", c.Op)
		}
	}
	if len(parts) == 0 {
		return "1=1", nil, nil
	}
	return strings.Join(parts, " AND "), args, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
