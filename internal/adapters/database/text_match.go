package database

import (
	"database/sql"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

// Postgres translate() maps each rune of foldFrom onto the rune at the same
// position in foldTo and deletes runes past the end of foldTo. Together they
// make the ILIKE pre-filter agree with utils.NormalizeQuery: letter variants
// and precomposed Latin accents fold to their base letter, and Arabic
// harakat, tatweel and combining diacritics are dropped.
var foldFrom, foldTo = buildFoldTables()

func buildFoldTables() (string, string) {
	pairs := []struct{ from, to string }{
		{"أإآٱ", "اااا"},
		{"ؤ", "و"},
		{"ئىی", "ييي"},
		{"ة", "ه"},
		{"ک", "ك"},
		{"àáâãäå", "aaaaaa"},
		{"ç", "c"},
		{"èéêë", "eeee"},
		{"ìíîï", "iiii"},
		{"ñ", "n"},
		{"òóôõö", "ooooo"},
		{"ùúûü", "uuuu"},
		{"ýÿ", "yy"},
	}
	var from, to strings.Builder
	for _, p := range pairs {
		from.WriteString(p.from)
		to.WriteString(p.to)
	}
	from.WriteRune('ـ')
	for r := rune(0x064B); r <= 0x065F; r++ {
		from.WriteRune(r)
	}
	from.WriteRune(0x0670)
	for r := rune(0x0300); r <= 0x036F; r++ {
		from.WriteRune(r)
	}
	return from.String(), to.String()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching fragment anywhere.
func containsPattern(fragment string) string {
	return "%" + likeEscaper.Replace(fragment) + "%"
}

// foldedColumn lower-cases and folds letter variants of a column.
func foldedColumn(column string) exp.LiteralExpression {
	return goqu.L("translate(lower(?), ?, ?)", goqu.I(column), foldFrom, foldTo)
}

// anyFieldContainsAnyWord matches rows where any column contains any word.
func anyFieldContainsAnyWord(columns []string, words []string) exp.ExpressionList {
	ors := make([]exp.Expression, 0, len(columns)*len(words))
	for _, col := range columns {
		folded := foldedColumn(col)
		for _, w := range words {
			ors = append(ors, folded.ILike(containsPattern(w)))
		}
	}
	return goqu.Or(ors...)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
