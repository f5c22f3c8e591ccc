package scan

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/metrics"
)

// identifierPatterns match column names that cannot hold personal data:
// surrogate keys, foreign keys, flags, and bookkeeping columns.
var identifierPatterns = compilePatterns([]string{
	`^ID$`, `^PK_`, `^FK_`, `_ID$`,
	`^CREATED_`, `^UPDATED_`, `^MODIFIED_`,
	`^VERSION$`, `^STATUS$`, `^FLAG$`,
	`^DELETED$`, `^ACTIVE$`, `^ENABLED$`,
	`^SORT_`, `^ORDER_`, `^SEQ_`,
	`^TEMP_`, `^TMP_`, `^BKP_`,
})

// highValueKeywords in a column name score +10 each; these names almost
// always label the data the rules target.
var highValueKeywords = []string{
	"CARD", "CREDIT", "DEBIT", "PAYMENT",
	"SSN", "SOCIAL", "TAX",
	"EMAIL", "MAIL", "ADDRESS",
	"PHONE", "TEL", "MOBILE",
	"PASSWORD", "PASS", "SECRET", "KEY",
	"NAME", "FIRST", "LAST", "FULL",
}

// mediumValueKeywords score +5 each; business terms that correlate with
// personal data without naming it.
var mediumValueKeywords = []string{
	"USER", "CUSTOMER", "CLIENT",
	"ACCOUNT", "BANK", "FINANCIAL",
	"PERSONAL", "PRIVATE", "CONFIDENTIAL",
}

var numericTypes = map[string]bool{
	"NUMBER": true, "FLOAT": true, "DECIMAL": true, "NUMERIC": true,
	"INT": true, "INTEGER": true, "BIGINT": true, "SMALLINT": true,
	"TINYINT": true, "MEDIUMINT": true, "DOUBLE": true, "DOUBLE PRECISION": true,
	"REAL": true, "SERIAL": true, "BIGSERIAL": true,
	"BOOLEAN": true, "BOOL": true, "BIT": true,
}

var textualTypes = map[string]bool{
	"CHAR": true, "VARCHAR": true, "VARCHAR2": true, "NCHAR": true,
	"NVARCHAR": true, "NVARCHAR2": true, "CHARACTER": true,
	"CHARACTER VARYING": true, "TEXT": true, "TINYTEXT": true,
	"MEDIUMTEXT": true, "LONGTEXT": true, "CLOB": true, "NCLOB": true,
	"STRING": true, "JSON": true, "JSONB": true, "XML": true,
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile("(?i)" + p)
	}
	return out
}

// normalizeType uppercases a declared type and strips its precision, so
// "Number(10,2)" and "varchar(255)" classify by family.
func normalizeType(declared string) string {
	t := strings.ToUpper(strings.TrimSpace(declared))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

func isNumericType(declared string) bool {
	return numericTypes[normalizeType(declared)]
}

func isTextualType(declared string) bool {
	return textualTypes[normalizeType(declared)]
}

func isIdentifierName(name string) bool {
	for _, re := range identifierPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// columnScore rates how likely a column is to hold matchable data.
func columnScore(col core.Column) int {
	score := 0
	upper := strings.ToUpper(col.Name)
	for _, kw := range highValueKeywords {
		if strings.Contains(upper, kw) {
			score += 10
		}
	}
	for _, kw := range mediumValueKeywords {
		if strings.Contains(upper, kw) {
			score += 5
		}
	}
	if isTextualType(col.Type) {
		score += 3
	}
	return score
}

// SelectColumns decides which of a unit's columns get fetched and in what
// order. A credit-card-only scan restricts to textual declared types
// outright. With column optimization on, identifier-like names and numeric
// types are dropped and the survivors are ordered highest score first;
// with it off, textual and numeric columns all pass in declared order.
// Types outside both families (timestamps, binaries) are never fetched.
func SelectColumns(columns []core.Column, creditCardOnly, optimize bool) (kept []core.Column, skipped int) {
	for _, col := range columns {
		switch {
		case creditCardOnly && !isTextualType(col.Type):
			metrics.ColumnsSkipped.WithLabelValues("type").Inc()
			skipped++
		case optimize && isIdentifierName(col.Name):
			metrics.ColumnsSkipped.WithLabelValues("identifier").Inc()
			skipped++
		case optimize && isNumericType(col.Type):
			metrics.ColumnsSkipped.WithLabelValues("numeric").Inc()
			skipped++
		case !isTextualType(col.Type) && !isNumericType(col.Type):
			metrics.ColumnsSkipped.WithLabelValues("type").Inc()
			skipped++
		default:
			kept = append(kept, col)
		}
	}

	if optimize {
		sort.SliceStable(kept, func(i, j int) bool {
			return columnScore(kept[i]) > columnScore(kept[j])
		})
	}
	return kept, skipped
}
