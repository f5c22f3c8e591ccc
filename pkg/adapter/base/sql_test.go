package base

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"email"`, QuoteIdent("email", `"`))
	assert.Equal(t, "`email`", QuoteIdent("email", "`"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`, `"`))
}

func TestQuoteUnit(t *testing.T) {
	assert.Equal(t, `"public"."users"`, QuoteUnit("public.users", `"`))
	assert.Equal(t, `"users"`, QuoteUnit("users", `"`))
}

func TestSelectQuery(t *testing.T) {
	cols := []core.Column{
		{Name: "email", Type: "varchar"},
		{Name: "full name", Type: "text"},
	}

	q := SelectQuery("public.users", cols, `"`, 0)
	assert.Equal(t, `SELECT "email", "full name" FROM "public"."users"`, q)

	q = SelectQuery("users", cols, "`", 1000)
	assert.Equal(t, "SELECT `email`, `full name` FROM `users` LIMIT 1000", q)
}
