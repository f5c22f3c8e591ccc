package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
)

func colNames(cols []core.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func TestSelectColumnsDropsIdentifiersAndNumerics(t *testing.T) {
	columns := []core.Column{
		{Name: "ID", Type: "NUMBER"},
		{Name: "PK_CUSTOMER", Type: "VARCHAR2(20)"},
		{Name: "ORDER_ID", Type: "NUMBER"},
		{Name: "CREATED_AT", Type: "TIMESTAMP"},
		{Name: "SALARY", Type: "NUMBER(10,2)"},
		{Name: "EMAIL", Type: "VARCHAR2(255)"},
		{Name: "NOTES", Type: "CLOB"},
	}

	kept, skipped := SelectColumns(columns, false, true)
	assert.Equal(t, []string{"EMAIL", "NOTES"}, colNames(kept))
	assert.Equal(t, 5, skipped)
}

func TestSelectColumnsOrdersByScore(t *testing.T) {
	columns := []core.Column{
		{Name: "DESCRIPTION", Type: "TEXT"},
		{Name: "CUSTOMER_NOTE", Type: "TEXT"},
		{Name: "CARD_NUMBER", Type: "VARCHAR(19)"},
	}

	kept, skipped := SelectColumns(columns, false, true)
	assert.Equal(t, 0, skipped)

	// High-value keyword (CARD) outranks medium (CUSTOMER) outranks
	// plain textual.
	assert.Equal(t, []string{"CARD_NUMBER", "CUSTOMER_NOTE", "DESCRIPTION"}, colNames(kept))
}

func TestSelectColumnsUnoptimizedKeepsDeclaredOrder(t *testing.T) {
	columns := []core.Column{
		{Name: "ID", Type: "NUMBER"},
		{Name: "EMAIL", Type: "VARCHAR2(255)"},
		{Name: "CREATED_AT", Type: "TIMESTAMP"},
	}

	kept, skipped := SelectColumns(columns, false, false)

	// Without optimization identifier names and numerics survive, but
	// types outside the textual and numeric families never do.
	assert.Equal(t, []string{"ID", "EMAIL"}, colNames(kept))
	assert.Equal(t, 1, skipped)
}

func TestSelectColumnsCreditCardOnly(t *testing.T) {
	columns := []core.Column{
		{Name: "BALANCE", Type: "DECIMAL(10,2)"},
		{Name: "NOTES", Type: "VARCHAR2(200)"},
		{Name: "AVATAR", Type: "BLOB"},
	}

	kept, skipped := SelectColumns(columns, true, true)
	assert.Equal(t, []string{"NOTES"}, colNames(kept))
	assert.Equal(t, 2, skipped)
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, "NUMBER", normalizeType("Number(10,2)"))
	assert.Equal(t, "VARCHAR", normalizeType(" varchar(255) "))
	assert.Equal(t, "TEXT", normalizeType("text"))
	assert.True(t, isNumericType("numeric(18)"))
	assert.True(t, isTextualType("nvarchar2(100)"))
	assert.False(t, isTextualType("TIMESTAMP"))
}

func TestIsIdentifierName(t *testing.T) {
	for _, name := range []string{"ID", "id", "PK_USER", "FK_ORDER", "USER_ID", "CREATED_AT", "STATUS", "SEQ_NO", "TMP_LOAD"} {
		assert.True(t, isIdentifierName(name), "%s should be an identifier", name)
	}
	for _, name := range []string{"EMAIL", "IDENTITY_DOC", "CARD_NUMBER", "NOTES"} {
		assert.False(t, isIdentifierName(name), "%s should not be an identifier", name)
	}
}
