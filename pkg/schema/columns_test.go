package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "order id", expected: "ORDER_ID"},
		{input: "  Amount ", expected: "AMOUNT"},
		{input: "REGION", expected: "REGION"},
		{input: "unit price eur", expected: "UNIT_PRICE_EUR"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name             string
		file             []string
		table            []string
		expectMismatch   bool
		expectMissing    []string
		expectUnexpected []string
	}{
		{
			name:  "same set in a different order",
			file:  []string{"ID", "AMOUNT", "REGION"},
			table: []string{"REGION", "ID", "AMOUNT"},
		},
		{
			name:  "names are normalized before comparing",
			file:  []string{"id", "unit price"},
			table: []string{"ID", "UNIT_PRICE"},
		},
		{
			name:             "extra file column",
			file:             []string{"ID", "AMOUNT", "REGION", "NOTE"},
			table:            []string{"ID", "AMOUNT", "REGION"},
			expectMismatch:   true,
			expectUnexpected: []string{"NOTE"},
		},
		{
			name:           "missing file column",
			file:           []string{"ID", "AMOUNT"},
			table:          []string{"ID", "AMOUNT", "REGION"},
			expectMismatch: true,
			expectMissing:  []string{"REGION"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Compare(tt.file, tt.table)
			if !tt.expectMismatch {
				assert.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrSchemaMismatch)

			var mismatch *MismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, tt.file, mismatch.FileColumns)
			assert.Equal(t, tt.table, mismatch.TableColumns)
			assert.Equal(t, tt.expectMissing, mismatch.Missing)
			assert.Equal(t, tt.expectUnexpected, mismatch.Unexpected)
		})
	}
}

func TestMismatchError_Message(t *testing.T) {
	err := Compare([]string{"ID", "AMOUNT", "REGION", "NOTE"}, []string{"ID", "AMOUNT", "REGION"})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "ID,AMOUNT,REGION,NOTE")
	assert.Contains(t, err.Error(), "table columns: ID,AMOUNT,REGION")
	assert.Contains(t, err.Error(), "unexpected: [NOTE]")
}

func TestColumnSet(t *testing.T) {
	set := NewColumnSet("id", "Amount")

	assert.True(t, set.Contains("ID"))
	assert.True(t, set.Contains(" amount "))
	assert.False(t, set.Contains("REGION"))
	assert.True(t, set.Equal(NewColumnSet("AMOUNT", "ID")))
	assert.False(t, set.Equal(NewColumnSet("ID")))
	assert.Equal(t, []string{"AMOUNT"}, set.Difference(NewColumnSet("ID")))
}
