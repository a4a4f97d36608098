package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileUsesFirstRowOnly(t *testing.T) {
	tbl, err := Parse("a,b,c\n1,x,2023-01-01\nfoo,2,bar\n", ParseOptions{})
	require.NoError(t, err)

	types := Profile(tbl.Headers, tbl.Rows)
	assert.Equal(t, ColumnTypes{"a": KindNumber, "b": KindString, "c": KindDate}, types)
}

func TestProfileEmpty(t *testing.T) {
	assert.Empty(t, Profile([]string{"a"}, nil))
}

func TestSelectColumns(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		types   ColumnTypes
		want    Bindings
	}{
		{
			name:    "date column wins time",
			headers: []string{"region", "when", "sales", "cost"},
			types:   ColumnTypes{"region": KindString, "when": KindDate, "sales": KindNumber, "cost": KindNumber},
			want:    Bindings{Time: "when", Numeric: "sales", Category: "region", Numeric2: "cost", Numeric3: "cost"},
		},
		{
			name:    "name match for time",
			headers: []string{"Country", "Fiscal_Year", "gdp"},
			types:   ColumnTypes{"Country": KindString, "Fiscal_Year": KindNumber, "gdp": KindNumber},
			want:    Bindings{Time: "Fiscal_Year", Numeric: "Fiscal_Year", Category: "Country", Numeric2: "gdp", Numeric3: "gdp"},
		},
		{
			name:    "category fallback for time",
			headers: []string{"category", "value"},
			types:   ColumnTypes{"category": KindString, "value": KindNumber},
			want:    Bindings{Time: "category", Numeric: "value", Category: "category", Numeric2: "value", Numeric3: ""},
		},
		{
			name:    "all numeric",
			headers: []string{"x", "y", "size"},
			types:   ColumnTypes{"x": KindNumber, "y": KindNumber, "size": KindNumber},
			want:    Bindings{Time: "x", Numeric: "x", Category: "x", Numeric2: "y", Numeric3: "size"},
		},
		{
			name:    "no numbers falls back by position",
			headers: []string{"a", "b"},
			types:   ColumnTypes{"a": KindString, "b": KindString},
			want:    Bindings{Time: "a", Numeric: "b", Category: "a", Numeric2: "b", Numeric3: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectColumns(tt.headers, tt.types))
		})
	}
}

func TestSelectColumnsDeterministic(t *testing.T) {
	headers := []string{"b", "a", "c"}
	types := ColumnTypes{"a": KindNumber, "b": KindNumber, "c": KindString}

	first := SelectColumns(headers, types)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, SelectColumns(headers, types))
	}
	assert.Equal(t, "b", first.Numeric)
}
