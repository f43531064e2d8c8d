package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeForData(t *testing.T) {
	tests := []struct {
		name  string
		sheet string
		data  [][]string
		want  string
	}{
		{
			name:  "header plus ragged rows",
			sheet: "Sheet1",
			data:  [][]string{{"H1", "H2"}, {"v1", "v2"}, {"v3"}},
			want:  "Sheet1!A1:B3",
		},
		{
			name:  "single cell",
			sheet: "Sheet1",
			data:  [][]string{{"only"}},
			want:  "Sheet1!A1:A1",
		},
		{
			name:  "empty sheet name falls back to default",
			sheet: "",
			data:  [][]string{{"a", "b"}},
			want:  "Sheet1!A1:B1",
		},
		{
			name:  "custom sheet name",
			sheet: "Expenses",
			data:  [][]string{{"a"}, {"b"}},
			want:  "Expenses!A1:A2",
		},
		{
			name:  "widest row wins",
			sheet: "Sheet1",
			data:  [][]string{{"a"}, {"b", "c", "d"}, {"e", "f"}},
			want:  "Sheet1!A1:C3",
		},
		{
			name:  "wide row crosses single-letter boundary",
			sheet: "Sheet1",
			data:  [][]string{make([]string, 27)},
			want:  "Sheet1!A1:AA1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RangeForData(tt.sheet, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRangeForDataRejectsEmpty(t *testing.T) {
	_, err := RangeForData("Sheet1", nil)
	assert.Error(t, err)

	_, err = RangeForData("Sheet1", [][]string{})
	assert.Error(t, err)

	_, err = RangeForData("Sheet1", [][]string{{}, {}})
	assert.Error(t, err)
}

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "A"},
		{2, "B"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, columnLetter(tt.n), "columnLetter(%d)", tt.n)
	}
}
