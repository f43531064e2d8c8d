package sheets

import "fmt"

// RangeForData derives the A1 range covering data on the named sheet. The
// range is anchored at A1 and spans the longest row, so ragged rows are
// covered by the widest one; cells missing from shorter rows are left
// untouched by the update. Data must contain at least one row with at least
// one cell.
func RangeForData(sheet string, data [][]string) (string, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	if len(data) == 0 {
		return "", fmt.Errorf("data must contain at least one row")
	}

	cols := 0
	for _, row := range data {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return "", fmt.Errorf("data must contain at least one cell")
	}

	return fmt.Sprintf("%s!A1:%s%d", sheet, columnLetter(cols), len(data)), nil
}

// columnLetter converts a 1-based column number to its A1 letter form,
// for example 1 is A, 26 is Z and 27 is AA.
func columnLetter(n int) string {
	var letters []byte
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters)
}
