package tickets

import "fmt"

// numberPrefix is the display prefix of every ticket number.
const numberPrefix = "TKT"

// FormatNumber renders a ticket number as TKT-<year>-<seq> with the sequence
// zero-padded to six digits. Sequences past 999999 simply grow wider. The
// function is pure; the caller supplies the reserved sequence value.
func FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", numberPrefix, year, seq)
}
