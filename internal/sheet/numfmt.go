package sheet

// Built-in number formats that render as dates or times. Everything outside
// these ranges is currency, accounting, percentage or plain numeric.
var builtinDateFormats = map[int]bool{}

func init() {
	for _, r := range [][2]int{{14, 22}, {27, 36}, {45, 47}, {50, 58}} {
		for id := r[0]; id <= r[1]; id++ {
			builtinDateFormats[id] = true
		}
	}
}

// IsDateFormatID reports whether a built-in number format identifier renders
// as a date or time.
func IsDateFormatID(id int) bool {
	return builtinDateFormats[id]
}

// IsDateFormatCode reports whether a custom number format code renders as a
// date or time. A code counts as a date format when it contains a date or
// time placeholder outside quoted literals, bracketed sections and escaped
// characters.
func IsDateFormatCode(code string) bool {
	inQuote := false
	inBracket := false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case inBracket:
			if c == ']' {
				inBracket = false
			}
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\':
			i++
		default:
			switch c {
			case 'y', 'Y', 'm', 'M', 'd', 'D', 'h', 'H', 's', 'S':
				return true
			}
		}
	}
	return false
}
