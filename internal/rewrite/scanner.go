package rewrite

// matchingClose returns the closing token paired with an opening delimiter.
func matchingClose(open byte) (byte, bool) {
	switch open {
	case '{':
		return '}', true
	case '(':
		return ')', true
	case '[':
		return ']', true
	}
	return 0, false
}

// ScanBalanced returns the index of the delimiter closing the one at openIdx,
// counting nested pairs of the same kind. It returns ok=false when openIdx is
// out of range, not an opening delimiter, or unmatched before end of text.
func ScanBalanced(text string, openIdx int) (int, bool) {
	if openIdx < 0 || openIdx >= len(text) {
		return 0, false
	}
	open := text[openIdx]
	close, ok := matchingClose(open)
	if !ok {
		return 0, false
	}

	depth := 1
	for i := openIdx + 1; i < len(text); i++ {
		switch text[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// lineStart returns the index of the first character of the line containing idx.
func lineStart(text string, idx int) int {
	for i := idx - 1; i >= 0; i-- {
		if text[i] == '\n' {
			return i + 1
		}
	}
	return 0
}

// skipSpace advances idx past spaces, tabs and carriage returns.
func skipSpace(text string, idx int) int {
	for idx < len(text) && (text[idx] == ' ' || text[idx] == '\t' || text[idx] == '\r') {
		idx++
	}
	return idx
}
