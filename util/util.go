// Package util holds the byte classification helpers shared by the
// assembler, the vm translator and the jack tokenizer. All three stages
// work on ASCII source, so plain byte predicates are enough.
package util

func IsDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func IsLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func IsIdentStart(b byte) bool {
	return IsLetter(b) || b == '_'
}

func IsIdentPart(b byte) bool {
	return IsLetter(b) || IsDigit(b) || b == '_'
}

// IsSymbolStart reports whether b may begin a hack assembly symbol, which
// allows a few more characters than a jack identifier.
func IsSymbolStart(b byte) bool {
	return IsLetter(b) || b == '_' || b == '.' || b == '$' || b == ':'
}

func IsSymbolPart(b byte) bool {
	return IsSymbolStart(b) || IsDigit(b)
}

func IsSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == '\f' || b == '\v'
}
