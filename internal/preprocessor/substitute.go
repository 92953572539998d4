package preprocessor

import "strings"

// substitute replaces every maximal run of identifier characters that names
// a macro with the macro's value. Replacement text is not rescanned.
func substitute(macros map[string]string, s string) string {
	if len(macros) == 0 || s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	start := 0
	for i := 1; i <= len(s); i++ {
		if i < len(s) && isIdentPart(s[i]) == isIdentPart(s[i-1]) {
			continue
		}
		part := s[start:i]
		if val, ok := macros[part]; ok && isIdentPart(part[0]) {
			b.WriteString(val)
		} else {
			b.WriteString(part)
		}
		start = i
	}
	return b.String()
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

// ValidName reports whether name can be used as a macro name.
func ValidName(name string) bool {
	if name == "" || !isIdentStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) {
			return false
		}
	}
	return true
}
