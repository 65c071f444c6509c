package dispatch

import "strings"

// methodKey translates a dotted/slashed LSP method name into a handler
// table lookup key: "workspace/xreferences" → "workspaceXreferences",
// produced by lower-camelizing path segments.
func methodKey(method string) string {
	segments := strings.FieldsFunc(method, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ""
	}

	var b strings.Builder
	for i, seg := range segments {
		if i == 0 {
			b.WriteString(lowerFirst(seg))
			continue
		}
		b.WriteString(upperFirst(seg))
	}
	return b.String()
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
