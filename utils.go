package reputation

import (
	"fmt"
	"strings"
)

const keySeparator = ":"

func isKeyChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}

// IsKeyComponent reports whether s may be used as one segment of a composite key.
func IsKeyComponent(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isKeyChar(s[i]) {
			return false
		}
	}
	return true
}

func ComposeVoteKey(author, target, tag string) string {
	return author + keySeparator + target + keySeparator + tag
}

func ParseVoteKey(key string) (author, target, tag string, err error) {
	parts := strings.Split(key, keySeparator)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid vote key %q", key)
	}
	for _, p := range parts {
		if !IsKeyComponent(p) {
			return "", "", "", fmt.Errorf("invalid vote key %q", key)
		}
	}
	return parts[0], parts[1], parts[2], nil
}

func ComposeReputationKey(user, tag string) string {
	return user + keySeparator + tag
}

func ParseReputationKey(key string) (user, tag string, err error) {
	user, tag, ok := strings.Cut(key, keySeparator)
	if !ok || !IsKeyComponent(user) || !IsKeyComponent(tag) {
		return "", "", fmt.Errorf("invalid reputation key %q", key)
	}
	return user, tag, nil
}

// DescriptionTerm renders a single searchable token. Descriptions are a
// concatenation of terms, so matching ";name=value;" never hits a neighbour.
func DescriptionTerm(name, value string) string {
	return ";" + name + "=" + value + ";"
}

func ComposeDescription(pairs ...string) string {
	if len(pairs)%2 != 0 {
		panic("ComposeDescription: odd number of arguments")
	}
	var b strings.Builder
	b.WriteString(";")
	for i := 0; i < len(pairs); i += 2 {
		b.WriteString(pairs[i])
		b.WriteString("=")
		b.WriteString(pairs[i+1])
		b.WriteString(";")
	}
	return b.String()
}
