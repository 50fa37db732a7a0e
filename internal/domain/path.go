package domain

import "strings"

// NormalizePath reduces raw operator or request input to the canonical
// internal form: no scheme/host, no leading or trailing slashes, no empty
// segments. Idempotent; empty input stays empty (callers treat empty as
// "unset").
func NormalizePath(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		if j := strings.IndexByte(s, '/'); j >= 0 {
			s = s[j+1:]
		} else {
			s = ""
		}
	}

	parts := strings.Split(s, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		segments = append(segments, trimmed)
	}
	return strings.Join(segments, "/")
}

// JoinPath joins a prefix and a remainder, normalizing both and tolerating
// empty sides.
func JoinPath(prefix, rest string) string {
	prefix = NormalizePath(prefix)
	rest = NormalizePath(rest)
	if prefix == "" {
		return rest
	}
	if rest == "" {
		return prefix
	}
	return prefix + "/" + rest
}

// SplitFirstSegment returns the first path segment and the remainder of an
// already-normalized path.
func SplitFirstSegment(path string) (string, string) {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

// LastSegment returns the trailing segment of an already-normalized path.
func LastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Slugify sanitizes a free-form value for use as a path segment: lowercase
// letters and digits pass through, uppercase is lowered, every other run
// of characters collapses to a single hyphen.
func Slugify(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	pendingHyphen := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
			r += 'a' - 'A'
		default:
			if b.Len() > 0 {
				pendingHyphen = true
			}
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
