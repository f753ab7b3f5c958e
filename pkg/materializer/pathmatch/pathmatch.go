package pathmatch

import (
	"regexp"
	"strings"
)

// Normalize collapses runs of "/" into one and drops a trailing slash
// (except for the root path "/"), so "/foo//bar/" and "/foo/bar"
// compare equal. The materializer applies it to each route spec's match
// value when it builds the route rule (incoming request paths are matched
// by the proxy and never pass through it), which keeps determinism
// requirement "byte-identical resource lists for identical inputs" from
// being violated by slash-spelling noise in operator-supplied specs.
func Normalize(path string) string {
	if path == "" {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	lastSlash := false
	for _, r := range path {
		if r == '/' {
			if lastSlash {
				continue
			}
			lastSlash = true
		} else {
			lastSlash = false
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > 1 && strings.HasSuffix(out, "/") {
		out = out[:len(out)-1]
	}
	return out
}

var (
	uuidPattern        = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	numericIDPattern   = regexp.MustCompile(`^\d+$`)
	alphanumericCode   = regexp.MustCompile(`^[a-zA-Z0-9]{2,}$`)
	datePattern        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timestampPattern   = regexp.MustCompile(`^\d{10,}$`)
	versionLikeLiteral = regexp.MustCompile(`^v[0-9.]{1,4}$`)
)

var namespaceKeywords = map[string]bool{
	"api": true, "v1": true, "v2": true, "v3": true,
	"admin": true, "public": true, "private": true,
}

// isCommonLiteral reports whether segment looks like a path component
// that should stay literal even though it could otherwise match one of
// the parameter patterns below: API version markers, short hyphenated
// project codes, and reserved namespace keywords.
func isCommonLiteral(segment string) bool {
	if versionLikeLiteral.MatchString(segment) {
		return true
	}
	if strings.Contains(segment, "-") && len(segment) <= 10 {
		parts := strings.Split(segment, "-")
		if len(parts) == 3 && allNumeric(parts) {
			return false // let the date pattern classify it instead
		}
		return true
	}
	return namespaceKeywords[segment]
}

func allNumeric(parts []string) bool {
	for _, p := range parts {
		if !numericIDPattern.MatchString(p) {
			return false
		}
	}
	return true
}

type paramKind int

const (
	paramNone paramKind = iota
	paramNumericID
	paramUUID
	paramAlphanumericCode
	paramDate
	paramTimestamp
)

func detectParam(segment string) paramKind {
	if segment == "" || isCommonLiteral(segment) {
		return paramNone
	}
	switch {
	case uuidPattern.MatchString(segment):
		return paramUUID
	case datePattern.MatchString(segment):
		return paramDate
	case timestampPattern.MatchString(segment):
		return paramTimestamp
	}
	if len(segment) >= 5 && alphanumericCode.MatchString(segment) && hasLetterAndDigit(segment) {
		return paramAlphanumericCode
	}
	if numericIDPattern.MatchString(segment) {
		return paramNumericID
	}
	return paramNone
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letter = true
		}
	}
	return letter && digit
}

func paramName(kind paramKind, previous string) string {
	suffix := map[paramKind]string{
		paramNumericID:        "Id",
		paramUUID:             "Id",
		paramAlphanumericCode: "Code",
		paramDate:             "Date",
		paramTimestamp:        "Timestamp",
	}[kind]
	if previous == "" {
		fallback := map[paramKind]string{
			paramNumericID: "id", paramUUID: "id", paramAlphanumericCode: "code",
			paramDate: "date", paramTimestamp: "timestamp",
		}
		return fallback[kind]
	}
	singular := previous
	if strings.HasSuffix(singular, "s") && len(singular) > 1 {
		singular = singular[:len(singular)-1]
	}
	return singular + suffix
}

// Templatize replaces literal-looking identifier segments (numeric ids,
// UUIDs, alphanumeric codes, dates, unix timestamps) with a contextual
// {name} placeholder derived from the preceding segment, e.g.
// "/users/123" -> "/users/{userId}". It is never applied to a route's
// match value, and the OpenAPI adapter does not use it for route names.
func Templatize(path string) string {
	segments := strings.Split(path, "/")
	out := make([]string, len(segments))
	previous := ""
	for i, seg := range segments {
		if seg == "" {
			out[i] = seg
			continue
		}
		if kind := detectParam(seg); kind != paramNone {
			out[i] = "{" + paramName(kind, previous) + "}"
			continue
		}
		out[i] = seg
		previous = seg
	}
	return strings.Join(out, "/")
}
