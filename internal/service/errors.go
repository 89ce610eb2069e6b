package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports a rejected input before anything was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError names a missing row and, when looked up by name, the closest
// existing names.
type NotFoundError struct {
	What        string
	Key         string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %s not found", e.What, e.Key)
	if len(e.Suggestions) > 0 {
		msg += "; did you mean " + strings.Join(quoteAll(e.Suggestions), " or ") + "?"
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFoundID(what string, id int64) error {
	return &NotFoundError{What: what, Key: fmt.Sprintf("#%d", id)}
}

func notFoundName(what, name string, candidates []string) error {
	return &NotFoundError{What: what, Key: fmt.Sprintf("%q", name), Suggestions: suggest(name, candidates)}
}

// suggest returns up to three candidates within a small edit distance of
// name, closest first.
func suggest(name string, candidates []string) []string {
	type scored struct {
		name string
		dist int
	}
	needle := strings.ToLower(strings.TrimSpace(name))
	limit := len(needle) / 3
	if limit < 2 {
		limit = 2
	}
	seen := map[string]bool{}
	var hits []scored
	for _, c := range candidates {
		key := strings.ToLower(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		d := levenshtein.ComputeDistance(needle, key)
		if d <= limit || (needle != "" && strings.Contains(key, needle)) {
			hits = append(hits, scored{c, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	out := make([]string, 0, 3)
	for _, h := range hits {
		if len(out) == 3 {
			break
		}
		out = append(out, h.name)
	}
	return out
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
