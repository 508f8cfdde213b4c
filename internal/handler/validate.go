package handler

import (
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
)

// collectMessages flattens an ozzo validation result into a sorted list of
// human-readable "field: problem" strings.  All violations are reported
// together rather than failing on the first.
func collectMessages(err error) []string {
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validation.Errors)
	if !ok {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(fieldErrs))
	for field, ferr := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", field, ferr.Error()))
	}
	sort.Strings(msgs)
	return msgs
}
