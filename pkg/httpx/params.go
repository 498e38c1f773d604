package httpx

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrMissingParam = errors.New("missing parameter")
	ErrInvalidParam = errors.New("invalid parameter")
)

// SplitList splits a comma-separated parameter, trimming each item and
// dropping empty ones. An absent parameter yields nil.
func SplitList(q url.Values, name string) []string {
	raw := q.Get(name)
	if raw == "" {
		return nil
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// RequiredInt parses a mandatory integer parameter.
func RequiredInt(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingParam, name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidParam, name, raw)
	}
	return n, nil
}

// YearRange reads start_year and end_year.
func YearRange(q url.Values) (start, end int, err error) {
	if start, err = RequiredInt(q, "start_year"); err != nil {
		return 0, 0, err
	}
	if end, err = RequiredInt(q, "end_year"); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
