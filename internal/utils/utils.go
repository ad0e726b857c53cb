package utils

import (
	"fmt"
	"regexp"
	"strconv"
)

// F64ToS formats a float with the fewest digits that parse back to the same value
func F64ToS(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FindRegexGroups matches v against reg and returns the values of the named groups.
// Unnamed groups are ignored. A named group that did not participate in the match is empty.
func FindRegexGroups(reg *regexp.Regexp, v string) (map[string]string, error) {
	matches := reg.FindStringSubmatch(v)
	if matches == nil {
		return nil, fmt.Errorf("%q does not match %s", v, reg.String())
	}
	res := map[string]string{}
	for i, name := range reg.SubexpNames() {
		if i > 0 && name != "" {
			res[name] = matches[i]
		}
	}
	return res, nil
}
