package common

import (
	"regexp"
	"sync"
)

var patterns sync.Map // string -> *regexp.Regexp

// MatchRegex reports whether text matches pattern. Compiled patterns are
// kept for the life of the process since accept lists repeat per file.
func MatchRegex(pattern, text string) (bool, error) {
	if re, ok := patterns.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(text), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	patterns.Store(pattern, re)
	return re.MatchString(text), nil
}
