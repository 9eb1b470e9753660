package validation

import (
	"time"

	"github.com/dlclark/regexp2"
)

// PatternMatchTimeout bounds a single pattern match. Backtracking patterns
// that exceed it fail as misconfigured.
const PatternMatchTimeout = 250 * time.Millisecond

// CompilePattern compiles a pattern source using JavaScript regular
// expression syntax, the dialect form schemas are authored in. Lookarounds
// and backreferences are supported.
func CompilePattern(src string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(src, regexp2.ECMAScript)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = PatternMatchTimeout
	return re, nil
}
