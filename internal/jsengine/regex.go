package jsengine

import (
	"errors"
	"fmt"
	"regexp"
)

// maxCachedPatterns bounds the compiled pattern cache. The cache is
// dropped whole when full.
const maxCachedPatterns = 128

// ErrPattern is returned for a pattern that does not compile.
var ErrPattern = errors.New("invalid pattern")

// RegexModule backs the re object. Compiled patterns are kept across
// calls, since notebook code tends to apply one pattern in a loop. It is
// not safe for concurrent use, like the runtime it serves.
type RegexModule struct {
	cache map[string]*regexp.Regexp
}

// NewRegexModule returns a RegexModule with an empty cache.
func NewRegexModule() *RegexModule {
	return &RegexModule{cache: make(map[string]*regexp.Regexp)}
}

func (r *RegexModule) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := r.cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrPattern, pattern, err)
	}
	if len(r.cache) >= maxCachedPatterns {
		clear(r.cache)
	}
	r.cache[pattern] = re
	return re, nil
}

// FindAll returns every match of pattern in text.
func (r *RegexModule) FindAll(pattern, text string) ([]string, error) {
	re, err := r.compile(pattern)
	if err != nil {
		return nil, err
	}
	matches := re.FindAllString(text, -1)
	if matches == nil {
		matches = []string{}
	}
	return matches, nil
}

// Search returns the first match of pattern in text, or "" when there is
// none.
func (r *RegexModule) Search(pattern, text string) (string, error) {
	re, err := r.compile(pattern)
	if err != nil {
		return "", err
	}
	return re.FindString(text), nil
}

// Split cuts text around matches of pattern into at most n parts; n < 0
// means all.
func (r *RegexModule) Split(pattern, text string, n int) ([]string, error) {
	re, err := r.compile(pattern)
	if err != nil {
		return nil, err
	}
	return re.Split(text, n), nil
}

// Replace substitutes repl, which may use $1-style group references, for
// every match of pattern in text.
func (r *RegexModule) Replace(pattern, text, repl string) (string, error) {
	re, err := r.compile(pattern)
	if err != nil {
		return "", err
	}
	return re.ReplaceAllString(text, repl), nil
}
