package timeout

import (
	"strings"
	"time"
	"unicode"
)

// Category is a coarse classification of an operation used to pick its
// base timeout.
type Category string

// Known categories.
const (
	CategoryNetwork  Category = "network"
	CategoryDatabase Category = "database"
	CategoryFile     Category = "file"
	CategoryCache    Category = "cache"
	CategoryCompute  Category = "compute"
	CategoryDefault  Category = "default"
)

// DefaultBaseTimeouts returns the base timeout of each category.
func DefaultBaseTimeouts() map[Category]time.Duration {
	return map[Category]time.Duration{
		CategoryNetwork:  30 * time.Second,
		CategoryDatabase: 20 * time.Second,
		CategoryFile:     15 * time.Second,
		CategoryCache:    10 * time.Second,
		CategoryCompute:  60 * time.Second,
		CategoryDefault:  30 * time.Second,
	}
}

// Checked in order; the first category with a word starting with one of
// its keywords wins.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryCache, []string{"cache", "redis", "memcache", "kv"}},
	{CategoryDatabase, []string{"db", "database", "sql", "query", "mongo", "postgres", "mysql", "repo"}},
	{CategoryFile, []string{"file", "disk", "upload", "download", "blob", "s3", "storage"}},
	{CategoryNetwork, []string{"http", "api", "fetch", "request", "remote", "webhook", "grpc", "call"}},
	{CategoryCompute, []string{"compute", "calculate", "process", "analyze", "transform", "aggregate", "render"}},
}

// InferCategory classifies an operation by the words of its name. Words
// are split on punctuation and camelCase boundaries, so "fetchUser",
// "fetch_user" and "user.fetch" all count as network work.
func InferCategory(name string) Category {
	words := splitWords(name)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			for _, w := range words {
				if strings.HasPrefix(w, kw) {
					return c.category
				}
			}
		}
	}
	return CategoryDefault
}

func splitWords(name string) []string {
	var b strings.Builder
	var prev rune
	for _, r := range name {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			b.WriteByte(' ')
		case unicode.IsUpper(r) && unicode.IsLower(prev):
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
		prev = r
	}
	return strings.Fields(b.String())
}
