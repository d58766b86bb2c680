// Package rewrite replaces local image paths in generated text with their
// rehosted remote URLs.
//
// Rewrite runs two passes. The first substitutes every known spelling of a
// local path, longest first, at path boundaries only. The second catches
// spellings the alias map does not list: the bare image filename under any
// directory whose name contains "image". Both passes match path
// characters only and require a clean boundary on each side, so
// surrounding prose is never consumed, text already inside a URL is
// skipped, and Rewrite is idempotent.
package rewrite

import (
	"path"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Rewrite returns text with local image references replaced by remote URLs.
func Rewrite(text string, aliases types.PathAliasMap) string {
	if aliases.Len() == 0 || text == "" {
		return text
	}
	entries := aliases.LongestFirst()
	for _, e := range entries {
		text = replaceAtBoundaries(text, e.Path, e.URL)
	}
	for _, f := range filenames(aliases.Entries()) {
		text = replaceUnderImageDirs(text, f.name, f.url)
	}
	return text
}

// isNameChar reports whether c can appear inside a path segment.
func isNameChar(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.' || c == '%' || c == '~'
}

// startsClean reports whether a path may begin at text[i]: the previous
// byte is neither part of a path name nor a separator.
func startsClean(text string, i int) bool {
	if i == 0 {
		return true
	}
	c := text[i-1]
	return !isNameChar(c) && c != '/' && c != '\\' && c != ':'
}

// endsClean reports whether a path may end at text[j]: the next byte does
// not continue the last segment. A dot counts only when another name
// character follows it, so sentence punctuation still ends a path.
func endsClean(text string, j int) bool {
	if j >= len(text) {
		return true
	}
	c := text[j]
	if c == '/' || c == '\\' {
		return false
	}
	if c == '.' {
		return j+1 >= len(text) || !isNameChar(text[j+1]) || text[j+1] == '.'
	}
	return !isNameChar(c)
}

func replaceAtBoundaries(text, old, repl string) string {
	if old == "" || !strings.Contains(text, old) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	i := 0
	for {
		k := strings.Index(text[i:], old)
		if k < 0 {
			break
		}
		start := i + k
		end := start + len(old)
		if startsClean(text, start) && endsClean(text, end) {
			b.WriteString(text[i:start])
			b.WriteString(repl)
			i = end
			continue
		}
		b.WriteString(text[i : start+1])
		i = start + 1
	}
	b.WriteString(text[i:])
	return b.String()
}

type filenameURL struct {
	name string
	url  string
}

// filenames returns the distinct bare filenames of the aliases, each with
// the first URL registered for it.
func filenames(entries []types.AliasEntry) []filenameURL {
	seen := make(map[string]bool, len(entries))
	var out []filenameURL
	for _, e := range entries {
		name := path.Base(strings.ReplaceAll(e.Path, `\`, "/"))
		if name == "" || name == "." || name == "/" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, filenameURL{name: name, url: e.URL})
	}
	return out
}

// pathClass is the character class of isNameChar.
const pathClass = `[A-Za-z0-9_.%~-]`

// imagePathPattern matches "<prefix/><dir containing image>/<name>" built
// from path characters only, with an optional leading "/". Submatch 1 is
// the path. Callers check the start boundary.
func imagePathPattern(name string) *regexp.Regexp {
	const seg = pathClass + `*`
	return regexp.MustCompile(`(/?(?:` + pathClass + `+/)*` + seg + `(?i:image)` + seg + `/` + regexp.QuoteMeta(name) + `)`)
}

func replaceUnderImageDirs(text, name, url string) string {
	if !strings.Contains(text, name) {
		return text
	}
	re := imagePathPattern(name)
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		pathStart, pathEnd := m[2], m[3]
		if !startsClean(text, pathStart) || !endsClean(text, pathEnd) {
			continue
		}
		b.WriteString(text[last:pathStart])
		b.WriteString(url)
		last = pathEnd
	}
	b.WriteString(text[last:])
	return b.String()
}
