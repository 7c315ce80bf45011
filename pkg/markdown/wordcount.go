// Package markdown estimates the number of prose words in a Markdown document.
//
// The count is a heuristic: a fixed sequence of textual rewrites strips the
// most common Markdown syntax and the remaining whitespace-separated tokens
// are counted. It is not a Markdown parser, and some constructs (a hyphen in
// prose, link text with its target) are counted the way the rewrites leave
// them.
package markdown

import (
	"regexp"
	"strings"
)

type rewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

// The order is significant: tabs are expanded before runs of spaces are
// collapsed, and line-anchored patterns run before newlines are flattened.
var (
	comments        = rewrite{regexp.MustCompile(`<!--(.*?)-->`), ""}
	spaceRuns       = rewrite{regexp.MustCompile(`[ ]{2,}`), "    "}
	footnotes       = rewrite{regexp.MustCompile(`(?m)^\[[^\]]*\][^(].*`), ""}
	indentedCode    = rewrite{regexp.MustCompile(`(?m)^( {4,}[^\-*]).*`), ""}
	headerIDs       = rewrite{regexp.MustCompile(`\{#.*\}`), ""}
	images          = rewrite{regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`), ""}
	htmlTags        = rewrite{regexp.MustCompile(`</?[^>]*>`), ""}
	specialChars    = rewrite{regexp.MustCompile("[#*`~\\-–^=<>+|/:]"), ""}
	footnoteRefs    = rewrite{regexp.MustCompile(`\[[0-9]*\]`), ""}
	enumerations    = rewrite{regexp.MustCompile(`[0-9#]*\.`), ""}
	lineEndings     = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	tabReplacer     = strings.NewReplacer("\t", "    ")
	newlineReplacer = strings.NewReplacer("\n", " ")
)

// Strip applies every rewrite to text and returns what is left. CRLF and
// lone CR line endings are read as LF.
func Strip(text string) string {
	text = lineEndings.Replace(text)
	text = comments.apply(text)
	text = tabReplacer.Replace(text)
	text = spaceRuns.apply(text)
	text = footnotes.apply(text)
	text = indentedCode.apply(text)
	text = headerIDs.apply(text)
	text = newlineReplacer.Replace(text)
	text = images.apply(text)
	text = htmlTags.apply(text)
	text = specialChars.apply(text)
	text = footnoteRefs.apply(text)
	text = enumerations.apply(text)
	return text
}

// CountWords returns the number of words left in text once Markdown syntax is stripped.
func CountWords(text string) int {
	return len(strings.Fields(Strip(text)))
}

func (r rewrite) apply(text string) string {
	return r.pattern.ReplaceAllString(text, r.replacement)
}
