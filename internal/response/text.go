package response

import (
	"strings"

	"github.com/jdkato/prose/v2"
)

var stopWords = map[string]struct{}{
	"about": {}, "also": {}, "been": {}, "does": {}, "from": {}, "have": {},
	"into": {}, "just": {}, "more": {}, "much": {}, "please": {}, "some": {},
	"tell": {}, "than": {}, "that": {}, "their": {}, "them": {}, "then": {},
	"there": {}, "these": {}, "they": {}, "this": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "will": {}, "with": {}, "would": {},
	"your": {}, "explain": {}, "work": {}, "works": {},
}

const minTokenLen = 4

// acronyms are short tokens kept despite minTokenLen.
var acronyms = map[string]struct{}{
	"dna": {}, "rna": {}, "pcr": {}, "snp": {},
}

// queryTokens returns the distinct lower-case content words of text in
// order of first appearance.
func queryTokens(text string) []string {
	var raw []string
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false))
	if err == nil {
		for _, tok := range doc.Tokens() {
			raw = append(raw, tok.Text)
		}
	} else {
		raw = strings.Fields(text)
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.ToLower(strings.Trim(tok, ".,;:!?\"'()[]"))
		if _, keep := acronyms[tok]; !keep && len(tok) < minTokenLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// firstSentences returns at most n leading sentences of text.
func firstSentences(text string, n int) string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false))
	if err != nil {
		return text
	}

	sentences := doc.Sentences()
	if len(sentences) <= n {
		return text
	}

	parts := make([]string, 0, n)
	for _, s := range sentences[:n] {
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, " ")
}
