package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

// SplitText cuts raw text into chunks of at most maxChars characters.
// Paragraphs (blank-line separated) are packed greedily; a chunk is flushed
// when the next paragraph would not fit. The last `overlap` characters of a
// flushed chunk are prefixed onto the next one so content straddling a
// boundary is never lost to a single-chunk reader. A lone paragraph larger
// than maxChars is hard-sliced at fixed steps with the same overlap; those
// slices are the only chunks allowed to reach exactly maxChars mid-paragraph.
// Sizes count runes, not bytes, so multi-byte text is never cut mid-rune.
func SplitText(text string, maxChars, overlap int) []string {
	if maxChars <= 0 {
		maxChars = 1100
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars {
		overlap = maxChars / 4
	}
	trimmed := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if trimmed == "" {
		return nil
	}
	if utf8.RuneCountInString(trimmed) <= maxChars {
		return []string{trimmed}
	}

	var chunks []string
	cur := ""      // chunk being packed
	seeded := true // cur holds nothing beyond an overlap seed

	flush := func() {
		if cur == "" || seeded {
			return
		}
		chunks = append(chunks, cur)
		cur = tail(cur, overlap)
		seeded = true
	}

	for _, p := range splitParagraphs(trimmed) {
		pLen := utf8.RuneCountInString(p)
		if pLen > maxChars {
			flush()
			pr := []rune(p)
			step := maxChars - overlap
			for start := 0; start < len(pr); start += step {
				end := start + maxChars
				if end > len(pr) {
					end = len(pr)
				}
				chunks = append(chunks, string(pr[start:end]))
				if end == len(pr) {
					break
				}
			}
			cur = tail(chunks[len(chunks)-1], overlap)
			seeded = true
			continue
		}
		if cur != "" && utf8.RuneCountInString(cur)+2+pLen > maxChars {
			flush()
			// the seed plus this paragraph must still fit
			if room := maxChars - pLen - 2; room <= 0 {
				cur = ""
			} else {
				cur = tail(cur, room)
			}
		}
		if cur == "" {
			cur = p
		} else {
			cur = cur + "\n\n" + p
		}
		seeded = false
	}
	if cur != "" && !seeded {
		chunks = append(chunks, cur)
	}
	return chunks
}

func splitParagraphs(text string) []string {
	parts := paragraphSep.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// tail returns the last n runes of s.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
