//go:build !integration

package usecase_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"startup-analysis-pipeline/internal/usecase"
)

func TestSplitText_ShortTextIsSingleChunk(t *testing.T) {
	got := usecase.SplitText("  hello world \n", 1100, 180)
	if len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("expected one trimmed chunk, got %q", got)
	}
}

func TestSplitText_EmptyInput(t *testing.T) {
	if got := usecase.SplitText("   \n\n\t  ", 1100, 180); got != nil {
		t.Fatalf("expected nil for blank input, got %q", got)
	}
}

func TestSplitText_HardSliceOversizedParagraph(t *testing.T) {
	// One 2500-char paragraph, maxChars 1200, overlap 200: fixed steps of
	// 1000 give slices [0:1200), [1000:2200), [2000:2500).
	text := strings.Repeat("x", 1100) + "Y" + strings.Repeat("x", 1399)
	chunks := usecase.SplitText(text, 1200, 200)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 1200 || len(chunks[1]) != 1200 || len(chunks[2]) != 500 {
		t.Fatalf("chunk lengths: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	// Each slice starts with the last 200 characters of its predecessor.
	if chunks[1][:200] != chunks[0][1000:] {
		t.Fatalf("second chunk does not begin with the first chunk's tail")
	}
	if chunks[2][:200] != chunks[1][1000:1200] {
		t.Fatalf("third chunk does not begin with the second chunk's tail")
	}
	if !strings.Contains(chunks[0], "Y") || !strings.Contains(chunks[1], "Y") {
		t.Fatalf("boundary marker Y must appear in both surrounding chunks")
	}
}

func TestSplitText_HardSliceKeepsRuneBoundaries(t *testing.T) {
	// 1501 runes of two-byte text, maxChars 1200, overlap 200: rune steps
	// of 1000 give slices [0:1200) and [1000:1501), each a valid string.
	text := "x" + strings.Repeat("ä", 1500)
	chunks := usecase.SplitText(text, 1200, 200)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid UTF-8", i)
		}
	}
	if got := utf8.RuneCountInString(chunks[0]); got != 1200 {
		t.Fatalf("first chunk rune count: %d", got)
	}
	if got := utf8.RuneCountInString(chunks[1]); got != 501 {
		t.Fatalf("second chunk rune count: %d", got)
	}
	first, second := []rune(chunks[0]), []rune(chunks[1])
	if string(second[:200]) != string(first[1000:]) {
		t.Fatalf("second chunk does not begin with the first chunk's tail")
	}
}

func TestSplitText_MultiByteOverlapSeed(t *testing.T) {
	a := strings.Repeat("ö", 700)
	b := strings.Repeat("ö", 700)
	chunks := usecase.SplitText(a+"\n\n"+b, 1100, 100)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid UTF-8", i)
		}
	}
	if chunks[1] != strings.Repeat("ö", 100)+"\n\n"+b {
		t.Fatalf("second chunk should carry a 100-rune seed from the first")
	}
}

func TestSplitText_PacksParagraphsWithOverlapSeed(t *testing.T) {
	a := strings.Repeat("a", 500)
	b := strings.Repeat("b", 500)
	c := strings.Repeat("c", 500)
	text := a + "\n\n" + b + "\n\n" + c

	chunks := usecase.SplitText(text, 1100, 100)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != a+"\n\n"+b {
		t.Fatalf("first chunk should pack the first two paragraphs")
	}
	// The second chunk is seeded with the first chunk's tail.
	if !strings.HasPrefix(chunks[1], strings.Repeat("b", 100)) {
		t.Fatalf("second chunk missing overlap seed: %q...", chunks[1][:20])
	}
	if !strings.HasSuffix(chunks[1], c) {
		t.Fatalf("second chunk should end with the third paragraph")
	}
}

func TestSplitText_NeverExceedsMaxChars(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString(strings.Repeat("p", 150+i*37%600))
		sb.WriteString("\n\n")
	}
	sb.WriteString(strings.Repeat("q", 5000)) // oversized trailer

	for _, tc := range []struct{ max, overlap int }{
		{1100, 180}, {600, 100}, {300, 50},
	} {
		for i, c := range usecase.SplitText(sb.String(), tc.max, tc.overlap) {
			if len(c) > tc.max {
				t.Fatalf("max=%d overlap=%d: chunk %d has %d chars", tc.max, tc.overlap, i, len(c))
			}
			if strings.TrimSpace(c) == "" {
				t.Fatalf("max=%d overlap=%d: chunk %d is blank", tc.max, tc.overlap, i)
			}
		}
	}
}

func TestSplitText_AllContentSurvives(t *testing.T) {
	paras := []string{
		"The market for autonomous picking is growing fast.",
		"Founding team shipped two prior products together.",
		"Pilots with three logistics providers are underway.",
		"Revenue is concentrated in a single customer today.",
	}
	chunks := usecase.SplitText(strings.Join(paras, "\n\n"), 120, 30)
	joined := strings.Join(chunks, "\n")
	for _, p := range paras {
		if !strings.Contains(joined, p) {
			t.Fatalf("paragraph lost during chunking: %q", p)
		}
	}
}
