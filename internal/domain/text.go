package domain

import (
	"strings"
	"unicode/utf8"
)

// NewTextContent computes word and character counts gateway-side; the
// engine's own counters are never trusted.
func NewTextContent(content string) TextContent {
	return TextContent{
		Content:   content,
		WordCount: len(strings.Fields(content)),
		CharCount: utf8.RuneCountInString(content),
	}
}

// StatsFor derives content statistics the way the analysis tools
// report them.
func StatsFor(tc TextContent) ContentStats {
	lines := strings.Split(tc.Content, "\n")

	var paragraphs int
	for _, p := range strings.Split(tc.Content, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}

	normalized := strings.NewReplacer("!", ".", "?", ".").Replace(tc.Content)
	var sentences int
	for _, s := range strings.Split(normalized, ".") {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}

	stats := ContentStats{
		WordCount:      tc.WordCount,
		CharacterCount: tc.CharCount,
		LineCount:      len(lines),
		ParagraphCount: paragraphs,
		SentenceCount:  sentences,
	}
	stats.AvgWordsPerSentence = float64(tc.WordCount) / float64(max(sentences, 1))
	stats.AvgCharsPerWord = float64(tc.CharCount) / float64(max(tc.WordCount, 1))
	return stats
}
