// Package chunker sizes document text for completion prompts: it splits
// long text into token-bounded chunks, keeps the most recent tail of a
// document, and finds the sentence the model is asked to finish.
package chunker

import "strings"

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Target chunk size in tokens.
	ChunkOverlap int // Overlap between consecutive chunks in tokens.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1500,
		ChunkOverlap: 200,
	}
}

// Split breaks text into chunks of roughly cfg.ChunkSize tokens, preferring
// paragraph and then sentence boundaries.
func Split(text string, cfg Config) []string {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1500
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if EstimateTokens(text) <= cfg.ChunkSize {
		return []string{strings.TrimSpace(text)}
	}
	return splitText(text, cfg.ChunkSize, cfg.ChunkOverlap)
}

// Tail returns the trailing part of text that fits in maxTokens, starting
// at a sentence boundary when one is available. A non-positive budget
// returns the whole text.
func Tail(text string, maxTokens int) string {
	text = strings.TrimSpace(text)
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text
	}

	sentences := splitSentences(strings.Join(strings.Fields(text), " "))
	var kept []string
	tokens := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		n := EstimateTokens(sentences[i])
		if tokens+n > maxTokens {
			break
		}
		kept = append(kept, sentences[i])
		tokens += n
	}
	if len(kept) == 0 {
		// The last sentence alone is over budget.
		return lastWords(text, maxTokens)
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, " ")
}

// Sentences splits text on sentence punctuation. Newlines are folded into
// spaces first, so a line break alone does not end a sentence.
func Sentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LastSentence returns the final sentence of text, or "" if it has none.
func LastSentence(text string) string {
	s := Sentences(text)
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

// splitText breaks text into chunks of approximately targetTokens, with overlap.
func splitText(text string, targetTokens, overlapTokens int) []string {
	// Split by paragraphs first.
	paragraphs := splitByParagraphs(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)

		// If a single paragraph exceeds the target, split it further.
		if paraTokens > targetTokens {
			if currentTokens > 0 {
				result = append(result, current.String())
				current.Reset()
				currentTokens = 0
			}
			result = append(result, splitBySentences(para, targetTokens, overlapTokens)...)
			continue
		}

		if currentTokens+paraTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())

			// Start next chunk with overlap from end of current.
			overlap := overlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitByParagraphs splits on blank lines. Documents fetched from the
// service end every paragraph with a single newline, so single newlines
// are treated as paragraph breaks too.
func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitBySentences breaks a large paragraph into sentence-based chunks.
func splitBySentences(text string, targetTokens, overlapTokens int) []string {
	sentences := splitSentences(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range sentences {
		sentTokens := EstimateTokens(sent)

		if currentTokens+sentTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := overlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitSentences keeps the punctuation, splitting only where it is
// followed by a space.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// overlapText extracts the last N tokens worth of text for overlap. It is
// empty when the overlap would repeat the whole chunk.
func overlapText(text string, targetTokens int) string {
	if len(strings.Fields(text)) <= int(float64(targetTokens)/1.33) {
		return ""
	}
	return lastWords(text, targetTokens)
}

// lastWords extracts the last N tokens worth of text.
func lastWords(text string, targetTokens int) string {
	words := strings.Fields(text)
	// Approximate: 1.33 tokens per word.
	targetWords := int(float64(targetTokens) / 1.33)
	if targetWords <= 0 {
		return ""
	}
	if len(words) <= targetWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}
