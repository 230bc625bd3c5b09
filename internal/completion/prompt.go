package completion

import (
	"fmt"
	"strings"
)

const summaryPrompt = `Summarize the following document excerpt in at most three sentences. Keep names, places and the subject matter. Respond with only the summary.

`

const completionSystem = "You continue the user's writing. Reply with only the words that finish the sentence, without quoting it."

// BuildPrompt asks the model to finish lastSentence given a summary of the
// surrounding document.
func BuildPrompt(summary, lastSentence string) string {
	var sb strings.Builder
	sb.WriteString("Finish the below sentence:\n\n")
	sb.WriteString("Example: > The mitochondria\n")
	sb.WriteString("Output: are the powerhouse of the cell.\n\n")
	fmt.Fprintf(&sb, "Here is some context:\n%s\n\n", summary)
	fmt.Fprintf(&sb, "> %s", lastSentence)
	return sb.String()
}

// Normalize tidies model output: stray spaces before periods are removed
// and a leading "Output:" echo of the example is dropped.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, " . ", ". ")
	s = strings.ReplaceAll(s, " .", ". ")
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "Output:"))
	return s
}
