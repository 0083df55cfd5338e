package summarize

import (
	"fmt"
	"strings"

	"github.com/precis-labs/precis/internal/domain"
)

// chunkPrompt asks for a short intermediate summary of one chunk,
// feeding the synthesis pass of the map-reduce mode.
func chunkPrompt(text, language string) []domain.Message {
	return []domain.Message{
		{
			Role: domain.RoleSystem,
			Content: "You are an assistant that summarizes text for a synthesis pipeline. " +
				"Respond in the same language as the source text.",
		},
		{
			Role: domain.RoleUser,
			Content: fmt.Sprintf(
				"Expected language: %s. Provide a concise summary (5 sentences maximum) "+
					"of the following passage to prepare a global summary.\n\n%s",
				language, text,
			),
		},
	}
}

// structuredPrompt asks for the strict JSON payload consumed by ParseSummary.
func structuredPrompt(text, language, url string) []domain.Message {
	return []domain.Message{
		{
			Role: domain.RoleSystem,
			Content: `You are a meticulous summarization assistant. Always return a JSON object ` +
				`with the fields "tldr" (an array of 3 to 5 concise bullet points) and "summary" ` +
				`(a paragraph of 150 to 220 words). Stay faithful to the provided text.`,
		},
		{
			Role: domain.RoleUser,
			Content: fmt.Sprintf(
				"Expected language: %s. Summarize the content from %s. "+
					"Provide verifiable facts, no speculation.\n\nCONTENT:\n%s",
				language, url, text,
			),
		},
	}
}

// streamSummaryPrompt asks for a plain Markdown summary built from the
// selected excerpts. Used by the streaming path, which forwards the raw
// text without structural validation.
func streamSummaryPrompt(excerpts []string, language, url string) []domain.Message {
	system := strings.Join([]string{
		fmt.Sprintf("You are an assistant that writes clear, readable summaries in %s.", language),
		"Strictly forbidden: JSON, HTML tags, code blocks.",
		"Preserve normal spacing between words and punctuation.",
		"Insert line breaks to separate headings, bullets and paragraphs.",
		"Structure exactly as follows and start immediately with the requested content:",
		"## TL;DR",
		"- 3 to 5 bullets, each line starting with '- ' (dash plus space).",
		"",
		"## Summary",
		"One or two concise paragraphs (150 to 220 words in total). Stay factual, no speculation.",
	}, "\n")

	user := strings.Join([]string{
		fmt.Sprintf("Expected language: %s. From the excerpts below taken from %s, "+
			"write the requested summary with the structure above.", language, url),
		"Do not invent information. Do not cite sources unless they appear explicitly in the excerpts.",
		"",
		"SELECTED EXCERPTS:",
		strings.Join(excerpts, "\n\n"),
	}, "\n")

	return []domain.Message{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: user},
	}
}

// answerPrompt asks for a grounded answer to a question about the page.
func answerPrompt(excerpts []string, language, url, question string) []domain.Message {
	system := strings.Join([]string{
		fmt.Sprintf("You are an assistant that answers questions about a web page in %s.", language),
		"Base your answer only on the provided excerpts.",
		"If the excerpts do not contain the answer, say so plainly.",
		"Strictly forbidden: JSON, HTML tags, code blocks.",
		"Answer directly, without preamble.",
	}, "\n")

	user := strings.Join([]string{
		fmt.Sprintf("Expected language: %s. The excerpts below come from %s.", language, url),
		"",
		"QUESTION:",
		question,
		"",
		"SELECTED EXCERPTS:",
		strings.Join(excerpts, "\n\n"),
	}, "\n")

	return []domain.Message{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: user},
	}
}
