package rag

import (
	"fmt"
	"strings"
)

// systemInstructions is the fixed instruction block for every prompt.
// User input is never interpolated here; it only appears in the context
// block and the question slot below, which bounds prompt injection to
// "wrong answer" rather than "instruction override".
const systemInstructions = `You are SupportIQ, the customer support assistant for NovaTech Solutions.
Answer the customer's question based ONLY on the provided context documents below.

If the context does not contain enough information to answer, say:
"I don't have enough information in our knowledge base to answer this question. Would you like me to escalate this to a human agent?"

Response rules:
- Write in plain text. Do NOT use markdown formatting such as **, ##, *, or bullet symbols.
- Use short paragraphs separated by blank lines for readability.
- Be concise, warm, and professional, like a real support agent.
- Do NOT make up information that is not in the context.
- When your answer comes from a specific document, mention it naturally (e.g. "According to our Return Policy..." or "As described in the Product Guide...").
- If multiple sources are relevant, combine them into one coherent answer.
- Never list raw source numbers like "(Source 1)". Refer to documents by their title.`

const (
	contextHeader    = "Context (retrieved documents):"
	contextSeparator = "---"
	emptyContextNote = "No relevant documents were found."
)

// BuildPrompt renders the retrieved hits and the customer question into
// a single deterministic prompt string. When no hits survived
// retrieval, the context block says so explicitly to steer the model
// toward the refusal phrase instead of hallucinating.
func BuildPrompt(query string, hits []RetrievalHit) string {
	var context string
	if len(hits) > 0 {
		formatted := make([]string, len(hits))
		for i, hit := range hits {
			formatted[i] = formatHit(hit, i)
		}
		context = fmt.Sprintf("%s\n%s\n%s\n%s",
			contextHeader, contextSeparator, strings.Join(formatted, "\n\n"), contextSeparator)
	} else {
		context = fmt.Sprintf("%s\n%s\n%s\n%s",
			contextHeader, contextSeparator, emptyContextNote, contextSeparator)
	}

	return fmt.Sprintf("%s\n\n%s\n\nCustomer question: %s\n\nAnswer:",
		systemInstructions, context, query)
}

// formatHit renders one hit for the context block, with its 1-based
// source number, title, page, and relevance score.
func formatHit(hit RetrievalHit, index int) string {
	title := hit.SourceTitle
	if title == "" {
		title = "Document " + hit.DocumentID
	}
	page := "?"
	if hit.PageNumber > 0 {
		page = fmt.Sprintf("%d", hit.PageNumber)
	}
	return fmt.Sprintf("[Source %d: %s, Page %s (relevance %.2f)]\n%s",
		index+1, title, page, hit.Score, strings.TrimSpace(hit.ChunkText))
}
