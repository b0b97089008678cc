package retrieval

import (
	"fmt"
	"strings"

	"github.com/finlens/finlens/internal/models"
)

const refusalAnswer = "I could not find relevant information in the uploaded documents to answer this question."

// buildPrompt assembles the grounded-answer prompt: the retrieved chunks in
// descending similarity order, an optional nearby table, and the instructions
// that pin the answer to the provided context.
func buildPrompt(query string, matches []models.ScoredChunk, table *models.TablePayload) string {
	var b strings.Builder

	b.WriteString("You are a financial document analyst. Answer the question using ONLY the context below.\n\n")

	if len(matches) == 0 {
		b.WriteString("Context: no relevant passages were found in the uploaded documents.\n")
	} else {
		b.WriteString("Context:\n\n")
		for _, m := range matches {
			fmt.Fprintf(&b, "[%s, page %d]\n", m.DocumentName, m.PageNumber)
			b.WriteString(m.Text)
			if m.Type == models.ChunkTable && m.Table != nil && m.Table.HTML != "" {
				b.WriteString("\nTable HTML:\n")
				b.WriteString(m.Table.HTML)
			}
			b.WriteString("\n\n")
		}
	}

	if table != nil {
		fmt.Fprintf(&b, "Nearby table on page %d:\n", table.PageNumber)
		if table.Text != "" {
			b.WriteString(table.Text)
			b.WriteString("\n")
		}
		if table.HTML != "" {
			b.WriteString("Table HTML:\n")
			b.WriteString(table.HTML)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Instructions:\n")
	b.WriteString("- Answer strictly from the context. If the context does not contain the answer, say so.\n")
	b.WriteString("- Cite the document name and page number for every claim.\n")
	b.WriteString("- When reading tables, preserve the hierarchy of line items, keep subtotals and totals distinct,\n")
	b.WriteString("  report every time period shown, and treat values in parentheses as negative.\n\n")

	fmt.Fprintf(&b, "Question: %s\n", query)
	return b.String()
}
