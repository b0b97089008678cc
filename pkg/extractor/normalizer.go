package extractor

import (
	"strings"

	"github.com/finlens/finlens/internal/models"
	"github.com/finlens/finlens/pkg/logging"
)

// Element type tags the normalizer accepts as prose. Anything else that is
// not a table is dropped.
var textTypes = map[string]bool{
	"text":               true,
	"title":              true,
	"narrative":          true,
	"narrativetext":      true,
	"uncategorized-text": true,
	"uncategorizedtext":  true,
	"composite":          true,
	"compositeelement":   true,
}

// NormalizedDocument is the ordered chunk sequence for one document plus the
// aggregate metadata the pipeline writes back to the document row.
type NormalizedDocument struct {
	Chunks     []models.Chunk
	TotalPages int
}

// Normalizer converts the extraction oracle's raw element list into typed
// chunks, preserving the original relative order across text and table
// elements.
type Normalizer struct {
	log *logging.Logger
}

func NewNormalizer(log *logging.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize filters, cleans and classifies raw elements. Malformed elements
// are skipped with a warning; they never abort the document. The returned
// chunks carry no embeddings and no index yet.
func (n *Normalizer) Normalize(elements []models.RawElement) NormalizedDocument {
	var out NormalizedDocument

	for i, el := range elements {
		tag := strings.ToLower(strings.TrimSpace(el.Type))
		if tag == "" {
			n.log.Warn("skipping element with missing type", "position", i, "page", el.PageNumber)
			continue
		}

		page := el.PageNumber
		if page < 1 {
			page = 1
		}

		if tag == "table" {
			chunk, ok := n.tableChunk(el, page)
			if !ok {
				n.log.Warn("skipping table element with no content", "position", i, "page", page)
				continue
			}
			out.Chunks = append(out.Chunks, chunk)
		} else {
			if !textTypes[tag] {
				continue
			}
			text := cleanText(el.Text)
			if text == "" {
				continue
			}
			out.Chunks = append(out.Chunks, models.Chunk{
				Type:       models.ChunkText,
				Text:       text,
				PageNumber: page,
			})
		}

		if page > out.TotalPages {
			out.TotalPages = page
		}
	}

	if out.TotalPages == 0 {
		out.TotalPages = 1
	}

	return out
}

// tableChunk builds a table chunk. Tables are kept even when their plain text
// is empty, as long as a textual rendition can be recovered from the HTML.
func (n *Normalizer) tableChunk(el models.RawElement, page int) (models.Chunk, bool) {
	text := cleanText(el.Text)
	if text == "" && el.HTML != "" {
		flat, err := FlattenTableHTML(el.HTML)
		if err != nil {
			n.log.Warn("failed to flatten table HTML", "page", page, "error", err)
		} else {
			text = cleanText(flat)
		}
	}
	if text == "" && el.HTML == "" {
		return models.Chunk{}, false
	}

	return models.Chunk{
		Type:       models.ChunkTable,
		Text:       text,
		PageNumber: page,
		Table: &models.TablePayload{
			Text:       text,
			HTML:       el.HTML,
			PageNumber: page,
		},
	}, true
}

// cleanText collapses whitespace runs and trims the ends.
func cleanText(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}
