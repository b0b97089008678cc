package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FlattenTableHTML renders an HTML table as plain text, one line per row with
// cells separated by " | ". This is the textual form used for embedding and
// matching; the HTML itself is preserved in the table payload.
func FlattenTableHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse table HTML: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return "", fmt.Errorf("no table found in HTML content")
	}

	var lines []string
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) == 0 {
			return
		}
		line := strings.Join(cells, " | ")
		if strings.TrimSpace(strings.ReplaceAll(line, "|", "")) == "" {
			return
		}
		lines = append(lines, line)
	})

	return strings.Join(lines, "\n"), nil
}
