package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlens/finlens/pkg/extractor"
)

func TestFlattenTableHTML(t *testing.T) {
	html := `<table>
		<tr><th>Line item</th><th>2023</th><th>2022</th></tr>
		<tr><td>Revenue</td><td>1,200</td><td>1,050</td></tr>
		<tr><td>Operating loss</td><td>(75)</td><td>(120)</td></tr>
	</table>`

	flat, err := extractor.FlattenTableHTML(html)
	require.NoError(t, err)

	assert.Equal(t,
		"Line item | 2023 | 2022\nRevenue | 1,200 | 1,050\nOperating loss | (75) | (120)",
		flat)
}

func TestFlattenTableHTML_SkipsEmptyRows(t *testing.T) {
	html := `<table>
		<tr><td>Assets</td><td>900</td></tr>
		<tr><td></td><td>  </td></tr>
		<tr><td>Liabilities</td><td>400</td></tr>
	</table>`

	flat, err := extractor.FlattenTableHTML(html)
	require.NoError(t, err)

	assert.Equal(t, "Assets | 900\nLiabilities | 400", flat)
}

func TestFlattenTableHTML_NoTable(t *testing.T) {
	_, err := extractor.FlattenTableHTML("<div>not a table</div>")
	assert.Error(t, err)
}
