package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, name string, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for entry, content := range parts {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestExtractXLSX(t *testing.T) {
	path := writeArchive(t, "sheet.xlsx", map[string]string{
		"xl/sharedStrings.xml": `<?xml version="1.0"?><sst><si><t>Revenue</t></si><si><t>Q1 2024</t></si></sst>`,
		"xl/workbook.xml":      `<?xml version="1.0"?><workbook/>`,
	})

	content, err := extractOfficeXML(path, "xl/sharedStrings.xml")
	require.NoError(t, err)
	assert.Contains(t, content, "Revenue")
	assert.Contains(t, content, "Q1 2024")
}

func TestExtractPPTX(t *testing.T) {
	path := writeArchive(t, "deck.pptx", map[string]string{
		"ppt/slides/slide1.xml": `<?xml version="1.0"?><sld><t>Roadmap overview</t></sld>`,
		"ppt/slides/slide2.xml": `<?xml version="1.0"?><sld><t>Milestones</t></sld>`,
		"ppt/presentation.xml":  `<?xml version="1.0"?><presentation/>`,
	})

	content, err := extractOfficeXML(path, "ppt/slides/")
	require.NoError(t, err)
	assert.Contains(t, content, "Roadmap overview")
	assert.Contains(t, content, "Milestones")
}

func TestExtractOfficeXMLNotAnArchive(t *testing.T) {
	path := writeTemp(t, "fake.xlsx", "not a zip file")
	_, err := extractOfficeXML(path, "xl/sharedStrings.xml")
	assert.Error(t, err)
}
