package parser

import (
	"archive/zip"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// extractOfficeXML extracts character data from the XML parts of an OOXML
// container (pptx slides, xlsx shared strings) whose archive path starts
// with the given prefix.
func extractOfficeXML(path, partPrefix string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	var sb strings.Builder
	for _, file := range zr.File {
		if !strings.HasPrefix(file.Name, partPrefix) || !strings.HasSuffix(file.Name, ".xml") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		text := xmlCharData(rc)
		rc.Close()
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// xmlCharData collects character data inside <t> and <a:t> elements, the
// text carriers of the spreadsheet and presentation schemas.
func xmlCharData(r io.Reader) string {
	decoder := xml.NewDecoder(r)

	var sb strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			inText = t.Name.Local == "t"
		case xml.EndElement:
			inText = false
		case xml.CharData:
			if !inText {
				continue
			}
			if s := strings.TrimSpace(string(t)); s != "" {
				if sb.Len() > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(s)
			}
		}
	}
	return sb.String()
}

// extractCSV renders rows as header-labeled lines so the values stay
// meaningful once chunked.
func extractCSV(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	headers := records[0]
	var sb strings.Builder
	for _, row := range records[1:] {
		var fields []string
		for i, cell := range row {
			if cell = strings.TrimSpace(cell); cell == "" {
				continue
			}
			if i < len(headers) {
				fields = append(fields, headers[i]+": "+cell)
			} else {
				fields = append(fields, cell)
			}
		}
		if len(fields) > 0 {
			sb.WriteString(strings.Join(fields, ", "))
			sb.WriteString("\n")
		}
	}
	if sb.Len() == 0 {
		// Header-only files still carry the column names.
		return strings.Join(headers, ", "), nil
	}
	return sb.String(), nil
}
