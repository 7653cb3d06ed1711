package catalog

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

// DescriptionHTML renders the markdown description to HTML for preview and
// report surfaces.
func (e Exercise) DescriptionHTML() (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(e.Description), &buf); err != nil {
		return "", fmt.Errorf("convert description markdown: %w", err)
	}
	return buf.String(), nil
}
