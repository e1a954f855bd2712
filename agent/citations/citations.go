package citations

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/microsoft/Agents-for-net-sub004/types"
)

// DefaultSnippetLength bounds the abstract shown for a citation.
const DefaultSnippetLength = 480

var (
	docMarker     = regexp.MustCompile(`\[doc(\d+)\]`)
	displayMarker = regexp.MustCompile(`\[(\d+)\]`)
)

// Citation is a reference to a source document attached to generated text.
type Citation struct {
	// Position is 1-based; zero means "assign on insertion".
	Position int    `json:"position"`
	Title    string `json:"title"`
	// Snippet is the display abstract. When empty it is derived from Content.
	Snippet string `json:"snippet,omitempty"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

// ToClient derives the wire form. snippetLen <= 0 uses DefaultSnippetLength.
func (c Citation) ToClient(snippetLen int) types.ClientCitation {
	if snippetLen <= 0 {
		snippetLen = DefaultSnippetLength
	}
	abstract := c.Snippet
	if abstract == "" {
		abstract = c.Content
	}
	name := c.Title
	if name == "" {
		name = fmt.Sprintf("Document #%d", c.Position)
	}
	return types.ClientCitation{
		SchemaType: "Claim",
		Position:   c.Position,
		Appearance: types.ClientCitationAppearance{
			SchemaType: "DigitalDocument",
			Name:       name,
			Abstract:   Snippet(abstract, snippetLen),
			URL:        c.URL,
		},
	}
}

// FormatCitations rewrites [docN] markers into the [N] display form.
// Text already in display form is returned unchanged.
func FormatCitations(text string) string {
	if !strings.Contains(text, "[doc") {
		return text
	}
	return docMarker.ReplaceAllString(text, "[$1]")
}

// UsedCitations returns the citations whose [N] marker appears in text, in
// their original order.
func UsedCitations(text string, all []Citation) []Citation {
	if len(all) == 0 || text == "" {
		return nil
	}

	referenced := make(map[int]struct{})
	for _, m := range displayMarker.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			referenced[n] = struct{}{}
		}
	}
	if len(referenced) == 0 {
		return nil
	}

	used := make([]Citation, 0, len(referenced))
	for _, c := range all {
		if _, ok := referenced[c.Position]; ok {
			used = append(used, c)
		}
	}
	if len(used) == 0 {
		return nil
	}
	return used
}

// ToClientCitations converts a list to its wire form.
func ToClientCitations(list []Citation, snippetLen int) []types.ClientCitation {
	if len(list) == 0 {
		return nil
	}
	out := make([]types.ClientCitation, len(list))
	for i, c := range list {
		out[i] = c.ToClient(snippetLen)
	}
	return out
}

// Snippet truncates content to at most maxLen characters. Longer content is
// cut back to a word boundary and suffixed with "...".
func Snippet(content string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(content) <= maxLen {
		return content
	}

	runes := []rune(content)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}

	cut := string(runes[:maxLen-3])
	if i := strings.LastIndexAny(cut, " \t\n"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \t\n") + "..."
}
