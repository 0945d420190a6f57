package generate

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/safeedit/safeedit/pkg/model"
)

const promptText = `CRITICAL SAFETY INSTRUCTIONS:
1. NEVER remove existing functionality
2. NEVER add external API calls without explicit backend integration comments
3. NEVER modify core authentication logic without preserving security
4. NEVER add code that could cause data loss
5. PRESERVE all existing event listeners and handlers
6. ADD comprehensive error handling for all new code
7. ENSURE backward compatibility with existing HTML structure

Breaking changes could impact every user of this code.

FILE: {{.Path}}
IMPROVEMENT TYPE: {{.Kind}}

Original Code:
{{.Content}}

Return only the improved code that follows ALL safety guidelines above.
`

var promptTmpl = template.Must(template.New("prompt").Parse(promptText))

// BuildPrompt renders the safety-framed instruction for req.
func BuildPrompt(req Request) (string, error) {
	data := struct {
		Path, Kind, Content string
	}{
		Path:    req.Path,
		Kind:    req.Kind,
		Content: string(req.Content),
	}
	if data.Kind == "" {
		data.Kind = model.DefaultImprovementKind
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// StripFences removes a surrounding ``` code fence from a model response.
// A response that does not open with a fence is returned untouched.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	lines := strings.Split(trimmed, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) == "```" {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

// MatchTrailingNewline makes improved end in a newline exactly when original
// does, using the original's line ending.
func MatchTrailingNewline(original, improved []byte) []byte {
	origNL := bytes.HasSuffix(original, []byte("\n"))
	newNL := bytes.HasSuffix(improved, []byte("\n"))
	switch {
	case origNL && !newNL:
		if bytes.HasSuffix(original, []byte("\r\n")) && !bytes.HasSuffix(improved, []byte("\r")) {
			return append(improved, '\r', '\n')
		}
		return append(improved, '\n')
	case !origNL && newNL:
		return bytes.TrimRight(improved, "\r\n")
	}
	return improved
}
