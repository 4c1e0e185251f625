package common

import (
	"fmt"
	"strings"
	"text/template"
)

// Render executes a prompt template. Missing keys are errors so a typo in a
// configured prompt fails loudly instead of sending "<no value>" to the model.
func Render(name, src string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s prompt: %w", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
