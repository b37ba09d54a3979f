package prompts

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
)

//go:embed templates/*
var templatesFS embed.FS

const defaultAudience = "university students"

// RenderDefaultSystemPrompt renders the built-in system instruction for the
// given audience using the embedded template.
func RenderDefaultSystemPrompt(audience string) (string, error) {
	if strings.TrimSpace(audience) == "" {
		audience = defaultAudience
	}

	templateContent, err := templatesFS.ReadFile("templates/default_system.md")
	if err != nil {
		return "", err
	}

	tmpl, err := template.New("default_system").Parse(string(templateContent))
	if err != nil {
		return "", err
	}

	data := struct {
		Audience string
	}{
		Audience: audience,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return strings.TrimSpace(buf.String()), nil
}
