package notification

import (
	"bytes"
	"text/template"
)

// renderTemplate executes a template body against the per-send data map.
func renderTemplate(name, body string, data map[string]string) (string, error) {
	if body == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Parse(body)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
