package prompts

import "embed"

// TemplateFS holds the system prompt and the retry prompt templates.
//
//go:embed templates/*.tmpl
var TemplateFS embed.FS
