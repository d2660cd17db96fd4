package presenter

import (
	"bytes"
	"fmt"
	"text/template"
)

var templateFuncs = template.FuncMap{
	"not": func(v any) bool {
		return !toBool(v)
	},
}

// RenderTemplate executes a text/template against data.
// Returns an empty string on error.
func RenderTemplate(tmpl string, data map[string]any) string {
	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return ""
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, templateData(data)); err != nil {
		return ""
	}
	return buf.String()
}

// templateData turns integral float64 values (JSON numbers) into int64 so
// IDs never print in scientific notation.
func templateData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			out[k] = int64(f)
			continue
		}
		out[k] = v
	}
	return out
}

// EvalCondition reports whether an affordance "when" template renders to "true".
// An empty condition always holds.
func EvalCondition(condition string, data map[string]any) bool {
	if condition == "" {
		return true
	}
	return RenderTemplate(condition, data) == "true"
}

// RenderHeadline renders the headline for data, preferring a conditional
// headline whose key is a truthy field.
func RenderHeadline(schema *EntitySchema, data map[string]any) string {
	if schema.Headline == nil {
		if label := schema.Identity.Label; label != "" {
			if v, ok := data[label]; ok {
				return fmt.Sprintf("%v", v)
			}
		}
		return ""
	}

	for key, spec := range schema.Headline {
		if key == "default" {
			continue
		}
		if toBool(data[key]) {
			if rendered := RenderTemplate(spec.Template, data); rendered != "" {
				return rendered
			}
		}
	}

	if spec, ok := schema.Headline["default"]; ok {
		return RenderTemplate(spec.Template, data)
	}
	return ""
}
