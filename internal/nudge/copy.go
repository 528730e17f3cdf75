package nudge

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"tripweave/internal/model"
)

//go:embed copy.yaml
var copyYAML []byte

// Copy is rendered nudge text. The engine's payloads stay copy-agnostic;
// rendering happens here, at the edge.
type Copy struct {
	Title string
	Body  string
}

// CopyBuilder renders copy for one nudge type from its payload.
type CopyBuilder func(payload map[string]any) Copy

var copyRegistry = map[model.NudgeType]CopyBuilder{}

// RegisterCopy installs or replaces the builder for a nudge type, so each
// type's template logic can be tested or extended in isolation.
func RegisterCopy(t model.NudgeType, b CopyBuilder) {
	copyRegistry[t] = b
}

// BuildCopy renders a nudge's copy. ok is false for an unregistered type.
func BuildCopy(n model.Nudge) (Copy, bool) {
	b, ok := copyRegistry[n.Type]
	if !ok {
		return Copy{}, false
	}
	return b(n.Payload), true
}

type copyTemplate struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

func init() {
	var templates map[model.NudgeType]copyTemplate
	if err := yaml.Unmarshal(copyYAML, &templates); err != nil {
		panic(fmt.Sprintf("nudge: bad embedded copy templates: %v", err))
	}
	for t, tpl := range templates {
		tpl := tpl
		RegisterCopy(t, func(payload map[string]any) Copy {
			return Copy{Title: fill(tpl.Title, payload), Body: fill(tpl.Body, payload)}
		})
	}
}

// fill substitutes {key} markers with payload values.
func fill(tpl string, payload map[string]any) string {
	out := tpl
	for k, v := range payload {
		out = strings.ReplaceAll(out, "{"+k+"}", fmt.Sprint(v))
	}
	return out
}
