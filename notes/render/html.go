package render

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/team-of-2/novelize/notes"
)

var cardsTmpl = template.Must(template.New("cards").Parse(
	`{{range .}}<details class="character-card" id="{{.Anchor}}">
  <summary>{{.Name}}</summary>
  <ul>{{range .Items}}
    <li>{{.}}</li>{{end}}
  </ul>
</details>
{{end}}`))

type card struct {
	Name   string
	Anchor string
	Items  []string
}

// HTML renders one collapsible card per character, sorted by name. Model text is escaped.
func HTML(n notes.Notes) (template.HTML, error) {
	names := n.Names()
	ids := anchorIDs(names)
	cards := make([]card, 0, len(names))
	for i, name := range names {
		cards = append(cards, card{
			Name:   name,
			Anchor: ids[i],
			Items:  n[name].Items(),
		})
	}
	var b strings.Builder
	if err := cardsTmpl.Execute(&b, cards); err != nil {
		return "", fmt.Errorf("HTML: %w", err)
	}
	return template.HTML(b.String()), nil
}
