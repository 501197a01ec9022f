package view

import (
	"embed"
	"html/template"
	"io"

	"github.com/example/fare-finder/internal/form"
	"github.com/example/fare-finder/internal/predict"
)

//go:embed templates/*.html
var templateFS embed.FS

// Landmark is one of the five landmark distance inputs.
type Landmark struct {
	Name        string
	Placeholder string
	Value       string
}

// Page is the data the shell and form template render from.
type Page struct {
	Fields    form.Fields
	View      View
	Landmarks []Landmark
	Traffic   []form.Option
	Cars      []form.Option
	Weather   []form.Option
}

// NewPage assembles the template data for a form instance.
func NewPage(fields form.Fields, v View) Page {
	lm := []form.Field{form.JFKDist, form.EWRDist, form.LGADist, form.SOLDist, form.NYCDist}
	landmarks := make([]Landmark, 0, len(lm))
	for _, f := range lm {
		landmarks = append(landmarks, Landmark{
			Name:        f.String(),
			Placeholder: placeholder(f),
			Value:       fields.Value(f),
		})
	}
	return Page{
		Fields:    fields,
		View:      v,
		Landmarks: landmarks,
		Traffic:   form.TrafficOptions,
		Cars:      form.CarOptions,
		Weather:   form.WeatherOptions,
	}
}

// PendingLabel and IdleLabel let the page script switch the button before the
// server answers.
func (Page) PendingLabel() string { return LabelPending }

func (Page) IdleLabel() string { return LabelIdle }

// FallbackError is shown when the submit request itself cannot complete.
func (Page) FallbackError() string { return predict.FailureMessage(predict.ErrTransport) }

func placeholder(f form.Field) string {
	switch f {
	case form.JFKDist:
		return "JFK"
	case form.EWRDist:
		return "EWR"
	case form.LGADist:
		return "LGA"
	case form.SOLDist:
		return "SOL"
	default:
		return "NYC"
	}
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"value": func(f form.Fields, name string) string {
			field, err := form.ParseField(name)
			if err != nil {
				return ""
			}
			return f.Value(field)
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: t}, nil
}

// Render writes the full page.
func (r *Renderer) Render(w io.Writer, p Page) error {
	return r.tmpl.ExecuteTemplate(w, "page", p)
}
