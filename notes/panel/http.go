package panel

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/team-of-2/novelize/notes"
	"github.com/team-of-2/novelize/notes/render"
	"go.uber.org/zap"
)

// View is the latest state pushed by a Controller.
type View struct {
	Notes   notes.Notes
	Summary string
	Warning string
}

// ViewPresenter keeps the latest View in memory for the HTTP panel. It is safe for concurrent use.
type ViewPresenter struct {
	mu   sync.RWMutex
	view View
}

var _ Presenter = (*ViewPresenter)(nil)

func (p *ViewPresenter) ShowNotes(n notes.Notes) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Notes = n
	p.view.Summary = ""
}

func (p *ViewPresenter) ShowSummary(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Summary = text
	p.view.Notes = nil
}

func (p *ViewPresenter) ShowWarning(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Warning = msg
}

// View returns a copy of the current state.
func (p *ViewPresenter) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v := p.view
	v.Notes = v.Notes.Clone()
	return v
}

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>Novelize</title></head>
<body>
<form method="post" action="/config">
  <select name="type">{{range .Types}}<option{{if eq . $.Options.Type}} selected{{end}}>{{.}}</option>{{end}}</select>
  <select name="format">{{range .Formats}}<option{{if eq . $.Options.Format}} selected{{end}}>{{.}}</option>{{end}}</select>
  <select name="length">{{range .Lengths}}<option{{if eq . $.Options.Length}} selected{{end}}>{{.}}</option>{{end}}</select>
  <button type="submit">Apply</button>
</form>
{{if .Warning}}<div id="warning">{{.Warning}}</div>{{end}}
<div id="summary-card-container">
{{if .Cards}}{{.Cards}}{{else}}<p>{{.Summary}}</p>{{end}}
</div>
</body>
</html>
`))

type page struct {
	View
	Cards   template.HTML
	Options notes.SummaryOptions
	Types   []string
	Formats []string
	Lengths []string
}

// maxBodyBytes bounds request bodies well above any accepted paragraph.
const maxBodyBytes = 1 << 20

// NewHandler serves the panel:
//
//	GET  /            HTML page
//	POST /content     body is the new content
//	POST /config      form or JSON selectors
//	GET  /notes.json  current ledger
//	GET  /notes.csv   current ledger as CSV
//	PUT  /notes       replace the ledger; If-Match must carry the ETag it was read at
func NewHandler(c *Controller, p *ViewPresenter, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		v := p.View()
		cards, err := render.HTML(v.Notes)
		if err != nil {
			logger.Error("render cards", zap.Error(err))
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = pageTmpl.Execute(w, page{
			View:    v,
			Cards:   cards,
			Options: c.Options(),
			Types:   []string{notes.TypeCharacters, notes.TypeKeyPoints, notes.TypeTLDR, notes.TypeTeaser, notes.TypeHeadline},
			Formats: []string{notes.FormatMarkdown, notes.FormatPlainText},
			Lengths: []string{notes.LengthShort, notes.LengthMedium, notes.LengthLong},
		})
		if err != nil {
			logger.Error("render page", zap.Error(err))
		}
	})

	mux.HandleFunc("POST /content", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "read body: "+err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		if err := c.OnContentChange(r.Context(), string(body)); err != nil {
			writeControllerError(w, err)
			return
		}
		writeView(w, p.View(), logger)
	})

	mux.HandleFunc("POST /config", func(w http.ResponseWriter, r *http.Request) {
		opts := c.Options()
		if r.Header.Get("Content-Type") == "application/json" {
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&opts); err != nil {
				http.Error(w, "decode options: "+err.Error(), http.StatusBadRequest)
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "parse form: "+err.Error(), http.StatusBadRequest)
				return
			}
			if v := r.PostForm.Get("type"); v != "" {
				opts.Type = v
			}
			if v := r.PostForm.Get("format"); v != "" {
				opts.Format = v
			}
			if v := r.PostForm.Get("length"); v != "" {
				opts.Length = v
			}
		}
		if err := c.OnConfigChange(r.Context(), opts); err != nil {
			writeControllerError(w, err)
			return
		}
		if r.Header.Get("Content-Type") == "application/json" {
			writeView(w, p.View(), logger)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	mux.HandleFunc("GET /notes.json", func(w http.ResponseWriter, r *http.Request) {
		n, version := c.Ledger()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", etag(version))
		if err := notes.WriteJSON(w, n, true); err != nil {
			logger.Error("write notes json", zap.Error(err))
		}
	})

	mux.HandleFunc("GET /notes.csv", func(w http.ResponseWriter, r *http.Request) {
		n, version := c.Ledger()
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="character_notes.csv"`)
		w.Header().Set("ETag", etag(version))
		if err := notes.WriteCSV(w, n); err != nil {
			logger.Error("write notes csv", zap.Error(err))
		}
	})

	mux.HandleFunc("PUT /notes", func(w http.ResponseWriter, r *http.Request) {
		match := r.Header.Get("If-Match")
		if match == "" {
			http.Error(w, "If-Match with the ledger ETag is required", http.StatusPreconditionRequired)
			return
		}
		version, err := strconv.ParseUint(strings.Trim(match, `"`), 10, 64)
		if err != nil {
			http.Error(w, "If-Match: "+err.Error(), http.StatusBadRequest)
			return
		}
		var body map[string][]string
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			http.Error(w, "decode notes: "+err.Error(), http.StatusBadRequest)
			return
		}
		n := make(notes.Notes, len(body))
		for name, items := range body {
			if name = strings.TrimSpace(name); name != "" {
				n[name] = notes.ActionsEntry(items...)
			}
		}
		if err := c.ReplaceNotes(version, n); err != nil {
			writeControllerError(w, err)
			return
		}
		w.Header().Set("ETag", etag(version+1))
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

type viewJSON struct {
	Notes   map[string][]string `json:"notes,omitempty"`
	Summary string              `json:"summary,omitempty"`
	Warning string              `json:"warning,omitempty"`
}

func writeView(w http.ResponseWriter, v View, logger *zap.Logger) {
	out := viewJSON{Summary: v.Summary, Warning: v.Warning}
	if len(v.Notes) > 0 {
		out.Notes = make(map[string][]string, len(v.Notes))
		for name, e := range v.Notes {
			out.Notes[name] = e.Items()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		logger.Error("write view", zap.Error(err))
	}
}

func etag(version uint64) string {
	return `"` + strconv.FormatUint(version, 10) + `"`
}

func writeControllerError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, notes.ErrInputTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errInvalidOptions):
		status = http.StatusBadRequest
	case errors.Is(err, notes.ErrStaleVersion):
		status = http.StatusPreconditionFailed
	}
	http.Error(w, err.Error(), status)
}
