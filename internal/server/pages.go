package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Mr-Dark-debug/pulse/internal/analytics"
	"github.com/Mr-Dark-debug/pulse/internal/theme"
	"github.com/Mr-Dark-debug/pulse/pkg/format"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"index", "leaderboard", "industries"}

// pages holds one template set per page, each layered on the shared layout.
type pages struct {
	sets map[string]*template.Template
}

func loadPages() (*pages, error) {
	funcs := template.FuncMap{
		"currency": format.Currency,
		"compact":  format.CompactCurrency,
		"percent":  format.Percent,
		"count":    format.Count,
		"band":     analytics.HealthBand,
	}
	p := &pages{sets: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		p.sets[name] = t
	}
	return p, nil
}

// render executes the page into a buffer so template errors become a 500
// instead of a truncated page.
func (p *pages) render(w http.ResponseWriter, name string, data pageData) error {
	t, ok := p.sets[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// pageChart is a chart slot on a page.
type pageChart struct {
	Name  string
	Title string
	SVG   template.HTML
	Error string
}

type pageData struct {
	Title   string
	Active  string
	Theme   ThemeState
	CSS     template.CSS
	Summary analytics.Summary
	Leaders []analytics.ManagerRow
	Sectors []analytics.IndustryRow
	Charts  []pageChart
}

// paletteCSS renders both palettes as custom properties keyed by the
// data-theme attribute, so the page can switch without a reload.
func paletteCSS() template.CSS {
	var b strings.Builder
	for _, th := range []theme.Theme{theme.Light, theme.Dark} {
		p := theme.PaletteFor(th)
		fmt.Fprintf(&b, ":root[data-theme=%q]{", string(th))
		for _, v := range [][2]string{
			{"bg", p.Background},
			{"surface", p.Surface},
			{"text", p.Text},
			{"muted", p.Muted},
			{"accent", p.Accent},
			{"border", p.Border},
			{"grid", p.Grid},
			{"success", p.Success},
			{"warning", p.Warning},
			{"danger", p.Danger},
		} {
			fmt.Fprintf(&b, "--%s:%s;", v[0], v[1])
		}
		b.WriteString("}\n")
	}
	return template.CSS(b.String())
}

func (s *Server) page(w http.ResponseWriter, r *http.Request, name, title string, charts ...string) {
	atomic.AddInt64(&s.metrics.PageViews, 1)

	clients, ok := s.clients(w)
	if !ok {
		return
	}
	data := pageData{
		Title:   title,
		Active:  name,
		Theme:   s.themeState(),
		CSS:     paletteCSS(),
		Summary: analytics.Summarize(clients),
		Leaders: analytics.Leaderboard(clients),
		Sectors: analytics.IndustryPerformance(clients),
	}
	for _, c := range charts {
		pc := pageChart{Name: c, Title: chartTitle(c)}
		svg, err := s.charts.SVG(r.Context(), c)
		if err != nil {
			pc.Error = err.Error()
		} else {
			pc.SVG = template.HTML(svg)
		}
		data.Charts = append(data.Charts, pc)
	}

	if err := s.pages.render(w, name, data); err != nil {
		s.logger.Error("page render failed", zap.String("page", name), zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

func chartTitle(name string) string {
	for _, def := range chartDefs {
		if def.name == name {
			return def.title
		}
	}
	return name
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, "index", "Overview", s.charts.Names()...)
}

func (s *Server) handleLeaderboardPage(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, "leaderboard", "Leaderboard", "health")
}

func (s *Server) handleIndustriesPage(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, "industries", "Industries", "revenue")
}
