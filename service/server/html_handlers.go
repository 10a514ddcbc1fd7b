package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/brojonat/solboard/service/config"
	"github.com/brojonat/solboard/service/lookup"
	"github.com/brojonat/solboard/service/ranking"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"short": shortenID,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tr.templates.ExecuteTemplate(w, name, data)
}

func (tr *TemplateRenderer) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	if err := tr.Render(w, name, data); err != nil {
		tr.logger.ErrorContext(r.Context(), "failed to render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// shortenID abbreviates signatures and addresses for table cells.
func shortenID(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "…" + s[len(s)-6:]
}

type walletPageData struct {
	SessionID string
	Address   string
	Cluster   string
	State     lookup.State
}

// handleWalletPage renders the explorer. With an address parameter it runs
// the lookup in the caller's session before rendering.
// GET /wallet?address={address}
func handleWalletPage(renderer *TemplateRenderer, sessions *lookup.Sessions, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := sessionView(w, r, sessions)
		address := strings.TrimSpace(r.URL.Query().Get("address"))

		if address != "" && len(address) <= maxAddressLength {
			// Failures are part of the rendered state.
			_, err := view.Submit(context.WithoutCancel(r.Context()), address)
			if err != nil && !errors.Is(err, lookup.ErrSuperseded) {
				renderer.logger.DebugContext(r.Context(), "lookup failed", "address", address, "error", err)
			}
		}

		renderer.render(w, r, "wallet.html", walletPageData{
			SessionID: view.ID(),
			Address:   address,
			Cluster:   cfg.SolanaCluster,
			State:     view.State(),
		})
	}
}

type metricOption struct {
	ID        string
	Label     string
	Selected  bool
	Sorted    bool
	ToggleURL string
	SortURL   string
}

type categoryOption struct {
	Name    string
	Metrics []metricOption
}

type creatorsPageData struct {
	Text       string
	Error      string
	Page       *ranking.Page
	Categories []categoryOption
}

// handleCreatorsPage renders the leaderboard. Selection errors are shown on
// the page and the previous selection is kept.
// GET /creators?q={text}&sort={metric}&metrics={a,b}&toggle={metric}
func handleCreatorsPage(renderer *TemplateRenderer, board *ranking.Board) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values := r.URL.Query()
		data := creatorsPageData{Text: strings.TrimSpace(values.Get("q"))}

		q, err := resolveQuery(board, values)
		if err != nil {
			data.Error = err.Error()
			values.Del("toggle")
			q, err = resolveQuery(board, values)
			if err != nil {
				q = ranking.Query{Text: data.Text}
			}
		}

		page, err := board.Query(r.Context(), q)
		if err != nil {
			data.Error = err.Error()
			page, err = board.Query(r.Context(), ranking.Query{Text: data.Text})
			if err != nil {
				renderer.logger.ErrorContext(r.Context(), "failed to rank users", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}
		data.Page = page
		data.Categories = categoryOptions(board.Registry(), page)

		renderer.render(w, r, "creators.html", data)
	}
}

// categoryOptions builds the metric picker for page's selection.
func categoryOptions(registry *ranking.Registry, page *ranking.Page) []categoryOption {
	selected := make(map[string]bool, len(page.Display))
	for _, id := range page.Display {
		selected[id] = true
	}

	categories := registry.Categories()
	options := make([]categoryOption, 0, len(categories))
	for _, c := range categories {
		opt := categoryOption{Name: c.Name}
		for _, m := range c.Metrics {
			opt.Metrics = append(opt.Metrics, metricOption{
				ID:        m.ID,
				Label:     m.Label,
				Selected:  selected[m.ID],
				Sorted:    m.ID == page.Sort,
				ToggleURL: creatorsURL(page.Query, page.Sort, page.Display, m.ID),
				SortURL:   creatorsURL(page.Query, m.ID, page.Display, ""),
			})
		}
		options = append(options, opt)
	}
	return options
}

func creatorsURL(text, sort string, display []string, toggle string) string {
	v := url.Values{}
	if text != "" {
		v.Set("q", text)
	}
	v.Set("sort", sort)
	v.Set("metrics", strings.Join(display, ","))
	if toggle != "" {
		v.Set("toggle", toggle)
	}
	return "/creators?" + v.Encode()
}

const faviconSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 32 32"><rect width="32" height="32" rx="6" fill="#14151a"/><path d="M8 22h16M8 16h12M8 10h8" stroke="#9945ff" stroke-width="3" stroke-linecap="round"/></svg>`

// handleFavicon serves the site icon.
func handleFavicon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(faviconSVG))
	}
}
