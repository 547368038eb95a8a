package handler

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sakif/trading-post/internal/auth"
	"github.com/sakif/trading-post/internal/middleware"
	"github.com/sakif/trading-post/internal/model"
)

// Page names. Each is templates/<name>.html, parsed together with the base
// layout and shared partials.
const (
	pageHome          = "home"
	pageLogin         = "login"
	pageLocation      = "location"
	pageItem          = "item"
	pageUserItems     = "user_items"
	pageUserItem      = "user_item"
	pageMessages      = "messages"
	pageReply         = "reply"
	pageMessageDelete = "message_delete"
	pageItemForm      = "item_form"
	pageItemDelete    = "item_delete"
	pageError         = "error"
)

var pageNames = []string{
	pageHome, pageLogin, pageLocation, pageItem, pageUserItems, pageUserItem,
	pageMessages, pageReply, pageMessageDelete, pageItemForm, pageItemDelete, pageError,
}

// LocationLister feeds the location sidebar on every page.
type LocationLister interface {
	Locations(ctx context.Context) ([]model.Location, error)
}

// View is the data every template receives. Page holds the page-specific part.
type View struct {
	Title     string
	SignedIn  bool
	UserEmail string
	Flash     string
	CSRFToken string
	Locations []model.Location
	Page      any
}

// Pages renders HTML pages and owns the flash cookie.
//
// TEMPLATE SETS:
// html/template needs one set per page because every page defines its own
// "content" block; parsing them all into one set would let the last one win.
// So each page gets its own clone of base.html + partials.html + <page>.html.
type Pages struct {
	templates    map[string]*template.Template
	locations    LocationLister
	cookieSecure bool
	logger       *slog.Logger
}

// NewPages parses every page from fsys, which must contain templates/.
func NewPages(fsys fs.FS, locations LocationLister, cookieSecure bool, logger *slog.Logger) (*Pages, error) {
	tmpls := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(fsys,
			"templates/base.html",
			"templates/partials.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("handler: parsing page %s: %w", name, err)
		}
		tmpls[name] = t
	}

	return &Pages{
		templates:    tmpls,
		locations:    locations,
		cookieSecure: cookieSecure,
		logger:       logger,
	}, nil
}

// Render writes page with the given status. The template is executed into a
// buffer first so a template error becomes a clean 500 instead of half a page.
func (p *Pages) Render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	t, ok := p.templates[page]
	if !ok {
		p.logger.Error("unknown page", slog.String("page", page))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	view := View{
		Title:     title,
		Flash:     p.popFlash(w, r),
		CSRFToken: middleware.CSRFToken(r.Context()),
		Page:      data,
	}
	if s, ok := auth.SessionFromContext(r.Context()); ok {
		view.SignedIn = true
		view.UserEmail = s.Email
	}

	locs, err := p.locations.Locations(r.Context())
	if err != nil {
		// The sidebar is not worth failing the page over.
		p.logger.Warn("loading sidebar locations", slog.String("error", err.Error()))
	}
	view.Locations = locs

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", view); err != nil {
		p.logger.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		p.logger.Debug("writing page", slog.String("error", err.Error()))
	}
}

// errorPage is the data for the error template.
type errorPage struct {
	Heading string
	Message string
}

// RenderError renders the error page for status with a safe message.
func (p *Pages) RenderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	p.Render(w, r, status, pageError, http.StatusText(status), errorPage{
		Heading: http.StatusText(status),
		Message: message,
	})
}

// Redirect sets a flash message and sends a 303 to target.
func (p *Pages) Redirect(w http.ResponseWriter, r *http.Request, target, flash string) {
	if flash != "" {
		p.setFlash(w, flash)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// TooManyRequests is the page shown when a user sends messages too quickly.
func (p *Pages) TooManyRequests(w http.ResponseWriter, r *http.Request) {
	p.RenderError(w, r, http.StatusTooManyRequests,
		"You are sending messages too quickly. Please wait a minute and try again.")
}
