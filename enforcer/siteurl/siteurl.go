// Package siteurl builds absolute URLs to pages on the public site.
package siteurl

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/purell"
	"github.com/labstack/echo/v4"
)

// Named routes on the public site
const (
	RouteAppealAuthor   = "appeal.author"
	RouteAppealReporter = "appeal.reporter"
)

// Builder reverses named site routes. The routes are registered on an echo
// instance which is only used for reversing; the pages themselves are served
// elsewhere.
type Builder struct {
	site   string
	routes *echo.Echo
}

func NewBuilder(siteURL string) (*Builder, error) {
	if !strings.HasPrefix(siteURL, "http://") && !strings.HasPrefix(siteURL, "https://") {
		return nil, fmt.Errorf("site URL must include 'http://' or 'https://': %q", siteURL)
	}
	e := echo.New()
	notServed := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	e.GET("/abuse/appeal/:decision/", notServed).Name = RouteAppealAuthor
	e.GET("/abuse/appeal/:report/:decision/", notServed).Name = RouteAppealReporter
	return &Builder{
		site:   strings.TrimSuffix(siteURL, "/"),
		routes: e,
	}, nil
}

func (b *Builder) SiteURL() string {
	return b.site
}

// Absolutify turns a site-relative path into a normalized absolute URL.
// Already absolute URLs are only normalized.
func (b *Builder) Absolutify(path string) string {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		raw = b.site + path
	}
	out, err := purell.NormalizeURLString(raw, purell.FlagsSafe|purell.FlagRemoveDuplicateSlashes)
	if err != nil {
		return raw
	}
	return out
}

// Reverse returns the absolute URL for the named route, with params filling
// the route's path parameters in order.
func (b *Builder) Reverse(name string, params ...any) (string, error) {
	path := b.routes.Reverse(name, params...)
	if path == "" {
		return "", fmt.Errorf("unknown route: %s", name)
	}
	return b.Absolutify(path), nil
}

func (b *Builder) AppealAuthorURL(decisionRef string) (string, error) {
	return b.Reverse(RouteAppealAuthor, decisionRef)
}

func (b *Builder) AppealReporterURL(reportID uint, decisionRef string) (string, error) {
	return b.Reverse(RouteAppealReporter, reportID, decisionRef)
}
