package producer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gustavoa6791/k8s-colcap-news/internal/config"
	"github.com/gustavoa6791/k8s-colcap-news/internal/types"
)

// portalPlan describes how to walk one news portal: which section paths
// to visit and how pagination is spelled in its URLs.
type portalPlan struct {
	domain     string
	sections   []string
	pageFormat string // fmt with %s=section %d=page, empty means no pagination
	maxPages   int
}

// portalPlans covers the Colombian financial press front pages. Sections
// were picked for economic coverage density.
var portalPlans = []portalPlan{
	{
		domain:     "larepublica.co",
		sections:   []string{"/economia", "/finanzas", "/empresas", "/globoeconomia"},
		pageFormat: "%s?page=%d",
		maxPages:   5,
	},
	{
		domain:     "portafolio.co",
		sections:   []string{"/economia", "/negocios", "/internacional", "/indicadores-economicos"},
		pageFormat: "%s?page=%d",
		maxPages:   5,
	},
	{
		domain:     "eltiempo.com",
		sections:   []string{"/economia", "/economia/empresas", "/economia/finanzas-personales", "/economia/sectores"},
		pageFormat: "%s/page/%d",
		maxPages:   3,
	},
	{
		domain:     "elespectador.com",
		sections:   []string{"/economia", "/economia/macroeconomia", "/economia/empresas", "/economia/finanzas-personales"},
		pageFormat: "%s?page=%d",
		maxPages:   3,
	},
}

// articleHref matches the two slug shapes portals use for articles:
// a trailing numeric id (/titular-de-la-nota-123456) or a dated path
// (/2024/08/15/...).
var articleHref = regexp.MustCompile(`(-\d{4,}/?$)|(/20\d{2}/\d{2}/\d{2}/)`)

// PortalDiscoverer scrapes live portal section pages for article links.
// It is the fallback path when the archive stops yielding tasks.
type PortalDiscoverer struct {
	client       *http.Client
	domainDelay  time.Duration
	sectionDelay time.Duration
	pageDelay    time.Duration
	logger       *slog.Logger
}

// NewPortalDiscoverer creates the live-portal fallback discoverer.
func NewPortalDiscoverer(cfg config.ProducerConfig, fetchTimeout time.Duration, logger *slog.Logger) *PortalDiscoverer {
	return &PortalDiscoverer{
		client:       &http.Client{Timeout: fetchTimeout},
		domainDelay:  cfg.DelayBetweenDomains,
		sectionDelay: 2 * time.Second,
		pageDelay:    3 * time.Second,
		logger:       logger.With("component", "portal_discoverer"),
	}
}

// Discover walks every configured portal and returns direct-fetch tasks
// for the article links found. Per-portal failures are logged and
// skipped; an error is returned only when the context is cancelled.
func (d *PortalDiscoverer) Discover(ctx context.Context, domains []string) ([]types.Task, error) {
	wanted := make(map[string]bool, len(domains))
	for _, dom := range domains {
		wanted[dom] = true
	}

	var tasks []types.Task
	seen := make(map[string]struct{})

	for _, plan := range portalPlans {
		if len(wanted) > 0 && !wanted[plan.domain] {
			continue
		}
		found, err := d.discoverPortal(ctx, plan, seen)
		if err != nil {
			if ctx.Err() != nil {
				return tasks, ctx.Err()
			}
			d.logger.Warn("portal scrape failed", "domain", plan.domain, "error", err)
		}
		tasks = append(tasks, found...)

		if err := sleepCtx(ctx, d.domainDelay); err != nil {
			return tasks, err
		}
	}

	d.logger.Info("portal discovery complete", "tasks", len(tasks))
	return tasks, nil
}

func (d *PortalDiscoverer) discoverPortal(ctx context.Context, plan portalPlan, seen map[string]struct{}) ([]types.Task, error) {
	var tasks []types.Task

	for si, section := range plan.sections {
		if si > 0 {
			if err := sleepCtx(ctx, d.sectionDelay); err != nil {
				return tasks, err
			}
		}
		for page := 1; page <= plan.maxPages; page++ {
			if page > 1 {
				if err := sleepCtx(ctx, d.pageDelay); err != nil {
					return tasks, err
				}
			}
			pageURL := d.pageURL(plan, section, page)

			links, err := d.fetchLinks(ctx, pageURL, plan.domain)
			if err != nil {
				if ctx.Err() != nil {
					return tasks, ctx.Err()
				}
				d.logger.Debug("section page failed", "url", pageURL, "error", err)
				break // deeper pages of a broken section will not fare better
			}

			added := 0
			for _, link := range links {
				if _, dup := seen[link]; dup {
					continue
				}
				seen[link] = struct{}{}
				tasks = append(tasks, types.NewPortalTask(link, plan.domain))
				added++
			}
			if added == 0 && page > 1 {
				break // pagination exhausted
			}
		}
	}
	return tasks, nil
}

func (d *PortalDiscoverer) pageURL(plan portalPlan, section string, page int) string {
	base := "https://www." + plan.domain
	if page == 1 || plan.pageFormat == "" {
		return base + section
	}
	return base + fmt.Sprintf(plan.pageFormat, section, page)
}

// fetchLinks downloads one section page and extracts article hrefs.
func (d *PortalDiscoverer) fetchLinks(ctx context.Context, pageURL, domain string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; colcap-news-pipeline/1.0)")
	req.Header.Set("Accept-Language", "es-CO,es;q=0.9")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &types.FetchError{URL: pageURL, Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &types.FetchError{URL: pageURL, StatusCode: resp.StatusCode, Retryable: resp.StatusCode >= 500}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &types.ParseError{Source: pageURL, Err: err}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := absolutize(href, domain)
		if abs == "" {
			return
		}
		if !articleHref.MatchString(abs) {
			return
		}
		if !IsValidNewsURL(abs, config.ExcludedPatterns, config.NewsSections) {
			return
		}
		links = append(links, abs)
	})
	return links, nil
}

// absolutize resolves a portal href against its domain, rejecting
// off-domain links.
func absolutize(href, domain string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:"):
		return ""
	case strings.HasPrefix(href, "//"):
		href = "https:" + href
	case strings.HasPrefix(href, "/"):
		return "https://www." + domain + href
	}
	if !strings.HasPrefix(href, "http") {
		return ""
	}
	if !strings.Contains(href, domain) {
		return ""
	}
	return href
}
