package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
)

// DefaultUserAgent is sent with every page request
const DefaultUserAgent = "Mozilla/5.0 (compatible; Analyst/1.0; +https://github.com/kris-hansen/analyst)"

// Page is the text extracted from one web page
type Page struct {
	URL         string
	Title       string
	Paragraphs  []string
	Links       []string
	StatusCode  int
	ContentType string
}

// Text joins the title and paragraphs into a plain document
func (p *Page) Text() string {
	parts := make([]string, 0, len(p.Paragraphs)+1)
	if t := strings.TrimSpace(p.Title); t != "" {
		parts = append(parts, t)
	}
	for _, para := range p.Paragraphs {
		if para = strings.TrimSpace(para); para != "" {
			parts = append(parts, para)
		}
	}
	return strings.Join(parts, "\n")
}

// Scraper fetches pages with colly. A fresh collector is built per Scrape call.
type Scraper struct {
	userAgent      string
	timeout        time.Duration
	headers        map[string]string
	allowedDomains []string
}

// NewScraper creates a scraper with the default user agent and a 30s timeout
func NewScraper() *Scraper {
	return &Scraper{
		userAgent: DefaultUserAgent,
		timeout:   30 * time.Second,
		headers:   make(map[string]string),
	}
}

// SetTimeout changes the per-request timeout
func (s *Scraper) SetTimeout(d time.Duration) {
	s.timeout = d
}

// SetCustomHeaders adds headers to every request
func (s *Scraper) SetCustomHeaders(headers map[string]string) {
	for k, v := range headers {
		s.headers[k] = v
	}
}

// AllowedDomains restricts scraping to the given domains and their subdomains
func (s *Scraper) AllowedDomains(domains ...string) {
	s.allowedDomains = domains
	log.Debug().Strs("domains", domains).Msg("scraper allowed domains set")
}

func (s *Scraper) allowed(host string) bool {
	if len(s.allowedDomains) == 0 {
		return true
	}
	for _, domain := range s.allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Scrape fetches rawURL and returns its title, paragraphs and links
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL '%s'", rawURL)
	}
	if !s.allowed(u.Hostname()) {
		return nil, fmt.Errorf("domain %s is not allowed", u.Hostname())
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(s.userAgent),
	)
	c.SetRequestTimeout(s.timeout)

	page := &Page{URL: rawURL}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		for k, v := range s.headers {
			r.Headers.Set(k, v)
		}
	})

	c.OnHTML("title", func(e *colly.HTMLElement) {
		page.Title = strings.TrimSpace(e.Text)
	})

	c.OnHTML("p", func(e *colly.HTMLElement) {
		if text := strings.TrimSpace(e.Text); text != "" {
			page.Paragraphs = append(page.Paragraphs, text)
		}
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if link := e.Request.AbsoluteURL(e.Attr("href")); link != "" {
			page.Links = append(page.Links, link)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.ContentType = r.Headers.Get("Content-Type")
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, fmt.Errorf("error scraping %s: %w", rawURL, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Debug().Str("url", rawURL).Int("status", page.StatusCode).Int("paragraphs", len(page.Paragraphs)).Msg("page scraped")
	return page, nil
}

// DocumentName names a scraped page by host and path, e.g. "example.com/about"
func DocumentName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	name := u.Host + strings.TrimRight(u.Path, "/")
	return name
}
