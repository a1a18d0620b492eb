package eaterss

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"
)

const (
	DefaultHTTPTimeout = 30 * time.Second
	FeedKindAtom       = "Atom"
	FeedKindRDF        = "RDF"
	FeedKindRSS        = "RSS"
)

// Feed is one fetched and parsed feed. A refresh replaces it wholesale.
type Feed struct {
	Title string
	Kind  string
	Items []Item
}

// Item is a single entry within a Feed, immutable once parsed. A zero
// Published means the source carried no usable date.
type Item struct {
	Title     string
	Link      string
	Published time.Time
	Summary   string
}

// InputError reports a URL that was empty or not fetchable even in principle.
type InputError struct {
	URL string
}

func (e *InputError) Error() string {
	if e.URL == "" {
		return "empty feed URL"
	}
	return fmt.Sprintf("invalid feed URL %q", e.URL)
}

// FetchError reports a network or HTTP-level failure.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %q: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports content that was retrieved but is not a feed.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing feed %q: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

type Fetcher struct {
	Client *http.Client
	parser *gofeed.Parser
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		Client: &http.Client{
			Timeout: DefaultHTTPTimeout,
		},
		parser: gofeed.NewParser(),
	}
}

// Fetch retrieves URL and parses the response into a Feed. If the URL serves
// an HTML page instead of a feed, the page is scanned for advertised feed
// links and the first candidate is fetched, one level deep.
func (f *Fetcher) Fetch(URL string) (Feed, error) {
	return f.fetch(URL, true)
}

func (f *Fetcher) fetch(URL string, discover bool) (Feed, error) {
	if strings.TrimSpace(URL) == "" {
		return Feed{}, &InputError{}
	}
	u, err := url.Parse(URL)
	if err != nil || u.Scheme != "http" && u.Scheme != "https" {
		return Feed{}, &InputError{URL: URL}
	}
	req, err := http.NewRequest(http.MethodGet, URL, nil)
	if err != nil {
		return Feed{}, &InputError{URL: URL}
	}
	req.Header.Set("user-agent", "EateRSS/0.1")
	req.Header.Set("accept", "*/*")
	resp, err := f.Client.Do(req)
	if err != nil {
		return Feed{}, &FetchError{URL: URL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Feed{}, &FetchError{URL: URL, Err: fmt.Errorf("unexpected response status %q", resp.Status)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Feed{}, &FetchError{URL: URL, Err: err}
	}
	if parseContentType(resp.Header) == "text/html" {
		if !discover {
			return Feed{}, &ParseError{URL: URL, Err: fmt.Errorf("got an HTML page, not a feed")}
		}
		candidates, err := DiscoverFeeds(bytes.NewReader(body), URL)
		if err != nil {
			return Feed{}, &ParseError{URL: URL, Err: err}
		}
		if len(candidates) == 0 {
			return Feed{}, &ParseError{URL: URL, Err: fmt.Errorf("page advertises no feeds")}
		}
		return f.fetch(candidates[0], false)
	}
	kind, err := DetectFeedKind(bytes.NewReader(body))
	if err != nil {
		return Feed{}, &ParseError{URL: URL, Err: err}
	}
	parsed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return Feed{}, &ParseError{URL: URL, Err: err}
	}
	feed := Feed{
		Title: parsed.Title,
		Kind:  kind,
		Items: make([]Item, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		feed.Items = append(feed.Items, Item{
			Title:     item.Title,
			Link:      item.Link,
			Published: publishedTime(item),
			Summary:   StripHTML(itemSummary(item)),
		})
	}
	return feed, nil
}

func publishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func itemSummary(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}

func parseContentType(headers http.Header) string {
	return strings.Split(headers.Get("content-type"), ";")[0]
}

// DetectFeedKind reads the document's root element and maps it to one of the
// FeedKind constants. Non-UTF8 documents are handled via the charset reader.
func DetectFeedKind(r io.Reader) (string, error) {
	type root struct {
		XMLName xml.Name
	}
	rootData := root{}
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel
	err := decoder.Decode(&rootData)
	if err != nil {
		return "", err
	}
	switch strings.ToUpper(rootData.XMLName.Local) {
	case "RSS":
		return FeedKindRSS, nil
	case "FEED":
		return FeedKindAtom, nil
	case "RDF":
		return FeedKindRDF, nil
	default:
		return "", fmt.Errorf("unexpected XMLName %q", strings.ToUpper(rootData.XMLName.Local))
	}
}

// DiscoverFeeds scans an HTML page for feed URLs advertised in link tags or
// rss-titled anchors. Relative URLs are resolved against baseURL. Order of
// appearance is preserved, duplicates dropped.
func DiscoverFeeds(r io.Reader, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	candidates := []string{}
	seen := map[string]bool{}
	add := func(href string) {
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(u).String()
		if seen[resolved] {
			return
		}
		seen[resolved] = true
		candidates = append(candidates, resolved)
	}
	doc.Find("link[type='application/rss+xml'], link[type='application/atom+xml']").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if exists {
			add(href)
		}
	})
	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		title, _ := s.Attr("title")
		if strings.Contains(strings.ToLower(title), "rss") {
			href, exists := s.Attr("href")
			if exists {
				add(href)
			}
		}
	})
	return candidates, nil
}

// StripHTML reduces an HTML fragment to its text content. Feed summaries are
// routinely HTML; the terminal wants plain text.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
