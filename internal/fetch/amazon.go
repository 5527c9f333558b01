package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"PriceSentry/internal/model"
)

// Defaults for the Amazon fetcher. Product pages serve a stripped layout
// (or a captcha) to clients without a browser user agent.
const (
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
	DefaultAcceptLanguage    = "en-US,en;q=0.9"
	DefaultTimeout           = 15 * time.Second
	DefaultRequestsPerMinute = 12
)

// priceSelectors is the cascade of places a product page exposes its price.
// Checked in order; the first non-empty match wins.
var priceSelectors = []string{
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	"#priceblock_saleprice",
	".a-price-whole",
}

// titleSelector locates the product name.
const titleSelector = "#productTitle"

// Options configures an AmazonFetcher. Zero fields fall back to defaults.
type Options struct {
	Timeout           time.Duration
	Proxy             string
	UserAgent         string
	AcceptLanguage    string
	RequestsPerMinute int
}

// AmazonFetcher implements Fetcher by scraping an Amazon product page.
type AmazonFetcher struct {
	Client         *http.Client
	UserAgent      string
	AcceptLanguage string
	limiter        *rate.Limiter
}

// NewAmazonFetcher creates a fetcher with optional proxy support and a
// token bucket pacing outbound requests.
func NewAmazonFetcher(opts Options) *AmazonFetcher {
	transport := &http.Transport{}
	if opts.Proxy != "" {
		if u, err := url.Parse(opts.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	lang := opts.AcceptLanguage
	if lang == "" {
		lang = DefaultAcceptLanguage
	}
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	return &AmazonFetcher{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		UserAgent:      ua,
		AcceptLanguage: lang,
		limiter:        rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
	}
}

func (f *AmazonFetcher) Name() string { return "amazon" }

// Fetch downloads the product page and extracts the title and price.
func (f *AmazonFetcher) Fetch(ctx context.Context, sourceURL string) (model.Quote, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return model.Quote{}, &Error{Kind: KindNetwork, Detail: "rate limit wait", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return model.Quote{}, &Error{Kind: KindNetwork, Detail: "build request", Err: err}
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept-Language", f.AcceptLanguage)

	resp, err := f.Client.Do(req)
	if err != nil {
		return model.Quote{}, &Error{Kind: KindNetwork, Detail: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Quote{}, &Error{Kind: KindUnexpectedStatus, Detail: "fetch page", Status: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return model.Quote{}, &Error{Kind: KindNetwork, Detail: "read page body", Err: err}
	}
	return extractQuote(doc)
}

func extractQuote(doc *goquery.Document) (model.Quote, error) {
	name := strings.TrimSpace(doc.Find(titleSelector).First().Text())
	if name == "" {
		return model.Quote{}, &Error{Kind: KindFieldNotFound, Detail: "product title not found"}
	}

	var raw string
	for _, sel := range priceSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			raw = text
			break
		}
	}
	if raw == "" {
		return model.Quote{}, &Error{Kind: KindFieldNotFound, Detail: "price field not found"}
	}

	price, err := ParsePrice(raw)
	if err != nil {
		return model.Quote{}, err
	}
	return model.Quote{Name: name, Price: price}, nil
}

// ParsePrice converts display text like "$1,299.99" into a decimal amount.
func ParsePrice(raw string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(raw))
	// ".a-price-whole" renders the integer part with a trailing dot.
	cleaned = strings.TrimSuffix(cleaned, ".")
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, &Error{Kind: KindUnparsablePrice, Detail: fmt.Sprintf("cannot parse %q", raw), Err: err}
	}
	if price.IsNegative() {
		return decimal.Decimal{}, &Error{Kind: KindUnparsablePrice, Detail: fmt.Sprintf("negative amount %q", raw)}
	}
	return price, nil
}
