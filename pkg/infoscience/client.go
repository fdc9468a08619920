// Package infoscience fetches thesis records from the institutional
// repository's paginated discover/export endpoint.
package infoscience

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/epfllibrary/thesisync/pkg/marc"
	util_http "github.com/epfllibrary/thesisync/pkg/util/http"
)

const (
	DefaultBaseURL = "https://infoscience.epfl.ch/server/api/discover/export"

	// Fixed query used in test mode: one known thesis, a single page.
	StaticTestURL = "https://infoscience.epfl.ch/server/api/discover/export?" +
		"spc.page=1&" +
		"query=Applications%20of%20Data-driven%20Predictive%20Control%20to%20Building%20Energy%20Systems&" +
		"configuration=researchoutputs&" +
		"scope=4af344ef-0fb2-4593-a234-78d57f3df621&f.types=thesis-coar-types:c_db06,authority&" +
		"f.dateIssued.min=2025&f.author_editor=koch,%20manuel%20pascal,equals&of=xm"

	configuration = "researchoutputs"
	typesFilter   = "thesis-coar-types:c_db06,authority"
)

type Config struct {
	BaseURL       string
	StaticURL     string
	PageSize      int
	Format        string
	SinceStrategy string
	Timeout       time.Duration
	RetryMax      int
}

type Client struct {
	cfg        Config
	httpClient *retryablehttp.Client
	log        log.Logger
}

func NewClient(cfg Config, logger log.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.StaticURL == "" {
		cfg.StaticURL = StaticTestURL
	}
	if cfg.Format == "" {
		cfg.Format = "xm"
	}

	c := retryablehttp.NewClient()
	c.RetryMax = cfg.RetryMax
	c.HTTPClient.Timeout = cfg.Timeout
	c.Logger = nil

	return &Client{
		cfg:        cfg,
		httpClient: c,
		log:        log.With(logger, "component", "infoscience"),
	}
}

// FirstDayPreviousMonth formats the first day of the month before ref as
// YYYY-MM-01.
func FirstDayPreviousMonth(ref time.Time) string {
	year, month := ref.Year(), int(ref.Month())
	if month == 1 {
		year--
		month = 12
	} else {
		month--
	}
	return fmt.Sprintf("%04d-%02d-01", year, month)
}

func (c *Client) sinceDate(now time.Time) string {
	// previous_month is the only implemented strategy; anything else falls
	// back to it.
	return FirstDayPreviousMonth(now)
}

// ExportURL builds the discover/export URL for one page.
func (c *Client) ExportURL(page int) string {
	query := fmt.Sprintf("dc.publisher:EPFL dc.date.created:[%s TO *]", c.sinceDate(time.Now()))

	params := url.Values{}
	params.Set("configuration", configuration)
	params.Set("spc.page", fmt.Sprintf("%d", page))
	params.Set("spc.rpp", fmt.Sprintf("%d", c.cfg.PageSize))
	params.Set("f.types", typesFilter)
	params.Set("query", query)
	params.Set("spc.sf", "dc.date.accessioned")
	params.Set("spc.sd", "DESC")
	params.Set("of", c.cfg.Format)

	return c.cfg.BaseURL + "?" + params.Encode()
}

func (c *Client) fetch(ctx context.Context, u string) ([]*marc.Record, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "fetch export page")
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "fetch export page")
	}
	defer resp.Body.Close()

	if err := util_http.EnsureSuccessStatusCode(resp); err != nil {
		return nil, errors.Wrap(err, "fetch export page")
	}

	records, err := marc.ParseCollection(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "fetch export page")
	}
	return records, nil
}

// FetchPage downloads and parses one page of the paginated export.
func (c *Client) FetchPage(ctx context.Context, page int) ([]*marc.Record, error) {
	u := c.ExportURL(page)
	level.Info(c.log).Log("msg", "fetching export page", "page", page, "url", u)
	return c.fetch(ctx, u)
}

// FetchStatic downloads the fixed-query test URL.
func (c *Client) FetchStatic(ctx context.Context) ([]*marc.Record, error) {
	level.Info(c.log).Log("msg", "fetching static export url", "url", c.cfg.StaticURL)
	return c.fetch(ctx, c.cfg.StaticURL)
}
