// Package analytics reads the last used call number from the catalog's
// analytics reporting service. This is the allocator's source of truth: if
// it cannot be reached, the whole run aborts before any record is
// processed.
package analytics

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	util_http "github.com/epfllibrary/thesisync/pkg/util/http"
)

type Config struct {
	BaseURL  string
	Path     string
	APIKey   string
	Timeout  time.Duration
	RetryMax int
}

// ConfigFromEnv reads the service coordinates from the process environment.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL: os.Getenv("ALMA_API_URL"),
		Path:    os.Getenv("ALMA_API_ANALYTICS_PATH"),
		APIKey:  os.Getenv("ALMA_API_KEY"),
	}
	if cfg.BaseURL == "" || cfg.Path == "" || cfg.APIKey == "" {
		return cfg, errors.New("ALMA_API_URL, ALMA_API_ANALYTICS_PATH and ALMA_API_KEY must be set")
	}
	return cfg, nil
}

type Client struct {
	cfg        Config
	httpClient *retryablehttp.Client
}

func NewClient(cfg Config) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = cfg.RetryMax
	c.HTTPClient.Timeout = cfg.Timeout
	c.Logger = nil

	return &Client{cfg: cfg, httpClient: c}
}

// LastCallNumber fetches the analytics report and returns the numeric value
// of the first row's Column3.
func (c *Client) LastCallNumber(ctx context.Context) (int, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, c.cfg.BaseURL+c.cfg.Path, nil)
	if err != nil {
		return 0, errors.Wrap(err, "get last call number")
	}
	req.Header.Set("Authorization", "apikey "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return 0, errors.Wrap(err, "get last call number")
	}

	if err := util_http.EnsureSuccessStatusCode(resp); err != nil {
		resp.Body.Close()
		return 0, errors.Wrap(err, "get last call number")
	}

	body, err := util_http.ReadBody(resp)
	if err != nil {
		return 0, errors.Wrap(err, "get last call number")
	}

	value, err := parseFirstRowColumn3(body)
	if err != nil {
		return 0, errors.Wrap(err, "get last call number")
	}
	return value, nil
}

// parseFirstRowColumn3 walks the rowset payload to the first Row element
// and reads its Column3 as an integer.
func parseFirstRowColumn3(body []byte) (int, error) {
	d := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return 0, errors.New("no row in analytics response")
		}
		if err != nil {
			return 0, errors.Wrap(err, "parse analytics response")
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Row" {
			continue
		}

		var row struct {
			Column3 string `xml:"Column3"`
		}
		if err := d.DecodeElement(&row, &se); err != nil {
			return 0, errors.Wrap(err, "parse analytics row")
		}

		v := strings.TrimSpace(row.Column3)
		value, err := strconv.Atoi(v)
		if err != nil {
			return 0, errors.Errorf("analytics Column3 missing or not numeric: %q", v)
		}
		return value, nil
	}
}
