// Package sru checks the union catalog for an already-cataloged work via
// the SRU search-retrieve protocol.
package sru

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	util_http "github.com/epfllibrary/thesisync/pkg/util/http"
)

const DefaultBaseURL = "https://swisscovery.ch/view/sru/41SLSP_"

type Config struct {
	// BaseURL is the SRU endpoint prefix; the institution code is appended.
	BaseURL     string
	Institution string
	Timeout     time.Duration
	RetryMax    int
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

	c := retryablehttp.NewClient()
	c.RetryMax = cfg.RetryMax
	c.HTTPClient.Timeout = cfg.Timeout
	c.Logger = nil
	// Retry only on transport failures. A bad status code is a definitive
	// answer for the fail-open policy, not something to retry.
	c.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		return err != nil, nil
	}

	return &Client{
		cfg:        cfg,
		httpClient: c,
		log:        log.With(logger, "component", "sru"),
	}
}

type searchRetrieveResponse struct {
	XMLName         xml.Name    `xml:"searchRetrieveResponse"`
	NumberOfRecords int         `xml:"numberOfRecords"`
	Records         []sruRecord `xml:"records>record"`
}

type sruRecord struct {
	RecordData sruRecordData `xml:"recordData"`
}

type sruRecordData struct {
	Record *embeddedRecord `xml:"record"`
}

type embeddedRecord struct {
	DataFields []embeddedField `xml:"datafield"`
}

type embeddedField struct {
	Tag       string             `xml:"tag,attr"`
	Subfields []embeddedSubfield `xml:"subfield"`
}

type embeddedSubfield struct {
	Code string `xml:"code,attr"`
	Text string `xml:",chardata"`
}

func (r *embeddedRecord) subfield(tag, code string) string {
	for _, f := range r.DataFields {
		if f.Tag != tag {
			continue
		}
		for _, s := range f.Subfields {
			if s.Code == code {
				return s.Text
			}
		}
	}
	return ""
}

func (r *embeddedRecord) firstSubfield(code string, tags ...string) string {
	for _, tag := range tags {
		if v := r.subfield(tag, code); v != "" {
			return v
		}
	}
	return ""
}

// Exists queries the union catalog by exact title+creator phrase match and
// inspects the first result only. A bad HTTP status is treated as "not
// found" toward creation; a transport or parse failure is returned to the
// caller.
func (c *Client) Exists(ctx context.Context, title, author string) (bool, error) {
	params := url.Values{}
	params.Set("version", "1.2")
	params.Set("operation", "searchRetrieve")
	params.Set("query", fmt.Sprintf(`title="%s" AND creator="%s"`, title, author))
	params.Set("maximumRecords", "1")

	u := c.cfg.BaseURL + c.cfg.Institution + "?" + params.Encode()

	req, err := retryablehttp.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return false, errors.Wrap(err, "sru search")
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return false, errors.Wrap(err, "sru search")
	}

	if err := util_http.EnsureSuccessStatusCode(resp); err != nil {
		resp.Body.Close()
		level.Warn(c.log).Log("msg", "sru returned bad status, assuming not found", "status", resp.Status)
		return false, nil
	}

	body, err := util_http.ReadBody(resp)
	if err != nil {
		return false, errors.Wrap(err, "sru search")
	}

	var envelope searchRetrieveResponse
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return false, errors.Wrap(err, "sru search: parse response")
	}

	if len(envelope.Records) == 0 {
		return false, nil
	}

	rec := envelope.Records[0].RecordData.Record
	if rec == nil {
		level.Debug(c.log).Log("msg", "sru record data holds no marc record")
		return false, nil
	}

	level.Info(c.log).Log(
		"msg", "record already cataloged, no need to create again",
		"title", rec.subfield("245", "a"),
		"author", rec.firstSubfield("a", "100", "700"),
		"publisher", rec.firstSubfield("b", "260", "264"),
		"year", rec.firstSubfield("c", "260", "264"),
	)
	return true, nil
}
