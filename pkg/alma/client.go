// Package alma is a thin client for the target catalog's REST inventory
// API: bib, holding and item creation plus holdings lookup. Only the five
// operations the synchronizer consumes are implemented.
package alma

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	util_http "github.com/epfllibrary/thesisync/pkg/util/http"
)

const DefaultBaseURL = "https://api-eu.hosted.exlibrisgroup.com/almaws/v1"

type Config struct {
	BaseURL string
	// Env selects sandbox (S) or production (P) credentials.
	Env         string
	Institution string
	APIKey      string
	Timeout     time.Duration
	RetryMax    int
}

// ConfigFromEnv fills the API key from the process environment, honoring
// the sandbox/production split.
func ConfigFromEnv(env, institution string) (Config, error) {
	key := os.Getenv("ALMA_API_KEY")
	if env == "S" {
		if sandbox := os.Getenv("ALMA_API_KEY_SANDBOX"); sandbox != "" {
			key = sandbox
		}
	}
	if key == "" {
		return Config{}, errors.New("ALMA_API_KEY must be set")
	}

	return Config{
		Env:         env,
		Institution: institution,
		APIKey:      key,
	}, nil
}

type Client struct {
	cfg        Config
	httpClient *retryablehttp.Client
	log        log.Logger

	// holdings responses are cached per bib; mutated only between record
	// iterations, the pipeline is single-threaded.
	holdings map[string][]HoldingRef
}

func NewClient(cfg Config, logger log.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	c := retryablehttp.NewClient()
	c.RetryMax = cfg.RetryMax
	c.HTTPClient.Timeout = cfg.Timeout
	c.Logger = nil

	return &Client{
		cfg:        cfg,
		httpClient: c,
		log:        log.With(logger, "component", "alma", "env", cfg.Env, "institution", cfg.Institution),
		holdings:   map[string][]HoldingRef{},
	}
}

// HoldingRef identifies one holding attached to a bib.
type HoldingRef struct {
	HoldingID  string
	Library    string
	Location   string
	CallNumber string
}

type bibResponse struct {
	XMLName xml.Name `xml:"bib"`
	MMSID   string   `xml:"mms_id"`
}

type holdingResponse struct {
	XMLName   xml.Name `xml:"holding"`
	HoldingID string   `xml:"holding_id"`
}

type itemResponse struct {
	XMLName  xml.Name `xml:"item"`
	ItemData struct {
		PID string `xml:"pid"`
	} `xml:"item_data"`
}

type holdingsResponse struct {
	XMLName  xml.Name `xml:"holdings"`
	Holdings []struct {
		HoldingID string `xml:"holding_id"`
		Library   struct {
			Text string `xml:",chardata"`
		} `xml:"library"`
		Location struct {
			Text string `xml:",chardata"`
		} `xml:"location"`
		CallNumber string `xml:"call_number"`
	} `xml:"holding"`
}

type errorResponse struct {
	Errors []struct {
		Code    string `xml:"errorCode"`
		Message string `xml:"errorMessage"`
	} `xml:"errorList>error"`
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body interface{}
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequest(method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", "apikey "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/xml")
	if payload != nil {
		req.Header.Set("Content-Type", "application/xml")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if err := util_http.EnsureSuccessStatusCode(resp); err != nil {
		data, readErr := util_http.ReadBody(resp)
		if readErr == nil {
			if msg := serviceError(data); msg != "" {
				return nil, errors.New(msg)
			}
		}
		return nil, err
	}

	return util_http.ReadBody(resp)
}

// serviceError extracts the first error message of a web_service_result
// payload.
func serviceError(body []byte) string {
	var er errorResponse
	if err := xml.Unmarshal(body, &er); err != nil {
		return ""
	}
	if len(er.Errors) == 0 {
		return ""
	}
	return er.Errors[0].Message
}

// CreateBib posts the bib element and returns the new record's MMS ID.
func (c *Client) CreateBib(ctx context.Context, bib []byte) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/bibs", bib)
	if err != nil {
		return "", errors.Wrap(err, "create bib")
	}

	var r bibResponse
	if err := xml.Unmarshal(body, &r); err != nil {
		return "", errors.Wrap(err, "create bib: parse response")
	}
	if r.MMSID == "" {
		return "", errors.New("create bib: no mms id in response")
	}
	return r.MMSID, nil
}

// GetHoldings lists the holdings attached to a bib. Responses are cached
// until InvalidateHoldings is called; the client invalidates its own cache
// after every holding mutation.
func (c *Client) GetHoldings(ctx context.Context, mmsID string) ([]HoldingRef, error) {
	if cached, ok := c.holdings[mmsID]; ok {
		return cached, nil
	}

	body, err := c.do(ctx, http.MethodGet, "/bibs/"+url.PathEscape(mmsID)+"/holdings", nil)
	if err != nil {
		return nil, errors.Wrap(err, "get holdings")
	}

	var r holdingsResponse
	if err := xml.Unmarshal(body, &r); err != nil {
		return nil, errors.Wrap(err, "get holdings: parse response")
	}

	refs := make([]HoldingRef, 0, len(r.Holdings))
	for _, h := range r.Holdings {
		refs = append(refs, HoldingRef{
			HoldingID:  h.HoldingID,
			Library:    h.Library.Text,
			Location:   h.Location.Text,
			CallNumber: h.CallNumber,
		})
	}

	if len(refs) == 0 {
		level.Debug(c.log).Log("msg", "no holding found", "mms_id", mmsID)
	}

	c.holdings[mmsID] = refs
	return refs, nil
}

// InvalidateHoldings drops the cached holdings list for a bib.
func (c *Client) InvalidateHoldings(mmsID string) {
	delete(c.holdings, mmsID)
}

// CreateHolding posts the holding element under a bib and returns the new
// holding id.
func (c *Client) CreateHolding(ctx context.Context, mmsID string, holding []byte) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/bibs/"+url.PathEscape(mmsID)+"/holdings", holding)
	if err != nil {
		return "", errors.Wrap(err, "create holding")
	}
	c.InvalidateHoldings(mmsID)

	var r holdingResponse
	if err := xml.Unmarshal(body, &r); err != nil {
		return "", errors.Wrap(err, "create holding: parse response")
	}
	if r.HoldingID == "" {
		return "", errors.New("create holding: no holding id in response")
	}
	return r.HoldingID, nil
}

// DeleteHolding removes a holding from a bib.
func (c *Client) DeleteHolding(ctx context.Context, mmsID, holdingID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/bibs/"+url.PathEscape(mmsID)+"/holdings/"+url.PathEscape(holdingID), nil)
	if err != nil {
		return errors.Wrap(err, "delete holding")
	}
	c.InvalidateHoldings(mmsID)
	return nil
}

// CreateItem posts the item element under a holding and returns the new
// item id.
func (c *Client) CreateItem(ctx context.Context, mmsID, holdingID string, item []byte) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/bibs/"+url.PathEscape(mmsID)+"/holdings/"+url.PathEscape(holdingID)+"/items", item)
	if err != nil {
		return "", errors.Wrap(err, "create item")
	}

	var r itemResponse
	if err := xml.Unmarshal(body, &r); err != nil {
		return "", errors.Wrap(err, "create item: parse response")
	}
	if r.ItemData.PID == "" {
		return "", errors.New("create item: no item pid in response")
	}
	return r.ItemData.PID, nil
}
