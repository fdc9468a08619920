package sru

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gklog "github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const foundResponse = `<?xml version="1.0" encoding="UTF-8"?>
<searchRetrieveResponse xmlns="http://www.loc.gov/zing/srw/">
  <numberOfRecords>1</numberOfRecords>
  <records>
    <record>
      <recordData>
        <record xmlns="http://www.loc.gov/MARC21/slim">
          <datafield tag="245" ind1="1" ind2="0">
            <subfield code="a">Predictive Control</subfield>
          </datafield>
          <datafield tag="100" ind1="1" ind2=" ">
            <subfield code="a">Doe, Jane</subfield>
          </datafield>
        </record>
      </recordData>
    </record>
  </records>
</searchRetrieveResponse>`

const emptyResponse = `<?xml version="1.0" encoding="UTF-8"?>
<searchRetrieveResponse xmlns="http://www.loc.gov/zing/srw/">
  <numberOfRecords>0</numberOfRecords>
  <records/>
</searchRetrieveResponse>`

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:     baseURL,
		Institution: "HPH",
		Timeout:     5 * time.Second,
	}, gklog.NewNopLogger())
}

func TestExistsFound(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("query")
		fmt.Fprint(w, foundResponse)
	}))
	defer srv.Close()

	exists, err := newTestClient(srv.URL + "/41SLSP_").Exists(context.Background(), "Predictive Control", "Doe, Jane")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, `title="Predictive Control" AND creator="Doe, Jane"`, query)
}

func TestExistsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, emptyResponse)
	}))
	defer srv.Close()

	exists, err := newTestClient(srv.URL + "/41SLSP_").Exists(context.Background(), "t", "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExistsNoEmbeddedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<searchRetrieveResponse><records><record><recordData></recordData></record></records></searchRetrieveResponse>`)
	}))
	defer srv.Close()

	exists, err := newTestClient(srv.URL + "/41SLSP_").Exists(context.Background(), "t", "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExistsFailsOpenOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	exists, err := newTestClient(srv.URL + "/41SLSP_").Exists(context.Background(), "t", "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExistsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL + "/41SLSP_").Exists(context.Background(), "t", "a")
	assert.Error(t, err)
}

func TestExistsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<searchRetrieveResponse><records>")
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL + "/41SLSP_").Exists(context.Background(), "t", "a")
	assert.Error(t, err)
}

func TestExistsRequestMethod(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		fmt.Fprint(w, emptyResponse)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL + "/41SLSP_").Exists(context.Background(), "t", "a")
	require.NoError(t, err)
	// the method must reach the wire in its canonical spelling
	assert.Equal(t, http.MethodGet, method)
}

func TestExistsQueryRawInterpolation(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("query")
		fmt.Fprint(w, emptyResponse)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL + "/41SLSP_").Exists(context.Background(),
		`The "Quoted" Title`, `Do\e, Jane`)
	require.NoError(t, err)
	// values go into the query verbatim, without backslash escaping
	assert.Equal(t, `title="The "Quoted" Title" AND creator="Do\e, Jane"`, query)
}
