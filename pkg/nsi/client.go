// Package nsi calls the public NSI dictionary service that backs the IT
// accreditation registry.
package nsi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://esnsi.gosuslugi.ru"
	lookupPath     = "/rest/public/classifier/it-accreditation/search"

	defaultTimeout = 15 * time.Second
)

// Client looks up accreditation entries by INN.
type Client interface {
	// Lookup returns the first registry entry matching the INN exactly,
	// or nil when the registry has no record.
	Lookup(ctx context.Context, inn string) (*Item, error)
}

// Item is one registry entry together with its raw wire form, kept for
// snapshot persistence.
type Item struct {
	Attributes Attributes
	Raw        json.RawMessage
}

// Attributes are the dictionary fields the sync workflow consumes.
type Attributes struct {
	Status           string `json:"Status"`
	NameOrganization string `json:"Name_Organization"`
	NameINN          string `json:"Name_INN"`
	NumberDecision   string `json:"Number_Decision"`
	DateDecision     string `json:"Date_Decision"`
	DateRecord       string `json:"Date_record"`
}

// TransportError classifies network, timeout, HTTP-status, and response
// decoding failures. Sync treats these as per-item outcomes, never as a
// batch abort.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default service base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithHeaders adds headers to every request (the service requires a few
// static ones in some deployments).
func WithHeaders(headers map[string]string) Option {
	return func(c *httpClient) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithTimeout overrides the default 15s per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *httpClient) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	headers map[string]string
	http    *http.Client
}

// NewClient creates an NSI dictionary client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		headers: map[string]string{},
		http: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchRequest struct {
	Filter             searchFilter `json:"filter"`
	TreeFiltering      string       `json:"treeFiltering"`
	PageNum            int          `json:"pageNum"`
	PageSize           int          `json:"pageSize"`
	ParentRefItemValue string       `json:"parentRefItemValue"`
	SelectAttributes   []string     `json:"selectAttributes"`
}

type searchFilter struct {
	Simple simpleFilter `json:"simple"`
}

type simpleFilter struct {
	AttributeName string          `json:"attributeName"`
	Condition     string          `json:"condition"`
	Value         attributeString `json:"value"`
}

type attributeString struct {
	AsString string `json:"asString"`
}

type searchResponse struct {
	Items []json.RawMessage `json:"items"`
}

type itemEnvelope struct {
	AttributeValues Attributes `json:"attributeValues"`
}

func (c *httpClient) Lookup(ctx context.Context, inn string) (*Item, error) {
	req := searchRequest{
		Filter: searchFilter{
			Simple: simpleFilter{
				AttributeName: "INN",
				Condition:     "EQUALS",
				Value:         attributeString{AsString: inn},
			},
		},
		TreeFiltering:      "ONELEVEL",
		PageNum:            1,
		PageSize:           10,
		ParentRefItemValue: "",
		SelectAttributes:   []string{"*"},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "nsi: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+lookupPath, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "nsi: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: eris.Wrap(err, "nsi: send request")}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: eris.Wrap(err, "nsi: read response")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Err: eris.Errorf("nsi: unexpected status %d: %s", resp.StatusCode, string(respBody))}
	}

	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &TransportError{Err: eris.Wrap(err, "nsi: unmarshal response")}
	}
	if len(result.Items) == 0 {
		return nil, nil
	}

	raw := result.Items[0]
	var envelope itemEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &TransportError{Err: eris.Wrap(err, "nsi: unmarshal item")}
	}

	return &Item{Attributes: envelope.AttributeValues, Raw: raw}, nil
}
