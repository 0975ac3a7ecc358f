// Package ordersource fetches POS orders from the external order system.
package ordersource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"stockledger/internal/config"
	"stockledger/internal/domain"
	"stockledger/internal/port"
)

const dateLayout = "2006-01-02"

// maxPages stops a source that keeps returning has_more with a fresh cursor.
const maxPages = 1000

// FetchError is a failed call to the order source.
type FetchError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("order source returned %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("order source: %v", e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{domain.ErrExternalFetch, e.Err} }

// HTTPClient reads cursor-paged orders from the POS REST API.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	pageSize  int
	http      *http.Client
	logger    logrus.FieldLogger
}

var _ port.OrderSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient from configuration.
func NewHTTPClient(cfg config.OrderSourceConfig, logger logrus.FieldLogger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("order source base url is empty")
	}
	hdr := strings.TrimSpace(cfg.APIKeyHeader)
	if hdr == "" {
		hdr = "X-API-Key"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiKeyHdr: hdr,
		pageSize:  pageSize,
		http:      &http.Client{Timeout: timeout},
		logger:    logger.WithField("component", "ordersource.http"),
	}, nil
}

type listResponse struct {
	Data       []json.RawMessage `json:"data"`
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
	HasMore    *bool             `json:"has_more"`
}

// wireOrder accepts line items under either "items" or "services".
type wireOrder struct {
	domain.Order
	Services domain.OrderItems `json:"services"`
}

// FetchOrders pages through /orders until the source reports no more data.
func (c *HTTPClient) FetchOrders(ctx context.Context, q domain.OrderQuery) ([]domain.Order, error) {
	params := url.Values{}
	params.Set("start_date", q.StartDate.Format(dateLayout))
	params.Set("end_date", q.EndDate.Format(dateLayout))
	if q.Classification != "" {
		params.Set("classification", string(q.Classification))
	}
	params.Set("limit", strconv.Itoa(c.pageSize))

	var orders []domain.Order
	cursor := ""
	for page := 0; page < maxPages; page++ {
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		resp, err := c.getList(ctx, "/orders", params)
		if err != nil {
			return nil, err
		}
		raw := resp.Data
		if len(raw) == 0 {
			raw = resp.Items
		}
		for _, r := range raw {
			o, err := decodeOrder(r)
			if err != nil {
				return nil, &FetchError{Err: fmt.Errorf("decoding order: %w", err)}
			}
			orders = append(orders, o)
		}

		more := resp.NextCursor != ""
		if resp.HasMore != nil {
			more = *resp.HasMore && resp.NextCursor != ""
		}
		if !more || resp.NextCursor == cursor {
			break
		}
		cursor = resp.NextCursor
	}

	c.logger.WithFields(logrus.Fields{
		"classification": q.Classification,
		"start_date":     q.StartDate.Format(dateLayout),
		"end_date":       q.EndDate.Format(dateLayout),
		"orders":         len(orders),
	}).Debug("orders fetched")
	return orders, nil
}

func (c *HTTPClient) getList(ctx context.Context, path string, params url.Values) (listResponse, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return listResponse{}, &FetchError{Err: err}
	}
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHdr, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return listResponse{}, &FetchError{Retryable: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return listResponse{}, &FetchError{Retryable: true, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return listResponse{}, &FetchError{
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return listResponse{}, &FetchError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	return parsed, nil
}

func decodeOrder(raw []byte) (domain.Order, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var w wireOrder
	if err := dec.Decode(&w); err != nil {
		return domain.Order{}, err
	}
	o := w.Order
	o.Items = append(o.Items, w.Services...)
	return o, nil
}
