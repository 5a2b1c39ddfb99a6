package activecampaign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Per-call deadlines. The flat listing endpoints return the largest
// payloads and get the longer budget.
const (
	listTimeout = 60 * time.Second
	itemTimeout = 30 * time.Second
)

// RateGate admits one outbound request per Acquire. Every client call
// acquires exactly once before touching the network.
type RateGate interface {
	Acquire(ctx context.Context) error
}

// Client talks to an ActiveCampaign-compatible v3 API.
// Thread-safe for concurrent use.
//
// baseURL: API root, e.g. https://account.api-us1.com/api/3
// apiKey: static credential sent as the Api-Token header
// gate: shared rate gate for all outbound calls
type Client struct {
	baseURL    string
	apiKey     string
	gate       RateGate
	httpClient *http.Client
}

// NewClient creates a new API client. All calls share gate.
func NewClient(baseURL, apiKey string, gate RateGate) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		gate:    gate,
		// Deadlines are set per call; the client itself has no global timeout.
		httpClient: &http.Client{},
	}
}

// ListDeals fetches one page of the deal collection.
func (c *Client) ListDeals(ctx context.Context, limit, offset int) ([]Deal, error) {
	body, err := c.get(ctx, c.pageURL("/deals", limit, offset), listTimeout)
	if err != nil {
		return nil, err
	}
	var page dealsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse deals page: %w", err)
	}
	return page.Deals, nil
}

// ListNotes fetches one page of the flat notes collection.
func (c *Client) ListNotes(ctx context.Context, limit, offset int) ([]Note, error) {
	body, err := c.get(ctx, c.pageURL("/notes", limit, offset), listTimeout)
	if err != nil {
		return nil, err
	}
	var page notesPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse notes page: %w", err)
	}
	return page.Notes, nil
}

// DealNotes fetches all notes attached to one deal.
func (c *Client) DealNotes(ctx context.Context, dealID string) ([]Note, error) {
	body, err := c.get(ctx, c.baseURL+"/deals/"+url.PathEscape(dealID)+"/notes", itemTimeout)
	if err != nil {
		return nil, err
	}
	var page notesPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse deal notes: %w", err)
	}
	return page.Notes, nil
}

// DeleteNote deletes one note and returns the HTTP status code. Only a
// transport-level failure is an error; any status code, success or not,
// is reported to the caller, who owns the retry decision.
func (c *Client) DeleteNote(ctx context.Context, noteID string) (int, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, itemTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/notes/"+url.PathEscape(noteID), nil)
	if err != nil {
		return 0, fmt.Errorf("build delete request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return 0, fmt.Errorf("delete note %s timed out: %w", noteID, err)
		}
		return 0, fmt.Errorf("delete note %s: %w", noteID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// get performs a rate-gated GET and returns the body on HTTP 200. A
// non-success status is returned as a *StatusError.
func (c *Client) get(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func (c *Client) pageURL(path string, limit, offset int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Api-Token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
