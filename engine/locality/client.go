package locality

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/credportal/credportal/pkg/config"
	"github.com/go-resty/resty/v2"
)

// ErrUpstream marks a failed or malformed response from the localities API.
var ErrUpstream = errors.New("locality source failed")

// State is a federative unit as served by the IBGE localities API.
type State struct {
	ID      int64  `json:"id"`
	Acronym string `json:"sigla"`
	Name    string `json:"nome"`
}

// Municipality is a city as served by the IBGE localities API.
type Municipality struct {
	ID   int64  `json:"id"`
	Name string `json:"nome"`
}

// Client reads states and municipalities from the IBGE localities API.
type Client struct {
	http *resty.Client
}

func NewClient(cfg *config.LocalityConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	client.AddRetryCondition(retryCondition)
	return &Client{http: client}
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

func (c *Client) States(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.get(ctx, "/estados", nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// Municipalities lists the municipalities of the state with the given acronym.
func (c *Client) Municipalities(ctx context.Context, acronym string) ([]Municipality, error) {
	var municipalities []Municipality
	params := map[string]string{"uf": acronym}
	if err := c.get(ctx, "/estados/{uf}/municipios", params, &municipalities); err != nil {
		return nil, err
	}
	return municipalities, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, result any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(params).
		SetResult(result).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrUpstream, path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: GET %s: status %d", ErrUpstream, path, resp.StatusCode())
	}
	return nil
}
