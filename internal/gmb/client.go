// Package gmb talks to the Google Business Profile v4 REST API.
package gmb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/carlmjohnson/requests"
)

const DefaultBaseURL = "https://mybusiness.googleapis.com/v4"

// APIError is a non-2xx answer from Google. Body holds the raw response text.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gmb: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable classifies any error returned by Client. Errors that never got a
// response from Google (transport failures) are retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}

type Client interface {
	CreateLocalPost(ctx context.Context, accessToken, locationName string, post *LocalPost) (*LocalPost, error)
	ListReviews(ctx context.Context, accessToken, locationName, pageToken string, pageSize int) (*ListReviewsResponse, error)
	UpdateReply(ctx context.Context, accessToken, reviewName, comment string) error
}

type client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: httpClient}
}

const maxErrorBody = 4 << 10

func checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
}

func (c *client) CreateLocalPost(ctx context.Context, accessToken, locationName string, post *LocalPost) (*LocalPost, error) {
	var created LocalPost
	err := requests.URL(fmt.Sprintf("%s/%s/localPosts", c.baseURL, locationName)).
		Method(http.MethodPost).
		Client(c.httpClient).
		Bearer(accessToken).
		BodyJSON(post).
		AddValidator(checkStatus).
		ToJSON(&created).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *client) ListReviews(ctx context.Context, accessToken, locationName, pageToken string, pageSize int) (*ListReviewsResponse, error) {
	params := url.Values{}
	params.Set("orderBy", "updateTime desc")
	if pageSize > 0 {
		params.Set("pageSize", strconv.Itoa(pageSize))
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var resp ListReviewsResponse
	err := requests.URL(fmt.Sprintf("%s/%s/reviews", c.baseURL, locationName)).
		Client(c.httpClient).
		Bearer(accessToken).
		Params(params).
		AddValidator(checkStatus).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) UpdateReply(ctx context.Context, accessToken, reviewName, comment string) error {
	return requests.URL(fmt.Sprintf("%s/%s/reply", c.baseURL, reviewName)).
		Method(http.MethodPut).
		Client(c.httpClient).
		Bearer(accessToken).
		BodyJSON(map[string]string{"comment": comment}).
		AddValidator(checkStatus).
		Fetch(ctx)
}
