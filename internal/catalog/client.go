package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	ProductionURL = "https://connect.squareup.com"
	SandboxURL    = "https://connect.squareupsandbox.com"

	// SquareVersion pins the API version sent with every request
	SquareVersion = "2024-07-17"

	DefaultProductType = "FOOD_AND_BEV"
)

// ErrQueryFailed marks a catalog search that could not produce a result set
var ErrQueryFailed = errors.New("catalog query failed")

// Client represents a Square catalog API client
type Client struct {
	BaseURL    string
	Token      string
	httpClient *http.Client
}

// Item is a catalog item with the images attached to it
type Item struct {
	ID       string
	Name     string
	ImageIDs []string
}

// Image is a catalog image object
type Image struct {
	ID  string
	URL string
}

// APIError holds the errors array returned by Square
type APIError struct {
	StatusCode int
	Errors     []ErrorDetail
}

type ErrorDetail struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail,omitempty"`
	Field    string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("square API returned status %d", e.StatusCode)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		s := d.Category + "/" + d.Code
		if d.Detail != "" {
			s += ": " + d.Detail
		}
		parts = append(parts, s)
	}
	return fmt.Sprintf("square API returned status %d: %s", e.StatusCode, strings.Join(parts, "; "))
}

// NewClient creates a new catalog client
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = ProductionURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURLForEnvironment maps SQUARE_ENVIRONMENT values to an API host
func BaseURLForEnvironment(env string) string {
	if strings.EqualFold(env, "sandbox") {
		return SandboxURL
	}
	return ProductionURL
}

type searchItemsRequest struct {
	ProductTypes []string `json:"product_types,omitempty"`
	Cursor       string   `json:"cursor,omitempty"`
}

type searchItemsResponse struct {
	Items []struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		ItemData struct {
			Name     string   `json:"name"`
			ImageIDs []string `json:"image_ids"`
		} `json:"item_data"`
	} `json:"items"`
	Cursor string        `json:"cursor"`
	Errors []ErrorDetail `json:"errors"`
}

type searchObjectsRequest struct {
	ObjectTypes           []string `json:"object_types"`
	IncludeDeletedObjects bool     `json:"include_deleted_objects"`
	IncludeRelatedObjects bool     `json:"include_related_objects"`
	Cursor                string   `json:"cursor,omitempty"`
}

type searchObjectsResponse struct {
	Objects []struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		ImageData struct {
			URL string `json:"url"`
		} `json:"image_data"`
	} `json:"objects"`
	Cursor string        `json:"cursor"`
	Errors []ErrorDetail `json:"errors"`
}

// SearchItems returns every item of the given product types, following pagination cursors
func (c *Client) SearchItems(ctx context.Context, productTypes ...string) ([]Item, error) {
	var items []Item
	cursor := ""
	page := 0

	for {
		page++
		var resp searchItemsResponse
		body := searchItemsRequest{ProductTypes: productTypes, Cursor: cursor}
		if err := c.post(ctx, "/v2/catalog/search-catalog-items", body, &resp, func() []ErrorDetail { return resp.Errors }); err != nil {
			return nil, fmt.Errorf("failed to search catalog items: %w", err)
		}

		for _, it := range resp.Items {
			items = append(items, Item{
				ID:       it.ID,
				Name:     it.ItemData.Name,
				ImageIDs: it.ItemData.ImageIDs,
			})
		}
		slog.Debug("Fetched catalog items page", "page", page, "items", len(resp.Items), "total", len(items))

		if resp.Cursor == "" {
			return items, nil
		}
		cursor = resp.Cursor
	}
}

// SearchImages returns every IMAGE object in the catalog, following pagination cursors
func (c *Client) SearchImages(ctx context.Context) ([]Image, error) {
	var images []Image
	cursor := ""
	page := 0

	for {
		page++
		var resp searchObjectsResponse
		body := searchObjectsRequest{ObjectTypes: []string{"IMAGE"}, Cursor: cursor}
		if err := c.post(ctx, "/v2/catalog/search", body, &resp, func() []ErrorDetail { return resp.Errors }); err != nil {
			return nil, fmt.Errorf("failed to search catalog images: %w", err)
		}

		for _, obj := range resp.Objects {
			images = append(images, Image{ID: obj.ID, URL: obj.ImageData.URL})
		}
		slog.Debug("Fetched catalog images page", "page", page, "images", len(resp.Objects), "total", len(images))

		if resp.Cursor == "" {
			return images, nil
		}
		cursor = resp.Cursor
	}
}

// post sends one search request and decodes the response into out.
// apiErrors reads the errors array from out once it has been decoded.
func (c *Client) post(ctx context.Context, path string, body, out any, apiErrors func() []ErrorDetail) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: failed to encode request: %w", ErrQueryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", ErrQueryFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Square-Version", SquareVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", ErrQueryFailed, err)
	}

	decodeErr := json.Unmarshal(data, out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Errors = apiErrors()
		}
		return fmt.Errorf("%w: %w", ErrQueryFailed, apiErr)
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: failed to decode response: %w", ErrQueryFailed, decodeErr)
	}
	if errs := apiErrors(); len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrQueryFailed, &APIError{StatusCode: resp.StatusCode, Errors: errs})
	}

	return nil
}
