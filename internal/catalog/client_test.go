package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchItemsFollowsCursor(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/v2/catalog/search-catalog-items" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer header, got %q", got)
		}
		if r.Header.Get("Square-Version") == "" {
			t.Error("Expected Square-Version header")
		}

		var body searchItemsRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}
		if len(body.ProductTypes) != 1 || body.ProductTypes[0] != "FOOD_AND_BEV" {
			t.Errorf("unexpected product types %v", body.ProductTypes)
		}

		switch body.Cursor {
		case "":
			_, _ = w.Write([]byte(`{"items":[{"id":"i1","type":"ITEM","item_data":{"name":"Iced Tea","image_ids":["a","b"]}}],"cursor":"next"}`))
		case "next":
			_, _ = w.Write([]byte(`{"items":[{"id":"i2","type":"ITEM","item_data":{"name":"Scone"}}]}`))
		default:
			t.Errorf("unexpected cursor %q", body.Cursor)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	items, err := client.SearchItems(context.Background(), DefaultProductType)
	if err != nil {
		t.Fatalf("SearchItems returned error: %v", err)
	}

	if calls != 2 {
		t.Errorf("Expected 2 requests, got %d", calls)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].Name != "Iced Tea" || len(items[0].ImageIDs) != 2 {
		t.Errorf("unexpected first item %+v", items[0])
	}
	if items[1].ID != "i2" || len(items[1].ImageIDs) != 0 {
		t.Errorf("unexpected second item %+v", items[1])
	}
}

func TestSearchImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body searchObjectsRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
			return
		}
		if len(body.ObjectTypes) != 1 || body.ObjectTypes[0] != "IMAGE" {
			t.Errorf("unexpected object types %v", body.ObjectTypes)
		}
		if body.Cursor == "" {
			_, _ = w.Write([]byte(`{"objects":[{"id":"a","type":"IMAGE","image_data":{"url":"http://x/1.png"}}],"cursor":"c2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"objects":[{"id":"b","type":"IMAGE","image_data":{"url":"http://x/2.png"}}]}`))
	}))
	defer server.Close()

	images, err := NewClient(server.URL, "secret").SearchImages(context.Background())
	if err != nil {
		t.Fatalf("SearchImages returned error: %v", err)
	}
	if len(images) != 2 || images[1].URL != "http://x/2.png" {
		t.Errorf("unexpected images %+v", images)
	}
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		contains string
	}{
		{
			name:     "unauthorized with errors array",
			status:   http.StatusUnauthorized,
			body:     `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED","detail":"This request could not be authorized."}]}`,
			contains: "AUTHENTICATION_ERROR/UNAUTHORIZED",
		},
		{
			name:     "server error without body",
			status:   http.StatusInternalServerError,
			body:     ``,
			contains: "status 500",
		},
		{
			name:     "errors array on success status",
			status:   http.StatusOK,
			body:     `{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"BAD_REQUEST"}]}`,
			contains: "INVALID_REQUEST_ERROR/BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "bad").SearchItems(context.Background(), DefaultProductType)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !errors.Is(err, ErrQueryFailed) {
				t.Errorf("Expected ErrQueryFailed, got %v", err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Expected %q in %q", tt.contains, err.Error())
			}
		})
	}
}

func TestSearchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, "secret").SearchImages(context.Background())
	if !errors.Is(err, ErrQueryFailed) {
		t.Errorf("Expected ErrQueryFailed, got %v", err)
	}
}

func TestBaseURLForEnvironment(t *testing.T) {
	if got := BaseURLForEnvironment("sandbox"); got != SandboxURL {
		t.Errorf("Expected sandbox URL, got %s", got)
	}
	if got := BaseURLForEnvironment(""); got != ProductionURL {
		t.Errorf("Expected production URL, got %s", got)
	}
}
