package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmeshcher/cardtab-system/internal/repository"
)

func TestResolveProduct_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/products/7" {
			t.Fatalf("path = %s, want /api/products/7", r.URL.Path)
		}

		resp := productResponse{
			ID:          7,
			Name:        "caipirinha",
			Price:       10.5,
			Description: "lime and cachaca",
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	snap, err := client.ResolveProduct(ctx, 7)
	if err != nil {
		t.Fatalf("ResolveProduct error: %v", err)
	}
	if snap.ProductID != 7 || snap.Name != "caipirinha" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.PriceCents != 1050 {
		t.Fatalf("PriceCents = %d, want 1050", snap.PriceCents)
	}
}

func TestResolveProduct_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.ResolveProduct(ctx, 99)
	if !errors.Is(err, repository.ErrProductNotFound) {
		t.Fatalf("err = %v, want ErrProductNotFound", err)
	}
}

func TestResolveProduct_RetriesServerErrors(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(productResponse{ID: 7, Name: "beer", Price: 2})
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := client.ResolveProduct(ctx, 7)
	if err != nil {
		t.Fatalf("ResolveProduct error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if snap.PriceCents != 200 {
		t.Fatalf("PriceCents = %d, want 200", snap.PriceCents)
	}
}

func TestResolveProduct_NotConfigured(t *testing.T) {
	var client *Client

	_, err := client.ResolveProduct(context.Background(), 1)
	if err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}
