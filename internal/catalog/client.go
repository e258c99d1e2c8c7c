// Package catalog предоставляет клиент внешнего каталога продуктов.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/cardtab-system/internal/model"
	"github.com/mmeshcher/cardtab-system/internal/repository"
)

// Client инкапсулирует HTTP-взаимодействие с внешним каталогом продуктов.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// productResponse описывает ответ каталога по одному продукту.
// Цена приходит в валюте, внутри сервиса переводится в центы.
type productResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
}

// NewClient создаёт HTTP-клиент каталога с ограниченным числом повторов запросов.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc.StandardClient(),
	}
}

// ResolveProduct запрашивает снимок продукта у внешнего каталога.
func (c *Client) ResolveProduct(ctx context.Context, id int64) (*model.ProductSnapshot, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("catalog client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	url := fmt.Sprintf("%s/api/products/%d", base, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, fmt.Errorf("%w: %d", repository.ErrProductNotFound, id)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result productResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &model.ProductSnapshot{
		ProductID:   id,
		Name:        result.Name,
		PriceCents:  int64(math.Round(result.Price * 100)),
		Description: result.Description,
	}, nil
}
