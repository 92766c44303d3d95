package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ashureev/chatshop/internal/action"
	"github.com/ashureev/chatshop/internal/domain"
	"github.com/shopspring/decimal"
)

// maxCatalogSize bounds how much of a remote catalog response is read.
const maxCatalogSize = 4 << 20

// Source yields the raw product list.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.Product, error)
}

// FileSource reads a JSON product array from disk.
type FileSource struct {
	Path string
}

// Name implements Source.
func (s FileSource) Name() string { return "file:" + s.Path }

// Fetch implements Source.
func (s FileSource) Fetch(_ context.Context) ([]domain.Product, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// HTTPSource fetches a JSON product array from a URL.
type HTTPSource struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// Name implements Source.
func (s HTTPSource) Name() string { return "http:" + s.URL }

// Fetch implements Source.
func (s HTTPSource) Fetch(ctx context.Context) ([]domain.Product, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogSize))
	if err != nil {
		return nil, fmt.Errorf("read catalog body: %w", err)
	}
	return Parse(data)
}

type rawProduct struct {
	ID          any             `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	Variants    []string        `json:"variants"`
}

// Parse decodes a JSON product array. Numeric ids are coerced to strings and
// duplicate variants are dropped while keeping their first position.
func Parse(data []byte) ([]domain.Product, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []rawProduct
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	products := make([]domain.Product, 0, len(raw))
	for i, r := range raw {
		id, err := coerceID(r.ID)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		if r.Price.IsNegative() {
			return nil, fmt.Errorf("product %s: negative price", id)
		}
		products = append(products, domain.Product{
			ID:          id,
			Name:        r.Name,
			Price:       r.Price,
			Image:       strings.TrimSpace(r.Image),
			Description: r.Description,
			Variants:    dedupe(r.Variants),
		})
	}
	return products, nil
}

func coerceID(v any) (string, error) {
	var id string
	switch t := v.(type) {
	case string:
		id = strings.TrimSpace(t)
	case json.Number:
		id = t.String()
	default:
		return "", fmt.Errorf("unsupported id %v", v)
	}
	if id == "" {
		return "", fmt.Errorf("empty id")
	}
	if strings.Contains(id, action.IDSeparator) {
		return "", fmt.Errorf("id %q contains %q", id, action.IDSeparator)
	}
	return id, nil
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
