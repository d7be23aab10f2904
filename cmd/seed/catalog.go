package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Shelia5K/FAPI-order-service/internal/domain"
)

type catalogFile struct {
	Products []catalogProduct `yaml:"products"`
}

type catalogProduct struct {
	ID          string  `yaml:"id"`
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	UnitPrice   float64 `yaml:"unit_price"`
	Quantity    int     `yaml:"quantity"`
	CreatedAt   string  `yaml:"created_at"`
}

// parseCatalog decodes a products YAML document. Every entry is validated; the error lists
// all offending entries.
func parseCatalog(r io.Reader, now time.Time) ([]domain.Product, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var file catalogFile
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed: catalog is empty")
		}
		return nil, fmt.Errorf("seed: parse catalog: %w", err)
	}
	if len(file.Products) == 0 {
		return nil, errors.New("seed: catalog has no products")
	}

	var problems []string
	seen := make(map[string]struct{}, len(file.Products))
	products := make([]domain.Product, 0, len(file.Products))
	for i, item := range file.Products {
		id := strings.TrimSpace(item.ID)
		label := fmt.Sprintf("products[%d]", i)
		if id != "" {
			label = fmt.Sprintf("products[%d] (%s)", i, id)
		}

		switch {
		case id == "":
			problems = append(problems, label+": id is required")
		case strings.TrimSpace(item.Title) == "":
			problems = append(problems, label+": title is required")
		case math.IsNaN(item.UnitPrice) || math.IsInf(item.UnitPrice, 0) || item.UnitPrice < 0:
			problems = append(problems, label+": unit_price must be a non-negative number")
		case item.Quantity < 0:
			problems = append(problems, label+": quantity must not be negative")
		}
		if _, dup := seen[id]; dup && id != "" {
			problems = append(problems, label+": duplicate id")
		}
		seen[id] = struct{}{}

		createdAt := now.UTC()
		if raw := strings.TrimSpace(item.CreatedAt); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				problems = append(problems, label+": created_at must be RFC3339")
			} else {
				createdAt = ts.UTC()
			}
		}

		product := domain.Product{
			ID:        id,
			Title:     strings.TrimSpace(item.Title),
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			CreatedAt: createdAt,
		}
		if description := strings.TrimSpace(item.Description); description != "" {
			product.Description = &description
		}
		products = append(products, product)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("seed: invalid catalog: %s", strings.Join(problems, "; "))
	}
	return products, nil
}
