package catalog

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/dvloznov/shopkeeper/internal/domain"
)

// File is the on-disk catalog format used for bulk imports:
//
//	products:
//	  - id: tea
//	    name: Tea
//	    price: "10"
//	    stock: 20
//	    reorder_threshold: 5
type File struct {
	Products []FileProduct `yaml:"products"`
}

// FileProduct is one entry of File. Price is kept as text so that values
// like 12.50 survive without float rounding.
type FileProduct struct {
	ID               string `yaml:"id"`
	Name             string `yaml:"name"`
	Price            string `yaml:"price"`
	Image            string `yaml:"image"`
	Stock            int    `yaml:"stock"`
	ReorderThreshold *int   `yaml:"reorder_threshold"`
}

// ParseYAML decodes a catalog file into products in file order. Every
// entry is validated the same way Add validates it.
func ParseYAML(r io.Reader) ([]domain.Product, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("ParseYAML: %w: %v", domain.ErrInput, err)
	}

	products := make([]domain.Product, 0, len(f.Products))
	seen := make(map[string]bool, len(f.Products))
	for i, fp := range f.Products {
		p, err := fp.product()
		if err != nil {
			return nil, fmt.Errorf("ParseYAML: entry %d: %w", i+1, err)
		}
		if p.ID != "" {
			if seen[p.ID] {
				return nil, fmt.Errorf("ParseYAML: entry %d: %w: duplicate product id %s", i+1, domain.ErrInput, p.ID)
			}
			seen[p.ID] = true
		}
		products = append(products, p)
	}
	return products, nil
}

func (fp FileProduct) product() (domain.Product, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(fp.Price))
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: price %q", domain.ErrInvalidPrice, fp.Price)
	}
	name := strings.TrimSpace(fp.Name)
	if err := validate(name, price); err != nil {
		return domain.Product{}, err
	}
	threshold := domain.DefaultReorderThreshold
	if fp.ReorderThreshold != nil {
		threshold = *fp.ReorderThreshold
	}
	if fp.Stock < 0 || threshold < 0 {
		return domain.Product{}, domain.ErrInvalidQuantity
	}
	return domain.Product{
		ID:               strings.TrimSpace(fp.ID),
		Name:             name,
		UnitPrice:        price,
		ImageRef:         fp.Image,
		InitialStock:     fp.Stock,
		ReorderThreshold: threshold,
	}, nil
}
