package ir

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrDuplicateLine is returned when a cart holds two lines for the same item id.
var ErrDuplicateLine = errors.New("duplicate cart line")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct constraints and the one-line-per-id invariant.
func (s *CartState) Validate() error {
	if err := validatorInstance().Struct(s); err != nil {
		return fmt.Errorf("validate cart: %w", err)
	}
	seen := make(map[string]struct{}, len(s.Items))
	for _, line := range s.Items {
		if _, dup := seen[line.ID]; dup {
			return fmt.Errorf("validate cart: %w: %s", ErrDuplicateLine, line.ID)
		}
		seen[line.ID] = struct{}{}
		if line.Item.ID != "" && line.Item.ID != line.ID {
			return fmt.Errorf("validate cart: line %s carries item %s", line.ID, line.Item.ID)
		}
	}
	return nil
}

// Validate checks the catalog item's struct constraints.
func (c CatalogItem) Validate() error {
	if err := validatorInstance().Struct(c); err != nil {
		return fmt.Errorf("validate item %q: %w", c.ID, err)
	}
	return nil
}
