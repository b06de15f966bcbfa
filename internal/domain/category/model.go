package category

import (
	"fmt"
	"strings"

	"github.com/streetlift/meet-engine/internal/domain/athlete"
)

// WeightCategory is a bodyweight class, unique by name within (sex, bounds).
type WeightCategory struct {
	ID    int64
	Name  string
	Sex   athlete.Sex
	MinKg float64
	MaxKg float64
}

func (c WeightCategory) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("weight category name is required")
	}
	if c.Sex != athlete.SexMale && c.Sex != athlete.SexFemale {
		return fmt.Errorf("weight category sex must be M or F")
	}
	if c.MinKg < 0 || (c.MaxKg != 0 && c.MaxKg < c.MinKg) {
		return fmt.Errorf("weight category bounds are inconsistent")
	}

	return nil
}

// AgeCategory groups athletes by age at meet date.
type AgeCategory struct {
	ID     int64
	Name   string
	MinAge int
	MaxAge int
}

func (c AgeCategory) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("age category name is required")
	}
	if c.MinAge < 0 || (c.MaxAge != 0 && c.MaxAge < c.MinAge) {
		return fmt.Errorf("age category bounds are inconsistent")
	}

	return nil
}
