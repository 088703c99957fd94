package pricing

// Margin policy configuration and the margin computation. Categories are a
// closed set with an explicit default fallback; unknown input never panics.

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryToys        Category = "toys"
	CategoryClothing    Category = "clothing"
	CategorySports      Category = "sports"
	CategoryBeauty      Category = "beauty"
	CategoryHome        Category = "home"
	CategoryDefault     Category = "default"
)

// ParseCategory maps raw catalog input onto a known category,
// case-insensitively, with a default fallback.
func ParseCategory(raw string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryElectronics:
		return CategoryElectronics
	case CategoryToys:
		return CategoryToys
	case CategoryClothing:
		return CategoryClothing
	case CategorySports:
		return CategorySports
	case CategoryBeauty:
		return CategoryBeauty
	case CategoryHome:
		return CategoryHome
	default:
		return CategoryDefault
	}
}

// MarginPolicy bounds and shapes the computed margin for one category.
// Margins are percentages.
type MarginPolicy struct {
	MinMargin             float64 `yaml:"min_margin" json:"min_margin"`
	TargetMargin          float64 `yaml:"target_margin" json:"target_margin"`
	MaxMargin             float64 `yaml:"max_margin" json:"max_margin"`
	CompetitiveAdjustment float64 `yaml:"competitive_adjustment" json:"competitive_adjustment"`
	CategoryMultiplier    float64 `yaml:"category_multiplier" json:"category_multiplier"`
}

type MarginEngine struct {
	policies map[Category]MarginPolicy
}

// DefaultMarginPolicies returns the built-in per-category margin table.
func DefaultMarginPolicies() map[Category]MarginPolicy {
	return map[Category]MarginPolicy{
		CategoryElectronics: {MinMargin: 20, TargetMargin: 35, MaxMargin: 50, CompetitiveAdjustment: 1.0, CategoryMultiplier: 1.0},
		CategoryToys:        {MinMargin: 20, TargetMargin: 30, MaxMargin: 40, CompetitiveAdjustment: 1.0, CategoryMultiplier: 1.0},
		CategoryClothing:    {MinMargin: 25, TargetMargin: 40, MaxMargin: 60, CompetitiveAdjustment: 1.0, CategoryMultiplier: 1.0},
		CategorySports:      {MinMargin: 20, TargetMargin: 35, MaxMargin: 50, CompetitiveAdjustment: 1.0, CategoryMultiplier: 1.0},
		CategoryBeauty:      {MinMargin: 30, TargetMargin: 45, MaxMargin: 65, CompetitiveAdjustment: 1.0, CategoryMultiplier: 1.0},
		CategoryHome:        {MinMargin: 18, TargetMargin: 32, MaxMargin: 48, CompetitiveAdjustment: 1.0, CategoryMultiplier: 1.0},
		CategoryDefault:     {MinMargin: 15, TargetMargin: 30, MaxMargin: 45, CompetitiveAdjustment: 1.0, CategoryMultiplier: 1.0},
	}
}

func NewMarginEngine(policies map[Category]MarginPolicy) (*MarginEngine, error) {
	if policies == nil {
		policies = DefaultMarginPolicies()
	}
	if _, ok := policies[CategoryDefault]; !ok {
		return nil, fmt.Errorf("margin policies must include the default category")
	}
	for category, policy := range policies {
		if err := validatePolicy(category, policy); err != nil {
			return nil, err
		}
	}
	return &MarginEngine{policies: policies}, nil
}

// LoadMarginPolicies reads the margin policy table from a yaml file keyed by
// category name, or returns the built-in defaults when path is empty.
func LoadMarginPolicies(path string) (map[Category]MarginPolicy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultMarginPolicies(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read margin policies: %w", err)
	}

	var raw map[string]MarginPolicy
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse margin policies: %w", err)
	}

	policies := make(map[Category]MarginPolicy, len(raw))
	for name, policy := range raw {
		category := ParseCategory(name)
		if category == CategoryDefault && !strings.EqualFold(strings.TrimSpace(name), string(CategoryDefault)) {
			return nil, fmt.Errorf("unknown margin policy category: %s", name)
		}
		policies[category] = policy
	}
	return policies, nil
}

func validatePolicy(category Category, policy MarginPolicy) error {
	if !(policy.MinMargin <= policy.TargetMargin && policy.TargetMargin <= policy.MaxMargin) {
		return fmt.Errorf("margin policy %s: want min <= target <= max, got %v/%v/%v",
			category, policy.MinMargin, policy.TargetMargin, policy.MaxMargin)
	}
	if policy.CompetitiveAdjustment <= 0 || policy.CategoryMultiplier <= 0 {
		return fmt.Errorf("margin policy %s: multipliers must be positive", category)
	}
	return nil
}

// PolicyFor returns the policy for a raw category name, falling back to the
// default category.
func (e *MarginEngine) PolicyFor(rawCategory string) MarginPolicy {
	if policy, ok := e.policies[ParseCategory(rawCategory)]; ok {
		return policy
	}
	return e.policies[CategoryDefault]
}

// ComputeMargin returns the margin percent for a product: target margin
// shaped by competitive pressure, season, and category weight, clamped into
// the policy's [min, max] band. A competitor priced under 1.2x the base price
// compresses the competitive adjustment by 10%.
func (e *MarginEngine) ComputeMargin(rawCategory string, at time.Time, competitivePrice *float64, basePrice float64) float64 {
	policy := e.PolicyFor(rawCategory)

	competitive := policy.CompetitiveAdjustment
	if competitivePrice != nil && *competitivePrice < 1.2*basePrice {
		competitive *= 0.9
	}

	margin := policy.TargetMargin * competitive * SeasonalMarginMultiplier(at, rawCategory) * policy.CategoryMultiplier

	if margin < policy.MinMargin {
		return policy.MinMargin
	}
	if margin > policy.MaxMargin {
		return policy.MaxMargin
	}
	return margin
}

// SeasonalMarginMultiplier returns the category-specific seasonal demand
// boost: holiday season for toys and electronics, back-to-school for
// electronics and clothing, summer for sports and clothing.
func SeasonalMarginMultiplier(at time.Time, rawCategory string) float64 {
	category := ParseCategory(rawCategory)
	switch at.Month() {
	case time.November, time.December, time.January:
		if category == CategoryToys || category == CategoryElectronics {
			return 1.3
		}
	case time.August, time.September:
		if category == CategoryElectronics || category == CategoryClothing {
			return 1.2
		}
		if at.Month() == time.August && category == CategorySports {
			return 1.1
		}
	case time.June, time.July:
		if category == CategorySports || category == CategoryClothing {
			return 1.1
		}
	}
	return 1.0
}
