// Package core holds the simulated bank's domain types.
//
// This file defines the merchant catalog used by the transaction generator.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MerchantTemplate bounds the amount a merchant can charge.
type MerchantTemplate struct {
	Merchant string
	Min      decimal.Decimal
	Max      decimal.Decimal
}

type Category struct {
	Name      string
	Merchants []MerchantTemplate
}

// Catalog is an immutable, ordered set of categories. Build one with NewCatalog
// or DefaultCatalog; accessors return copies so callers cannot mutate it.
type Catalog struct {
	categories []Category
}

var ErrEmptyCatalog = errors.New("catalog has no categories")

// NewCatalog copies and validates categories.
func NewCatalog(categories []Category) (Catalog, error) {
	c := Catalog{categories: make([]Category, len(categories))}
	for i, cat := range categories {
		c.categories[i] = Category{
			Name:      cat.Name,
			Merchants: append([]MerchantTemplate(nil), cat.Merchants...),
		}
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks every category is named and non-empty and 0 <= min < max.
func (c Catalog) Validate() error {
	if len(c.categories) == 0 {
		return ErrEmptyCatalog
	}
	seen := make(map[string]struct{}, len(c.categories))
	for _, cat := range c.categories {
		if strings.TrimSpace(cat.Name) == "" {
			return ErrEmptyCategory
		}
		if _, dup := seen[cat.Name]; dup {
			return fmt.Errorf("duplicate category %q", cat.Name)
		}
		seen[cat.Name] = struct{}{}
		if len(cat.Merchants) == 0 {
			return fmt.Errorf("category %q has no merchants", cat.Name)
		}
		for _, t := range cat.Merchants {
			if strings.TrimSpace(t.Merchant) == "" {
				return fmt.Errorf("category %q: %w", cat.Name, ErrEmptyMerchant)
			}
			if t.Min.IsNegative() || !t.Min.LessThan(t.Max) {
				return fmt.Errorf("merchant %q: need 0 <= min < max, got [%s, %s]", t.Merchant, t.Min, t.Max)
			}
		}
	}
	return nil
}

// Len returns the number of categories.
func (c Catalog) Len() int { return len(c.categories) }

// CategoryAt returns the i-th category.
func (c Catalog) CategoryAt(i int) Category {
	cat := c.categories[i]
	return Category{Name: cat.Name, Merchants: append([]MerchantTemplate(nil), cat.Merchants...)}
}

// Names returns category names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	return names
}

// Templates returns the merchants of the named category, or nil.
func (c Catalog) Templates(category string) []MerchantTemplate {
	for _, cat := range c.categories {
		if cat.Name == category {
			return append([]MerchantTemplate(nil), cat.Merchants...)
		}
	}
	return nil
}

func m(merchant string, min, max int64) MerchantTemplate {
	return MerchantTemplate{Merchant: merchant, Min: decimal.NewFromInt(min), Max: decimal.NewFromInt(max)}
}

// DefaultCatalog returns the built-in US merchant catalog.
func DefaultCatalog() Catalog {
	return Catalog{categories: []Category{
		{Name: "Groceries", Merchants: []MerchantTemplate{
			m("Trader Joe's", 25, 150),
			m("Whole Foods Market", 40, 250),
			m("Costco", 100, 500),
			m("Safeway", 20, 180),
			m("Kroger", 20, 180),
			m("Albertsons", 20, 180),
			m("Aldi", 15, 120),
			m("Lidl", 15, 120),
			m("Walmart Grocery", 20, 220),
			m("Target Grocery", 20, 180),
			m("H-E-B", 20, 180),
			m("Meijer", 20, 180),
			m("Publix", 25, 190),
			m("Ralphs", 20, 180),
			m("Vons", 20, 170),
			m("Food Lion", 15, 150),
			m("Giant Food", 20, 180),
			m("Wegmans", 30, 220),
			m("Sprouts Farmers Market", 20, 160),
			m("Fresh Thyme", 15, 140),
		}},
		{Name: "Food & Dining", Merchants: []MerchantTemplate{
			m("Starbucks", 5, 30),
			m("McDonald's", 8, 40),
			m("Chipotle", 12, 50),
			m("Subway", 8, 35),
			m("Chick-fil-A", 9, 40),
			m("Burger King", 8, 35),
			m("Taco Bell", 7, 30),
			m("KFC", 9, 35),
			m("Panda Express", 10, 45),
			m("Panera Bread", 10, 45),
			m("Dunkin", 4, 25),
			m("Five Guys", 12, 55),
			m("Shake Shack", 12, 60),
			m("Domino’s", 10, 45),
			m("Papa Johns", 10, 45),
			m("Pizza Hut", 10, 45),
			m("Olive Garden", 15, 80),
			m("The Cheesecake Factory", 20, 120),
			m("Buffalo Wild Wings", 15, 90),
			m("Local Cafe", 6, 35),
		}},
		{Name: "Transportation", Merchants: []MerchantTemplate{
			m("Uber", 10, 75),
			m("Lyft", 10, 75),
			m("Shell Gas Station", 30, 80),
			m("Chevron", 30, 80),
			m("Exxon", 30, 80),
			m("BP", 30, 80),
			m("Mobil", 30, 80),
			m("7-Eleven Fuel", 25, 70),
			m("Costco Fuel", 25, 70),
			m("Arco", 25, 70),
			m("Public Transit", 2, 12),
			m("Metro Card Reload", 5, 50),
			m("Parking Garage", 5, 40),
			m("Toll Road", 3, 20),
			m("Car Wash", 8, 35),
			m("Jiffy Lube", 40, 150),
			m("AutoZone", 10, 120),
			m("Advance Auto Parts", 10, 120),
			m("Enterprise Rent-A-Car", 40, 200),
			m("Hertz", 40, 220),
		}},
		{Name: "Subscriptions", Merchants: []MerchantTemplate{
			m("Netflix", 10, 25),
			m("Spotify", 10, 18),
			m("YouTube Premium", 10, 20),
			m("Hulu", 8, 20),
			m("Disney+", 8, 20),
			m("Max", 10, 20),
			m("Paramount+", 8, 18),
			m("Peacock", 6, 16),
			m("Apple Music", 10, 18),
			m("Apple iCloud", 1, 10),
			m("Amazon Prime", 10, 18),
			m("Audible", 8, 18),
			m("Adobe Creative Cloud", 10, 60),
			m("Canva Pro", 8, 20),
			m("Notion", 4, 15),
			m("Evernote", 4, 15),
			m("Dropbox", 8, 25),
			m("Google One", 2, 20),
			m("Microsoft 365", 8, 25),
			m("GitHub", 4, 10),
		}},
		{Name: "Utilities", Merchants: []MerchantTemplate{
			m("Electric Utility", 40, 220),
			m("Gas Utility", 20, 140),
			m("Water Utility", 20, 120),
			m("Trash Service", 15, 60),
			m("Sewer Service", 15, 80),
			m("Internet Provider", 40, 120),
			m("Mobile Phone Carrier", 30, 120),
			m("Home Phone", 10, 40),
			m("Cable TV", 30, 120),
			m("Solar Service", 20, 150),
			m("Home Security", 15, 70),
			m("Streaming Bundle", 15, 40),
			m("Cloud Storage", 2, 20),
			m("VPN Service", 3, 15),
			m("Domain Renewal", 10, 40),
			m("Web Hosting", 5, 25),
			m("Electric Vehicle Charging", 5, 40),
			m("Propane Refill", 10, 50),
			m("Smart Home Service", 5, 25),
			m("Device Protection Plan", 5, 20),
		}},
		{Name: "Entertainment", Merchants: []MerchantTemplate{
			m("AMC Theatres", 12, 60),
			m("Regal Cinemas", 12, 60),
			m("IMAX", 15, 80),
			m("Fandango", 10, 60),
			m("Concert Tickets", 25, 200),
			m("Live Nation", 25, 250),
			m("Bowling Alley", 10, 70),
			m("Mini Golf", 8, 40),
			m("Arcade", 5, 50),
			m("Escape Room", 20, 150),
			m("Museum", 10, 50),
			m("Zoo", 10, 70),
			m("Theme Park", 50, 250),
			m("Sporting Event", 25, 300),
			m("Karaoke", 15, 90),
			m("Theatre Playhouse", 20, 200),
			m("Comedy Club", 15, 120),
			m("Bookstore", 8, 120),
			m("Vinyl Record Shop", 10, 120),
			m("Game Store", 10, 120),
		}},
		{Name: "Shopping", Merchants: []MerchantTemplate{
			m("Amazon", 5, 400),
			m("Target", 10, 300),
			m("Walmart", 10, 300),
			m("Best Buy", 10, 800),
			m("IKEA", 20, 600),
			m("Home Depot", 10, 700),
			m("Lowe’s", 10, 700),
			m("Macy’s", 10, 400),
			m("Nordstrom", 20, 800),
			m("Sephora", 10, 300),
			m("Ulta Beauty", 10, 300),
			m("Nike", 10, 400),
			m("Adidas", 10, 400),
			m("H&M", 10, 300),
			m("Zara", 10, 300),
			m("Apple Store", 20, 1500),
			m("Google Store", 20, 1200),
			m("Etsy", 5, 250),
			m("eBay", 5, 500),
			m("Cost Plus World Market", 10, 250),
		}},
	}}
}
