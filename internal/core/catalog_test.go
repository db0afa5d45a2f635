package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := DefaultCatalog()
	if err := c.Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
	if c.Len() != 7 {
		t.Fatalf("expected 7 categories, got %d", c.Len())
	}
	for _, name := range c.Names() {
		if n := len(c.Templates(name)); n != 20 {
			t.Fatalf("category %q has %d merchants", name, n)
		}
	}
}

func TestCatalogAccessorsReturnCopies(t *testing.T) {
	c := DefaultCatalog()
	tpls := c.Templates("Groceries")
	tpls[0].Merchant = "changed"
	if c.Templates("Groceries")[0].Merchant == "changed" {
		t.Fatal("Templates leaked internal slice")
	}
	if c.Templates("Nope") != nil {
		t.Fatal("unknown category should return nil")
	}
}

func TestNewCatalogValidation(t *testing.T) {
	tpl := func(name string, min, max int64) MerchantTemplate {
		return MerchantTemplate{Merchant: name, Min: decimal.NewFromInt(min), Max: decimal.NewFromInt(max)}
	}
	cases := []struct {
		name string
		cats []Category
		ok   bool
	}{
		{"valid", []Category{{Name: "A", Merchants: []MerchantTemplate{tpl("x", 0, 1)}}}, true},
		{"empty", nil, false},
		{"no merchants", []Category{{Name: "A"}}, false},
		{"unnamed", []Category{{Name: "", Merchants: []MerchantTemplate{tpl("x", 0, 1)}}}, false},
		{"min equals max", []Category{{Name: "A", Merchants: []MerchantTemplate{tpl("x", 5, 5)}}}, false},
		{"negative min", []Category{{Name: "A", Merchants: []MerchantTemplate{tpl("x", -1, 5)}}}, false},
		{"duplicate", []Category{
			{Name: "A", Merchants: []MerchantTemplate{tpl("x", 0, 1)}},
			{Name: "A", Merchants: []MerchantTemplate{tpl("y", 0, 1)}},
		}, false},
	}
	for _, tc := range cases {
		_, err := NewCatalog(tc.cats)
		if tc.ok && err != nil {
			t.Fatalf("%s: expected ok, got %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
