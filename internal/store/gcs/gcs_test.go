package gcs

import "testing"

func TestObjectName(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "products", "products.json"},
		{"shop", "inventory", "shop/inventory.json"},
		{"shop/", "shopData", "shop/shopData.json"},
	}
	for _, tt := range tests {
		if got := ObjectName(tt.prefix, tt.key); got != tt.want {
			t.Errorf("ObjectName(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
		}
	}
}
