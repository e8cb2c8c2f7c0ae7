package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/v1/products/01HZX3":            "/v1/products/:id",
		"/v1/admin/products/01HZX3":      "/v1/admin/products/:id",
		"/v1/admin/orders/01HZX3/status": "/v1/admin/orders/:id/status",
		"/v1/categories/01HZX3/filters":  "/v1/categories/:id/filters",
		"/v1/products?limit=10":          "/v1/products",
		"/v1/admin/orders/counts":        "/v1/admin/orders/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
