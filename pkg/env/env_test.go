package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_FORMAT", "  console ")
	if got := Get("STOREFRONT_TEST_FORMAT", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	t.Setenv("STOREFRONT_TEST_FORMAT", "   ")
	if got := Get("STOREFRONT_TEST_FORMAT", "json"); got != "json" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("STOREFRONT_TEST_COLOR", "false")
	if Bool("STOREFRONT_TEST_COLOR", true) {
		t.Fatal("expected false")
	}
	t.Setenv("STOREFRONT_TEST_COLOR", "maybe")
	if !Bool("STOREFRONT_TEST_COLOR", true) {
		t.Fatal("expected fallback for unparsable value")
	}
}
