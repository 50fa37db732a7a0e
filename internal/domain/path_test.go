package domain

import "testing"

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"  /shop/shirts/  ", "shop/shirts"},
		{"shop//shirts///blue", "shop/shirts/blue"},
		{"https://example.com/shop/shirts", "shop/shirts"},
		{"http://example.com", ""},
		{"shop/shirts", "shop/shirts"},
	}
	for _, c := range cases {
		if got := NormalizePath(c.in); got != c.want {
			t.Fatalf("NormalizePath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizePathIdempotent(t *testing.T) {
	inputs := []string{"", "/a//b/", "https://host/x/y", "  a / b ", "a/b/c"}
	for _, in := range inputs {
		once := NormalizePath(in)
		if twice := NormalizePath(once); twice != once {
			t.Fatalf("normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestJoinPath(t *testing.T) {
	if got := JoinPath("shop/", "/shirts"); got != "shop/shirts" {
		t.Fatalf("join = %q", got)
	}
	if got := JoinPath("", "shirts"); got != "shirts" {
		t.Fatalf("join empty prefix = %q", got)
	}
	if got := JoinPath("shop", ""); got != "shop" {
		t.Fatalf("join empty rest = %q", got)
	}
}

func TestSplitFirstSegment(t *testing.T) {
	head, rest := SplitFirstSegment("shop/shirts/blue")
	if head != "shop" || rest != "shirts/blue" {
		t.Fatalf("got %q %q", head, rest)
	}
	head, rest = SplitFirstSegment("shirts")
	if head != "shirts" || rest != "" {
		t.Fatalf("got %q %q", head, rest)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SKU-42", "sku-42"},
		{"Blue Shirt", "blue-shirt"},
		{"My App 2.0!", "my-app-2-0"},
		{"", ""},
		{"---", ""},
	}
	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Fatalf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
