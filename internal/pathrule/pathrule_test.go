package pathrule

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"about", "/about"},
		{"/about", "/about"},
		{"//about//team/", "/about/team"},
		{"about/team", "/about/team"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestArtifactPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"root", "/index.html"},
		{"ROOT", "/index.html"},
		{" root ", "/index.html"},
		{"about", "/about"},
		{"/about/team", "/about/team"},
		{"blog//2024/launch", "/blog/2024/launch"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ArtifactPath(tt.in); got != tt.want {
				t.Errorf("ArtifactPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"root", "root"},
		{"ROOT", "root"},
		{"about", "about"},
		{"/about", "about"},
		{"//about//team/", "about/team"},
		{"/", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Canonical(tt.in); got != tt.want {
				t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTocPath(t *testing.T) {
	if got := TocPath(""); got != "/toc.json" {
		t.Errorf("TocPath(\"\") = %q", got)
	}
	if got := TocPath("docs"); got != "/docs/toc.json" {
		t.Errorf("TocPath(docs) = %q", got)
	}
	if got := TocPath("/docs/"); got != "/docs/toc.json" {
		t.Errorf("TocPath(/docs/) = %q", got)
	}
}

func TestPurgePaths(t *testing.T) {
	if got := PurgePaths("https://www.example.com", "root"); len(got) != 1 || got[0] != "/" {
		t.Errorf("root purge = %v, want [/]", got)
	}

	got := PurgePaths("https://www.example.com/", "about/team")
	want := "https://www.example.com/about/team"
	if len(got) != 1 || got[0] != want {
		t.Errorf("purge = %v, want [%s]", got, want)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"Café au Lait", "cafe-au-lait"},
		{"  Spaces  everywhere  ", "spaces-everywhere"},
		{"Product v2.1 -- Launch!", "product-v2-1-launch"},
		{"Über uns", "uber-uns"},
		{"100% Pure", "100-pure"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slug(tt.in); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugNeverHasEdgeHyphens(t *testing.T) {
	for _, in := range []string{"!leading", "trailing!", "!!", "a!b"} {
		got := Slug(in)
		if strings.HasPrefix(got, "-") || strings.HasSuffix(got, "-") {
			t.Errorf("Slug(%q) = %q has edge hyphen", in, got)
		}
	}
}
