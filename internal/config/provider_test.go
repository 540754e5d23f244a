package config

import "testing"

func TestNormalizeCDNProvider(t *testing.T) {
	tests := []struct {
		in   string
		want CDNProvider
	}{
		{"cloudflare", CDNCloudflare},
		{"  CloudFlare ", CDNCloudflare},
		{"sucuri", CDNSucuri},
		{"azurecdn", CDNAzure},
		{"azure", CDNAzure},
		{"", CDNNone},
		{"fastly", CDNNone},
	}
	for _, tt := range tests {
		if got := NormalizeCDNProvider(tt.in); got != tt.want {
			t.Errorf("NormalizeCDNProvider(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCDNProvider(t *testing.T) {
	if res := ParseCDNProvider("sucuri"); res.IsErr() || res.Unwrap() != CDNSucuri {
		t.Errorf("ParseCDNProvider(sucuri) = %v", res)
	}
	if res := ParseCDNProvider("fastly"); res.IsOk() {
		t.Error("ParseCDNProvider(fastly) should fail")
	}
}

func TestCDNProviderValid(t *testing.T) {
	if !CDNCloudflare.Valid() {
		t.Error("cloudflare should be valid")
	}
	if CDNProvider("fastly").Valid() {
		t.Error("fastly should be invalid")
	}
}
