package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "skycms ") {
		t.Errorf("String() = %q, want skycms prefix", s)
	}
	if !strings.Contains(s, Version) {
		t.Errorf("String() = %q missing version %q", s, Version)
	}
}
