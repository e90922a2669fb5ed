package security

import (
	"errors"
	"strings"
	"testing"
)

func TestParseDeviceKey(t *testing.T) {
	_, pubHex := newDeviceKey(t)
	key, err := ParseDeviceKey(pubHex)
	if err != nil {
		t.Fatalf("ParseDeviceKey: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("key length = %d, want 32", len(key))
	}

	for _, bad := range []string{"", pubHex[:10], pubHex + "00", strings.Repeat("x", 64)} {
		if _, err := ParseDeviceKey(bad); !errors.Is(err, ErrInvalidDeviceKey) {
			t.Errorf("ParseDeviceKey(%q) err = %v, want ErrInvalidDeviceKey", bad, err)
		}
	}
}

func TestNormalizeDeviceKey(t *testing.T) {
	if got := NormalizeDeviceKey("  ABCdef  "); got != "abcdef" {
		t.Errorf("NormalizeDeviceKey = %q, want %q", got, "abcdef")
	}
}
