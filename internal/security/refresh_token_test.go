package security

import "testing"

func TestNewRefreshToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok, err := NewRefreshToken()
		if err != nil {
			t.Fatalf("NewRefreshToken: %v", err)
		}
		if len(tok) != 43 {
			t.Errorf("token length = %d, want 43", len(tok))
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestHashRefreshToken_Consistent(t *testing.T) {
	h1 := HashRefreshToken("abc")
	h2 := HashRefreshToken("abc")
	if h1 != h2 {
		t.Error("same token should produce same hash")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
	if HashRefreshToken("abd") == h1 {
		t.Error("different tokens should produce different hashes")
	}
}

func TestRefreshTokenHashEqual(t *testing.T) {
	stored := HashRefreshToken("secret")
	if !RefreshTokenHashEqual("secret", stored) {
		t.Error("matching token should compare equal")
	}
	if RefreshTokenHashEqual("Secret", stored) {
		t.Error("different token should not compare equal")
	}
	if RefreshTokenHashEqual("secret", "") {
		t.Error("empty stored hash should not compare equal")
	}
}
