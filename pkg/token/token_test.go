package token

import (
	"strings"
	"testing"
)

func TestGenerateLength(t *testing.T) {
	for _, n := range []int{1, 16, 32, 64} {
		if got := len(Generate(n)); got != n {
			t.Errorf("Generate(%d) length = %d", n, got)
		}
	}
}

func TestGenerateDefaultsLength(t *testing.T) {
	if got := len(Generate(0)); got != DefaultLength {
		t.Errorf("Generate(0) length = %d, want %d", got, DefaultLength)
	}
	if got := len(New()); got != DefaultLength {
		t.Errorf("New() length = %d, want %d", got, DefaultLength)
	}
}

func TestGenerateAlphabet(t *testing.T) {
	tok := Generate(256)
	for _, c := range tok {
		if !strings.ContainsRune(alphabet, c) {
			t.Fatalf("token contains %q, outside alphabet", c)
		}
	}
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok := New()
		if seen[tok] {
			t.Fatalf("duplicate token after %d generations", i)
		}
		seen[tok] = true
	}
}
