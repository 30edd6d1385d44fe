package fingerprint

import "testing"

func TestGenerateDeterministic(t *testing.T) {
	a := Generate("src/button.css", "42", "css", "avoid !important")
	b := Generate("src/button.css", "42", "css", "avoid !important")
	if a != b {
		t.Errorf("same inputs produced different fingerprints: %q vs %q", a, b)
	}
	if len(a) != Length {
		t.Errorf("expected %d hex chars, got %d (%q)", Length, len(a), a)
	}
}

func TestGenerateSensitivity(t *testing.T) {
	base := Issue("src/button.css", 42, 42, "css", "avoid !important")

	variants := []string{
		Issue("src/other.css", 42, 42, "css", "avoid !important"),
		Issue("src/button.css", 43, 43, "css", "avoid !important"),
		Issue("src/button.css", 42, 45, "css", "avoid !important"),
		Issue("src/button.css", 42, 42, "a11y", "avoid !important"),
		Issue("src/button.css", 42, 42, "css", "different message"),
	}

	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base fingerprint %q", i, base)
		}
	}
}

func TestSnippetWhitespaceInsensitive(t *testing.T) {
	a := Snippet("src/button.css", "color: red !important;", "css", "msg")
	b := Snippet("src/button.css", "  color: red !important;\n", "css", "msg")
	if a != b {
		t.Errorf("trimmed snippets should match: %q vs %q", a, b)
	}
}

func TestSnippetEmptyFallback(t *testing.T) {
	a := Snippet("src/button.css", "", "css", "msg")
	b := Snippet("src/button.css", "   \n", "css", "msg")
	want := Generate("src/button.css", "css", "msg")
	if a != want || b != want {
		t.Errorf("empty snippet should fall back to (file, category, message): got %q / %q, want %q", a, b, want)
	}
}
