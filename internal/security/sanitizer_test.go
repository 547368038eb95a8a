package security

import "testing"

func TestTextSanitizer_Clean(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text unchanged", "I want that Mox Ruby!", "I want that Mox Ruby!"},
		{"tags stripped", "<b>Near</b> Mint", "Near Mint"},
		{"script removed with contents", "<script>alert(1)</script>hello", "hello"},
		{"ampersand kept literal", "Tom & Jerry", "Tom & Jerry"},
		{"whitespace trimmed", "   padded   ", "padded"},
		{"empty", "", ""},
		{"encoded script", "&lt;script&gt;alert(1)&lt;/script&gt;", ""},
		{"encoded img handler", "&lt;img src=x onerror=alert(1)&gt;", ""},
		{"encoded bold", "&lt;b&gt;hi&lt;/b&gt;", "hi"},
		{"double encoded bold", "&amp;lt;b&amp;gt;hi&amp;lt;/b&amp;gt;", "hi"},
		{"less-than in prose", "price < 10", "price < 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_CleanIsIdempotent(t *testing.T) {
	s := NewTextSanitizer()

	inputs := []string{
		"&lt;b&gt;hi&lt;/b&gt;",
		"&amp;lt;script&amp;gt;x&amp;lt;/script&amp;gt;done",
		"<i>Near</i> Mint &amp; sleeved",
		"Tom & Jerry",
		"a < b > c",
	}

	for _, in := range inputs {
		once := s.Clean(in)
		if twice := s.Clean(once); twice != once {
			t.Errorf("Clean(Clean(%q)) = %q, want %q", in, twice, once)
		}
	}
}
