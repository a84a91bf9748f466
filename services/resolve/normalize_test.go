package resolve

import "testing"

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Breaking Bad", "breaking bad"},
		{"year and season and noise", "Money Heist (2017) Season 3 Bangla Dubbed 720p", "money heist"},
		{"native script noise", "Kung Fu Panda বাংলা", "kung fu panda"},
		{"quality soup", "Extraction 2 WEB-DL 1080p HDRip", "extraction 2"},
		{"punctuation", "Spider-Man: No Way Home", "spider man no way home"},
		{"episode tokens", "Dark S2 Ep 4", "dark"},
		{"empty", "", ""},
		{"only noise", "720p HDRip", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTitle(tt.input)
			if got != tt.want {
				t.Fatalf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeTitleIdempotent(t *testing.T) {
	inputs := []string{
		"Money Heist (2017) Season 3 Bangla Dubbed 720p",
		"Spider-Man: No Way Home",
		"Alice in Borderland S2",
	}
	for _, in := range inputs {
		once := NormalizeTitle(in)
		twice := NormalizeTitle(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestBaseTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Money Heist: Part 5", "Money Heist"},
		{"Alice in Borderland (2020)", "Alice in Borderland"},
		{"Spider-Man", "Spider"},
		{"Dark", "Dark"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BaseTitle(tt.input); got != tt.want {
			t.Fatalf("BaseTitle(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
