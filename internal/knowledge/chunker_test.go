package knowledge

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"line breaks collapse to spaces", "a\nb\r\nc", "a b c"},
		{"runs of whitespace shrink", "a   b\t\tc", "a b c"},
		{"leading and trailing trimmed", "  a b  ", "a b"},
		{"empty input", "", ""},
		{"whitespace only", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "three sentences",
			in:   "A. B. C.",
			want: []string{"A.", "B.", "C."},
		},
		{
			name: "mixed terminators",
			in:   "Really? Yes! Done.",
			want: []string{"Really?", "Yes!", "Done."},
		},
		{
			name: "terminator inside token is not a boundary",
			in:   "version 1.2 shipped. next is 1.3",
			want: []string{"version 1.2 shipped.", "next is 1.3"},
		},
		{
			name: "trailing text without terminator",
			in:   "first. second without end",
			want: []string{"first.", "second without end"},
		},
		{
			name: "single sentence",
			in:   "only one.",
			want: []string{"only one."},
		},
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := SplitSentences(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitSentences(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitSentences_Deterministic(t *testing.T) {
	t.Parallel()

	in := "Alpha beta. Gamma delta! Epsilon? Zeta eta theta."
	first := SplitSentences(in)
	for range 5 {
		again := SplitSentences(in)
		if len(again) != len(first) {
			t.Fatalf("chunk count changed between runs: %d vs %d", len(again), len(first))
		}
		for i := range again {
			if again[i] != first[i] {
				t.Errorf("chunk[%d] changed between runs: %q vs %q", i, again[i], first[i])
			}
		}
	}
}

func TestSplitSentences_LongSentencelessText(t *testing.T) {
	t.Parallel()

	in := strings.Repeat("x", 2500)
	got := SplitSentences(in)
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3", len(got))
	}
	for i, c := range got {
		if len([]rune(c)) > maxChunkRunes {
			t.Errorf("chunk[%d] has %d runes, exceeds window %d", i, len([]rune(c)), maxChunkRunes)
		}
	}
}

func TestChunkContent_SentenceSplitAcrossLines(t *testing.T) {
	t.Parallel()

	got := ChunkContent("A.\nB.\nC.")
	want := []string{"A.", "B.", "C."}
	if len(got) != len(want) {
		t.Fatalf("ChunkContent() = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
