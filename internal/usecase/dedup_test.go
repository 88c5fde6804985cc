package usecase

import (
	"reflect"
	"testing"

	"github.com/stylelens/backend/internal/domain"
)

func TestNormalizeImageURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips volatile resize params",
			in:   "https://cdn.example.com/a.jpg?w=400&q=80",
			want: "https://cdn.example.com/a.jpg",
		},
		{
			name: "keeps meaningful params",
			in:   "https://cdn.example.com/a.jpg?id=9&w=1600&format=webp",
			want: "https://cdn.example.com/a.jpg?id=9",
		},
		{
			name: "strips fragment",
			in:   "https://cdn.example.com/a.jpg#zoom",
			want: "https://cdn.example.com/a.jpg",
		},
		{
			name: "case insensitive param names",
			in:   "https://cdn.example.com/a.jpg?W=400&Quality=80",
			want: "https://cdn.example.com/a.jpg",
		},
		{
			name: "no query unchanged",
			in:   "https://cdn.example.com/a.jpg",
			want: "https://cdn.example.com/a.jpg",
		},
		{
			name: "unparseable returned verbatim",
			in:   "http://bad host/a.jpg",
			want: "http://bad host/a.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeImageURL(tt.in); got != tt.want {
				t.Errorf("NormalizeImageURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDedupCandidates(t *testing.T) {
	t.Run("rendition variants collapse keeping the higher score", func(t *testing.T) {
		in := []domain.ScoredCandidate{
			{ImageCandidate: domain.ImageCandidate{URL: "https://cdn.example.com/a.jpg?w=400&q=80"}, Score: 1.0},
			{ImageCandidate: domain.ImageCandidate{URL: "https://cdn.example.com/a.jpg?w=1600&format=webp"}, Score: 4.0},
			{ImageCandidate: domain.ImageCandidate{URL: "https://cdn.example.com/b.jpg"}, Score: 2.0},
		}
		out := DedupCandidates(in)
		if len(out) != 2 {
			t.Fatalf("len = %d, want 2", len(out))
		}
		if out[0].URL != "https://cdn.example.com/a.jpg?w=1600&format=webp" || out[0].Score != 4.0 {
			t.Errorf("out[0] = %+v, want the higher-scored rendition", out[0])
		}
		if out[1].URL != "https://cdn.example.com/b.jpg" {
			t.Errorf("out[1] = %+v", out[1])
		}
	})

	t.Run("ties keep first inserted", func(t *testing.T) {
		in := []domain.ScoredCandidate{
			{ImageCandidate: domain.ImageCandidate{URL: "https://cdn.example.com/a.jpg?w=400"}, Score: 2.0},
			{ImageCandidate: domain.ImageCandidate{URL: "https://cdn.example.com/a.jpg?w=800"}, Score: 2.0},
		}
		out := DedupCandidates(in)
		if len(out) != 1 || out[0].URL != "https://cdn.example.com/a.jpg?w=400" {
			t.Errorf("out = %+v, want the first variant retained", out)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		in := []domain.ScoredCandidate{
			{ImageCandidate: domain.ImageCandidate{URL: "https://cdn.example.com/a.jpg?w=400"}, Score: 1.0},
			{ImageCandidate: domain.ImageCandidate{URL: "https://cdn.example.com/a.jpg?w=1600"}, Score: 3.0},
			{ImageCandidate: domain.ImageCandidate{URL: "https://cdn.example.com/b.jpg"}, Score: 2.0},
		}
		once := DedupCandidates(in)
		twice := DedupCandidates(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("second pass changed the result:\nonce  = %+v\ntwice = %+v", once, twice)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if out := DedupCandidates(nil); out != nil {
			t.Errorf("out = %+v, want nil", out)
		}
	})
}

func TestDedupURLs(t *testing.T) {
	in := []string{
		"https://cdn.example.com/a.jpg?w=400",
		"https://cdn.example.com/a.jpg?w=1600",
		"https://cdn.example.com/b.jpg",
		"https://cdn.example.com/b.jpg",
	}
	want := []string{
		"https://cdn.example.com/a.jpg?w=400",
		"https://cdn.example.com/b.jpg",
	}
	if got := DedupURLs(in); !reflect.DeepEqual(got, want) {
		t.Errorf("DedupURLs = %v, want %v", got, want)
	}
}
