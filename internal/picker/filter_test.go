package picker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzyScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query, candidate string
		ok               bool
	}{
		{"", "anything", true},
		{"gst", "git status", true},
		{"GS", "git status", true},
		{"sg", "git status", false},
		{"xyz", "git status", false},
		{"pods", "kubectl get pods", true},
	}
	for _, tt := range tests {
		_, ok := FuzzyScore(tt.query, tt.candidate)
		assert.Equal(t, tt.ok, ok, "%q in %q", tt.query, tt.candidate)
	}
}

func TestFuzzyScore_PrefersTightMatches(t *testing.T) {
	t.Parallel()

	contiguous, _ := FuzzyScore("test", "go test")
	scattered, _ := FuzzyScore("test", "terraform state list")
	assert.Greater(t, contiguous, scattered)

	boundary, _ := FuzzyScore("gs", "git status")
	inner, _ := FuzzyScore("gs", "bigsize")
	assert.Greater(t, boundary, inner)
}

func TestFilter(t *testing.T) {
	t.Parallel()

	in := items("terraform state list", "go test", "ls")
	assert.Equal(t, in, Filter(in, ""))

	out := Filter(in, "test")
	assert.Equal(t, []Item{{Value: "go test"}, {Value: "terraform state list"}}, out)

	assert.Empty(t, Filter(in, "zzz"))
}
