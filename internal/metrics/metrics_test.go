package metrics

import "testing"

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"matches/upcoming": "matches/upcoming",
		"matches/recent":   "matches/recent",
		"matches/m-123":    "matches/:id",
		"other":            "other",
	}
	for in, want := range tests {
		if got := EndpointLabel(in); got != want {
			t.Errorf("EndpointLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
