package cmd

import "testing"

func TestSortedSignals(t *testing.T) {
	components := map[string]float64{
		"sharpness":  0.9,
		"contrast":   0.5,
		"resolution": 1.0,
		"exposure":   0.7,
	}

	expected := []string{"contrast", "exposure", "resolution", "sharpness"}
	for run := 0; run < 5; run++ {
		got := sortedSignals(components)
		if len(got) != len(expected) {
			t.Fatalf("got %d names, want %d", len(got), len(expected))
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Errorf("run %d: name %d = %q, want %q", run, i, got[i], expected[i])
			}
		}
	}
}

func TestShortenPath(t *testing.T) {
	tests := []struct {
		path   string
		maxLen int
	}{
		{"short.jpg", 40},
		{"/a/very/long/directory/chain/holding/one/photo.jpg", 20},
	}
	for _, tt := range tests {
		got := shortenPath(tt.path, tt.maxLen)
		if len(got) > tt.maxLen {
			t.Errorf("shortenPath(%q, %d) = %q, exceeds limit", tt.path, tt.maxLen, got)
		}
	}
}
