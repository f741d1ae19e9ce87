package synthesis

import (
	"testing"

	"slidedeck-ai/internal/grounding"
)

func TestSplitCitations(t *testing.T) {
	set := energySet()
	tests := []struct {
		in        string
		wantText  string
		wantCites []string
	}{
		{in: "Solar doubled [S1].", wantText: "Solar doubled.", wantCites: []string{"c3"}},
		{in: "Both grew [S1, S2]", wantText: "Both grew", wantCites: []string{"c3", "c7"}},
		{in: "Both grew [s1][S3]", wantText: "Both grew", wantCites: []string{"c3", "c12"}},
		{in: "Unknown [S4]", wantText: "Unknown", wantCites: []string{"S4"}},
		{in: "No citation", wantText: "No citation"},
		{in: "See [note] here", wantText: "See [note] here"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			text, cites := splitCitations(tt.in, set)
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if len(cites) != len(tt.wantCites) {
				t.Fatalf("cites = %v, want %v", cites, tt.wantCites)
			}
			for i := range cites {
				if cites[i] != tt.wantCites[i] {
					t.Errorf("cites[%d] = %q, want %q", i, cites[i], tt.wantCites[i])
				}
			}
		})
	}
}

func TestParseBullets(t *testing.T) {
	raw := "## Renewables\n\n1. Solar doubled [S1]\n* Wind grew\n  [S2]\n\n- Coal fell [S3]"
	drafts := parseBullets(raw, energySet())
	want := []grounding.Draft{
		{Text: "Solar doubled", Citations: []string{"c3"}},
		{Text: "Wind grew", Citations: []string{"c7"}},
		{Text: "Coal fell", Citations: []string{"c12"}},
	}
	if len(drafts) != len(want) {
		t.Fatalf("parseBullets() = %+v", drafts)
	}
	for i := range want {
		if drafts[i].Text != want[i].Text || len(drafts[i].Citations) != 1 || drafts[i].Citations[0] != want[i].Citations[0] {
			t.Errorf("draft %d = %+v, want %+v", i, drafts[i], want[i])
		}
	}
}
