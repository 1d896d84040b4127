package engine

import "testing"

func TestScoreWER(t *testing.T) {
	tests := []struct {
		name       string
		reference  string
		hypothesis string
		wantRate   float64
		wantSubs   int
		wantIns    int
		wantDels   int
		wantRef    int
	}{
		{
			name:       "identical",
			reference:  "turn on the kitchen lights",
			hypothesis: "turn on the kitchen lights",
			wantRef:    5,
		},
		{
			name:       "one_substitution",
			reference:  "turn on the kitchen lights",
			hypothesis: "turn off the kitchen lights",
			wantRate:   1.0 / 5.0,
			wantSubs:   1,
			wantRef:    5,
		},
		{
			name:       "one_insertion",
			reference:  "stop recording now",
			hypothesis: "stop the recording now",
			wantRate:   1.0 / 3.0,
			wantIns:    1,
			wantRef:    3,
		},
		{
			name:       "one_deletion",
			reference:  "set a timer for ten minutes",
			hypothesis: "set a timer ten minutes",
			wantRate:   1.0 / 6.0,
			wantDels:   1,
			wantRef:    6,
		},
		{
			name:       "case_and_punctuation",
			reference:  "Okay, Computer.",
			hypothesis: "okay computer",
			wantRef:    2,
		},
		{
			name:       "empty_reference",
			reference:  "",
			hypothesis: "hello there",
		},
		{
			name:       "empty_hypothesis",
			reference:  "hello there",
			hypothesis: "",
			wantRate:   1.0,
			wantDels:   2,
			wantRef:    2,
		},
		{
			name:       "mixed_errors",
			reference:  "please read the next message out loud",
			hypothesis: "please read a next message loud",
			wantRate:   2.0 / 7.0,
			wantSubs:   1,
			wantDels:   1,
			wantRef:    7,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreWER(tt.reference, tt.hypothesis)
			if diff := got.Rate - tt.wantRate; diff > 0.001 || diff < -0.001 {
				t.Errorf("Rate = %f, want %f", got.Rate, tt.wantRate)
			}
			if got.RefWords != tt.wantRef {
				t.Errorf("RefWords = %d, want %d", got.RefWords, tt.wantRef)
			}
			if got.Substitutions != tt.wantSubs {
				t.Errorf("Substitutions = %d, want %d", got.Substitutions, tt.wantSubs)
			}
			if got.Insertions != tt.wantIns {
				t.Errorf("Insertions = %d, want %d", got.Insertions, tt.wantIns)
			}
			if got.Deletions != tt.wantDels {
				t.Errorf("Deletions = %d, want %d", got.Deletions, tt.wantDels)
			}
		})
	}
}
