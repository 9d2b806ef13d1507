package match

import (
	"testing"
	"time"
)

func ms(v int64) *int64 { return &v }

func TestPickWinnerRequiresBothParticipants(t *testing.T) {
	results := map[string]ScoreSubmission{
		"ayse": {Score: 50, SubmittedAt: "2026-03-01T10:00:00Z"},
	}
	if w := PickWinner(results, []string{"ayse", "mehmet"}); w != "" {
		t.Errorf("winner resolved with one report: %q", w)
	}
}

func TestPickWinnerHighestScoreWins(t *testing.T) {
	results := map[string]ScoreSubmission{
		"ayse":   {Score: 120, SubmittedAt: "2026-03-01T10:00:00Z"},
		"mehmet": {Score: 80, SubmittedAt: "2026-03-01T09:59:00Z"},
	}
	if w := PickWinner(results, []string{"ayse", "mehmet"}); w != "ayse" {
		t.Errorf("winner = %q, want ayse", w)
	}
}

func TestPickWinnerTieBreakOrder(t *testing.T) {
	base := "2026-03-01T10:00:00Z"
	earlier := "2026-03-01T09:00:00Z"

	cases := []struct {
		name string
		a, b ScoreSubmission
		want string
	}{
		{
			name: "rounds won breaks score tie",
			a:    ScoreSubmission{Score: 100, RoundsWon: 3, SubmittedAt: base},
			b:    ScoreSubmission{Score: 100, RoundsWon: 2, SubmittedAt: base},
			want: "alice",
		},
		{
			name: "shorter duration breaks rounds tie",
			a:    ScoreSubmission{Score: 100, RoundsWon: 2, DurationMs: ms(60000), SubmittedAt: base},
			b:    ScoreSubmission{Score: 100, RoundsWon: 2, DurationMs: ms(45000), SubmittedAt: base},
			want: "bob",
		},
		{
			name: "missing duration counts as slowest",
			a:    ScoreSubmission{Score: 100, RoundsWon: 2, SubmittedAt: base},
			b:    ScoreSubmission{Score: 100, RoundsWon: 2, DurationMs: ms(999999), SubmittedAt: base},
			want: "bob",
		},
		{
			name: "earlier submission breaks duration tie",
			a:    ScoreSubmission{Score: 100, RoundsWon: 2, DurationMs: ms(60000), SubmittedAt: earlier},
			b:    ScoreSubmission{Score: 100, RoundsWon: 2, DurationMs: ms(60000), SubmittedAt: base},
			want: "alice",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results := map[string]ScoreSubmission{"alice": tc.a, "bob": tc.b}
			if w := PickWinner(results, []string{"alice", "bob"}); w != tc.want {
				t.Errorf("winner = %q, want %q", w, tc.want)
			}
		})
	}
}

func TestPickWinnerNonParticipantEntriesAreIgnored(t *testing.T) {
	results := map[string]ScoreSubmission{
		"ayse":     {Score: 10, SubmittedAt: "2026-03-01T10:00:00Z"},
		"mehmet":   {Score: 20, SubmittedAt: "2026-03-01T10:00:00Z"},
		"intruder": {Score: 9999, SubmittedAt: "2026-03-01T10:00:00Z"},
	}
	if w := PickWinner(results, []string{"ayse", "mehmet"}); w != "mehmet" {
		t.Errorf("winner = %q, want mehmet (intruder must never win)", w)
	}
}

func TestPickWinnerCaseInsensitiveKeys(t *testing.T) {
	results := map[string]ScoreSubmission{
		"AYSE":   {Score: 30, SubmittedAt: "2026-03-01T10:00:00Z"},
		"Mehmet": {Score: 20, SubmittedAt: "2026-03-01T10:00:00Z"},
	}
	// the resolved winner carries the canonical spelling
	if w := PickWinner(results, []string{"Ayse", "mehmet"}); w != "Ayse" {
		t.Errorf("winner = %q, want canonical Ayse", w)
	}
}

func TestPickWinnerDeterministicNameFallback(t *testing.T) {
	sub := ScoreSubmission{Score: 100, RoundsWon: 2, DurationMs: ms(60000), SubmittedAt: "2026-03-01T10:00:00Z"}
	results := map[string]ScoreSubmission{"zeynep": sub, "can": sub}
	first := PickWinner(results, []string{"zeynep", "can"})
	for i := 0; i < 20; i++ {
		if w := PickWinner(results, []string{"zeynep", "can"}); w != first {
			t.Fatalf("resolution not deterministic: %q vs %q", w, first)
		}
	}
	if first != "can" {
		t.Errorf("full tie winner = %q, want can (collation order)", first)
	}
}

func TestPickWinnerTurkishCollation(t *testing.T) {
	sub := ScoreSubmission{Score: 1, SubmittedAt: "2026-03-01T10:00:00Z"}
	results := map[string]ScoreSubmission{"çiğdem": sub, "deniz": sub}
	// ç sorts before d in Turkish, after z in naive byte order
	if w := PickWinner(results, []string{"çiğdem", "deniz"}); w != "çiğdem" {
		t.Errorf("winner = %q, want çiğdem under Turkish collation", w)
	}
}

func TestSanitizeScoreSubmissionClampsAndStamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	neg := int64(-5)
	out := SanitizeScoreSubmission(ScoreSubmission{Score: -10, RoundsWon: -1, DurationMs: &neg, SubmittedAt: "garbage"}, now)
	if out.Score != 0 || out.RoundsWon != 0 {
		t.Errorf("negative values not clamped: %+v", out)
	}
	if out.DurationMs != nil {
		t.Errorf("negative duration kept: %v", *out.DurationMs)
	}
	if out.SubmittedAt != "2026-03-01T10:00:00Z" {
		t.Errorf("SubmittedAt = %q, want stamped now", out.SubmittedAt)
	}
}
