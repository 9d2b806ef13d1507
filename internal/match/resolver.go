package match

import (
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Venue usernames are Turkish; the last-resort name tie-break has to sort
// dotted/dotless i correctly, so the collator is locale-aware.
var nameCollator = collate.New(language.Turkish)

// PickWinner resolves a winner from the submitted results map. It returns
// "" until BOTH canonical participants have an entry. Entries keyed by a
// name that is not a participant are ignored entirely and can never win.
//
// Comparison order, first non-tie wins: score desc, roundsWon desc,
// durationMs asc (missing counts as slowest), submittedAt asc, then
// locale-aware name comparison as a stable last resort.
func PickWinner(results map[string]ScoreSubmission, participants []string) string {
	canonical := make([]string, 0, 2)
	for _, p := range participants {
		if v := strings.TrimSpace(p); v != "" {
			canonical = append(canonical, v)
		}
	}
	if len(canonical) < 2 {
		return ""
	}

	byLower := make(map[string]string, len(canonical))
	for _, p := range canonical {
		byLower[strings.ToLower(p)] = p
	}

	type entry struct {
		name string
		sub  ScoreSubmission
	}
	deduped := make(map[string]ScoreSubmission)
	for name, sub := range results {
		p, ok := byLower[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		deduped[p] = sub
	}
	if len(deduped) < 2 {
		return ""
	}

	entries := make([]entry, 0, len(deduped))
	for name, sub := range deduped {
		entries = append(entries, entry{name: name, sub: sub})
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.sub.Score != b.sub.Score {
			return a.sub.Score > b.sub.Score
		}
		if a.sub.RoundsWon != b.sub.RoundsWon {
			return a.sub.RoundsWon > b.sub.RoundsWon
		}
		ad, bd := durationOrWorst(a.sub.DurationMs), durationOrWorst(b.sub.DurationMs)
		if ad != bd {
			return ad < bd
		}
		at, bt := submittedAtMs(a.sub.SubmittedAt), submittedAtMs(b.sub.SubmittedAt)
		if at != bt {
			return at < bt
		}
		return nameCollator.CompareString(a.name, b.name) < 0
	})

	return entries[0].name
}

func durationOrWorst(d *int64) int64 {
	if d == nil {
		return math.MaxInt64
	}
	return *d
}

func submittedAtMs(iso string) int64 {
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// unparseable timestamps sort first, same as Date(0) upstream consumers
		return 0
	}
	return t.UnixMilli()
}

// SanitizeScoreSubmission clamps a raw submission into the stored shape:
// non-negative integers and a concrete submittedAt.
func SanitizeScoreSubmission(sub ScoreSubmission, now time.Time) ScoreSubmission {
	out := ScoreSubmission{
		Score:       maxInt(0, sub.Score),
		RoundsWon:   maxInt(0, sub.RoundsWon),
		SubmittedAt: strings.TrimSpace(sub.SubmittedAt),
	}
	if sub.DurationMs != nil && *sub.DurationMs >= 0 {
		d := *sub.DurationMs
		out.DurationMs = &d
	}
	if out.SubmittedAt == "" {
		out.SubmittedAt = nowISO(now)
	} else if _, err := time.Parse(time.RFC3339Nano, out.SubmittedAt); err != nil {
		out.SubmittedAt = nowISO(now)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
