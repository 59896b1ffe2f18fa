package ledger

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"pkt.systems/devdeck/schema"
)

var baseDay = time.Date(2024, time.January, 10, 12, 0, 0, 0, time.Local)

func TestApplySaveIsIdempotentPerEvent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 200).Draw(t, "n")
		stats := schema.DefaultDeveloperStats()
		for i := 0; i < n; i++ {
			Apply(&stats, baseDay, schema.ActivityEvent{Type: schema.ActivitySave})
		}
		day := stats.DailyStats[DayKey(baseDay)]
		if n == 0 {
			if day != nil {
				t.Fatalf("expected no day record")
			}
			return
		}
		if day.FilesSaved != int64(n) {
			t.Fatalf("expected %d saves, got %d", n, day.FilesSaved)
		}
		if day.ActiveCodingTimeSeconds != 0 || day.CodeExecutions != 0 || day.AIHelps != 0 || day.AIRefactors != 0 || len(day.TimeByLanguage) != 0 {
			t.Fatalf("save touched other fields: %+v", day)
		}
		if stats.CodingStreak.Current != 0 {
			t.Fatalf("save advanced streak")
		}
	})
}

func TestApplyDayBucketIsolation(t *testing.T) {
	kinds := []schema.ActivityKind{
		schema.ActivityActiveTime,
		schema.ActivitySave,
		schema.ActivityExecute,
		schema.ActivityAIHelp,
		schema.ActivityAIRefactor,
	}
	rapid.Check(t, func(t *rapid.T) {
		stats := schema.DefaultDeveloperStats()
		prev := DayKey(baseDay.AddDate(0, 0, -1))
		next := DayKey(baseDay.AddDate(0, 0, 1))
		stats.DailyStats[prev] = &schema.DayStats{FilesSaved: 7, TimeByLanguage: map[schema.Language]int64{"go": 5}}
		stats.DailyStats[next] = &schema.DayStats{AIHelps: 3, TimeByLanguage: map[schema.Language]int64{}}

		count := rapid.IntRange(1, 50).Draw(t, "count")
		for i := 0; i < count; i++ {
			kind := rapid.SampledFrom(kinds).Draw(t, "kind")
			event := schema.ActivityEvent{Type: kind}
			if kind == schema.ActivityActiveTime {
				event.Seconds = rapid.Int64Range(0, 4000).Draw(t, "seconds")
				event.Language = "go"
			}
			Apply(&stats, baseDay, event)
		}
		if got := stats.DailyStats[prev]; got.FilesSaved != 7 || got.TimeByLanguage["go"] != 5 {
			t.Fatalf("previous day mutated: %+v", got)
		}
		if got := stats.DailyStats[next]; got.AIHelps != 3 || len(got.TimeByLanguage) != 0 {
			t.Fatalf("next day mutated: %+v", got)
		}
	})
}

func TestApplyStreakLaw(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		stats := schema.DefaultDeveloperStats()
		previous := rapid.IntRange(0, 30).Draw(t, "previous")
		longest := previous + rapid.IntRange(0, 10).Draw(t, "extra")
		gap := rapid.IntRange(1, 5).Draw(t, "gap")
		last := DayKey(baseDay.AddDate(0, 0, -gap))
		stats.CodingStreak = schema.Streak{Current: previous, Longest: longest, LastDayCompleted: &last}

		Apply(&stats, baseDay, schema.ActivityEvent{Type: schema.ActivityActiveTime, Seconds: 3600, Language: "x"})

		want := 1
		if gap == 1 {
			want = previous + 1
		}
		streak := stats.CodingStreak
		if streak.Current != want {
			t.Fatalf("gap %d: expected current %d, got %d", gap, want, streak.Current)
		}
		if streak.Longest < streak.Current || streak.Longest < longest {
			t.Fatalf("longest invariant broken: %+v", streak)
		}
		if *streak.LastDayCompleted != DayKey(baseDay) {
			t.Fatalf("expected last day to be today, got %s", *streak.LastDayCompleted)
		}

		extra := rapid.IntRange(1, 10).Draw(t, "extra_events")
		before := streak
		for i := 0; i < extra; i++ {
			Apply(&stats, baseDay, schema.ActivityEvent{Type: schema.ActivityActiveTime, Seconds: 60, Language: "x"})
		}
		if stats.CodingStreak.Current != before.Current || stats.CodingStreak.Longest != before.Longest {
			t.Fatalf("streak changed again on the same day")
		}
	})
}

func TestAddDays(t *testing.T) {
	cases := []struct {
		key   schema.DateKey
		delta int
		want  schema.DateKey
	}{
		{"2024-03-01", -1, "2024-02-29"},
		{"2023-03-01", -1, "2023-02-28"},
		{"2024-01-01", -1, "2023-12-31"},
		{"2024-12-31", 1, "2025-01-01"},
	}
	for _, tc := range cases {
		if got := addDays(tc.key, tc.delta); got != tc.want {
			t.Fatalf("addDays(%s, %d) = %s, want %s", tc.key, tc.delta, got, tc.want)
		}
	}
}
