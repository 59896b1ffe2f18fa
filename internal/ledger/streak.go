package ledger

import (
	"time"

	"pkt.systems/devdeck/schema"
)

// DayKey returns the local calendar date of t.
func DayKey(t time.Time) schema.DateKey {
	return schema.DateKey(t.Format(schema.DateLayout))
}

// addDays shifts a date key by whole calendar days, independent of DST.
func addDays(key schema.DateKey, delta int) schema.DateKey {
	day, err := time.Parse(schema.DateLayout, string(key))
	if err != nil {
		return key
	}
	return schema.DateKey(day.AddDate(0, 0, delta).Format(schema.DateLayout))
}

// Apply mutates stats with event recorded at now and reports whether the
// streak advanced. The event must already be normalized.
func Apply(stats *schema.DeveloperStats, now time.Time, event schema.ActivityEvent) bool {
	if stats.DailyStats == nil {
		stats.DailyStats = make(map[schema.DateKey]*schema.DayStats)
	}
	today := DayKey(now)
	day := stats.DailyStats[today]
	if day == nil {
		day = schema.NewDayStats()
		stats.DailyStats[today] = day
	}
	if day.TimeByLanguage == nil {
		day.TimeByLanguage = make(map[schema.Language]int64)
	}

	switch event.Type {
	case schema.ActivityActiveTime:
		day.ActiveCodingTimeSeconds += event.Seconds
		day.TimeByLanguage[event.Language] += event.Seconds
	case schema.ActivitySave:
		day.FilesSaved++
	case schema.ActivityExecute:
		day.CodeExecutions++
	case schema.ActivityAIHelp:
		day.AIHelps++
	case schema.ActivityAIRefactor:
		day.AIRefactors++
	}
	return advanceStreak(stats, day, today)
}

func advanceStreak(stats *schema.DeveloperStats, day *schema.DayStats, today schema.DateKey) bool {
	goal := stats.UserGoals.DailyCodingTimeGoalSeconds
	if goal <= 0 || day.ActiveCodingTimeSeconds < goal {
		return false
	}
	streak := &stats.CodingStreak
	last := streak.LastDayCompleted
	// Keys are ISO dates, so string order is calendar order.
	if last != nil && *last >= today {
		return false
	}
	if last != nil && *last == addDays(today, -1) {
		streak.Current++
	} else {
		streak.Current = 1
	}
	if streak.Current > streak.Longest {
		streak.Longest = streak.Current
	}
	completed := today
	streak.LastDayCompleted = &completed
	return true
}
