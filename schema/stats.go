package schema

// DefaultDailyGoalSeconds is the goal written into a fresh ledger.
const DefaultDailyGoalSeconds int64 = 3600

// DayStats holds the counters for one calendar day.
type DayStats struct {
	ActiveCodingTimeSeconds int64              `json:"activeCodingTimeSeconds"`
	FilesSaved              int64              `json:"filesSaved"`
	CodeExecutions          int64              `json:"codeExecutions"`
	AIHelps                 int64              `json:"aiHelps"`
	AIRefactors             int64              `json:"aiRefactors"`
	TimeByLanguage          map[Language]int64 `json:"timeByLanguage"`
}

// Goals configures the daily targets.
type Goals struct {
	DailyCodingTimeGoalSeconds int64 `json:"dailyCodingTimeGoalSeconds"`
}

// Streak tracks consecutive days the coding goal was met.
type Streak struct {
	Current          int      `json:"current"`
	Longest          int      `json:"longest"`
	LastDayCompleted *DateKey `json:"lastDayCompleted"`
}

// DeveloperStats is the persisted ledger document.
type DeveloperStats struct {
	DailyStats   map[DateKey]*DayStats `json:"dailyStats"`
	UserGoals    Goals                 `json:"userGoals"`
	CodingStreak Streak                `json:"codingStreak"`
}

// DefaultDeveloperStats returns an empty ledger with the default goal.
func DefaultDeveloperStats() DeveloperStats {
	return DeveloperStats{
		DailyStats: make(map[DateKey]*DayStats),
		UserGoals: Goals{
			DailyCodingTimeGoalSeconds: DefaultDailyGoalSeconds,
		},
	}
}

// NewDayStats returns a zeroed day record.
func NewDayStats() *DayStats {
	return &DayStats{TimeByLanguage: make(map[Language]int64)}
}

// Clone returns a deep copy of the ledger document.
func (s DeveloperStats) Clone() DeveloperStats {
	out := DeveloperStats{
		DailyStats:   make(map[DateKey]*DayStats, len(s.DailyStats)),
		UserGoals:    s.UserGoals,
		CodingStreak: s.CodingStreak,
	}
	if s.CodingStreak.LastDayCompleted != nil {
		day := *s.CodingStreak.LastDayCompleted
		out.CodingStreak.LastDayCompleted = &day
	}
	for key, day := range s.DailyStats {
		if day == nil {
			continue
		}
		copied := *day
		copied.TimeByLanguage = make(map[Language]int64, len(day.TimeByLanguage))
		for lang, secs := range day.TimeByLanguage {
			copied.TimeByLanguage[lang] = secs
		}
		out.DailyStats[key] = &copied
	}
	return out
}
