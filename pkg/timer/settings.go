package timer

// Settings holds the pomodoro durations and cycle configuration. All
// durations are in seconds.
type Settings struct {
	FocusDuration           int `json:"focus_duration"`
	ShortBreakDuration      int `json:"short_break_duration"`
	LongBreakDuration       int `json:"long_break_duration"`
	PomodorosUntilLongBreak int `json:"pomodoros_until_long_break"`
	FocusReminderInterval   int `json:"focus_reminder_interval"`
}

// DefaultSettings returns the classic 25/5/15 pomodoro configuration with a
// long break every 4 pomodoros and a focus reminder every 5 minutes.
func DefaultSettings() Settings {
	return Settings{
		FocusDuration:           25 * 60,
		ShortBreakDuration:      5 * 60,
		LongBreakDuration:       15 * 60,
		PomodorosUntilLongBreak: 4,
		FocusReminderInterval:   5 * 60,
	}
}

// SettingsUpdate carries a partial settings change; nil fields are left
// untouched.
type SettingsUpdate struct {
	FocusDuration           *int `json:"focus_duration"`
	ShortBreakDuration      *int `json:"short_break_duration"`
	LongBreakDuration       *int `json:"long_break_duration"`
	PomodorosUntilLongBreak *int `json:"pomodoros_until_long_break"`
}

// BreakActivity is a suggested activity for a break, optionally with a robot
// demo gesture.
type BreakActivity struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"duration_seconds"`
	RobotDemo       bool   `json:"robot_demo"`
}

// DefaultBreakActivities is the catalog a break activity is drawn from,
// uniformly at random.
var DefaultBreakActivities = []BreakActivity{
	{Name: "Deep Breathing", Description: "Take 5 deep breaths, in through your nose and out through your mouth", DurationSeconds: 60, RobotDemo: true},
	{Name: "Neck Stretches", Description: "Gently roll your head side to side and front to back", DurationSeconds: 60, RobotDemo: true},
	{Name: "Eye Rest", Description: "Look at something 20 feet away for 20 seconds", DurationSeconds: 30, RobotDemo: false},
	{Name: "Shoulder Rolls", Description: "Roll your shoulders backwards 10 times, then forwards 10 times", DurationSeconds: 45, RobotDemo: true},
	{Name: "Stand & Stretch", Description: "Stand up, reach for the ceiling, then touch your toes", DurationSeconds: 60, RobotDemo: true},
	{Name: "Hydration Break", Description: "Drink a glass of water", DurationSeconds: 30, RobotDemo: false},
	{Name: "Quick Walk", Description: "Walk around your space for a minute", DurationSeconds: 60, RobotDemo: false},
	{Name: "Wrist Circles", Description: "Rotate your wrists 10 times in each direction", DurationSeconds: 30, RobotDemo: true},
}
