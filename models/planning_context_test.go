package models

import (
	"encoding/json"
	"testing"
)

// seedField writes one field for a user into the local store.
func seedField(t *testing.T, local *LocalStore, userID, section, field, value string) {
	t.Helper()
	key, err := BuildKey(userID, section, field)
	if err != nil {
		t.Fatalf("BuildKey() error: %v", err)
	}
	if err := local.Write(key, json.RawMessage(value)); err != nil {
		t.Fatalf("Write(%q) error: %v", key, err)
	}
}

// TestGatherPlanningContext verifies the assistant snapshot assembles all
// four horizons plus the energy level.
func TestGatherPlanningContext(t *testing.T) {
	local := NewLocalStore(NewMemKV())

	seedField(t, local, "u-1", SectionYearly, FieldGoals, `[{"id":1,"text":"Pray daily"},{"id":2,"text":"Save for a house"}]`)
	seedField(t, local, "u-1", SectionMonthly, FieldGoals, `[{"id":1,"text":"Finish the report"}]`)
	seedField(t, local, "u-1", SectionWeekly, FieldPriorities, `[{"id":1,"text":"Ship the release"}]`)
	seedField(t, local, "u-1", SectionDaily, FieldTasks, `[{"id":1,"text":"Morning run"},{"id":2,"text":"Read a chapter","completed":true}]`)
	seedField(t, local, "u-1", SectionDaily, FieldMoodEnergy, `{"mood":3,"energy":5}`)

	ctx := GatherPlanningContext(local, "u-1", "", testNow)

	if ctx.Date != testDate {
		t.Errorf("Date = %q, want %q", ctx.Date, testDate)
	}
	if ctx.AIMode != "advisor" {
		t.Errorf("AIMode = %q, want advisor default", ctx.AIMode)
	}
	if ctx.UserEnergyToday != "high" {
		t.Errorf("UserEnergyToday = %q, want high (slider 5)", ctx.UserEnergyToday)
	}

	if len(ctx.YearlyGoals) != 2 {
		t.Fatalf("YearlyGoals = %v, want 2 goals", ctx.YearlyGoals)
	}
	if ctx.YearlyGoals[0].Category != "faith" {
		t.Errorf("yearly goal 1 category = %q, want faith", ctx.YearlyGoals[0].Category)
	}
	if ctx.YearlyGoals[1].Category != "money" {
		t.Errorf("yearly goal 2 category = %q, want money", ctx.YearlyGoals[1].Category)
	}
	if ctx.YearlyGoals[0].PriorityRank != 1 || ctx.YearlyGoals[1].PriorityRank != 2 {
		t.Errorf("yearly ranks = %d, %d, want list order",
			ctx.YearlyGoals[0].PriorityRank, ctx.YearlyGoals[1].PriorityRank)
	}

	if len(ctx.MonthlyGoals) != 1 || ctx.MonthlyGoals[0].Title != "Finish the report" {
		t.Errorf("MonthlyGoals = %v", ctx.MonthlyGoals)
	}
	if ctx.MonthlyGoals[0].Category != "" {
		t.Errorf("monthly goals must not be categorized, got %q", ctx.MonthlyGoals[0].Category)
	}

	if len(ctx.WeeklyGoals) != 1 || ctx.WeeklyGoals[0].Title != "Ship the release" {
		t.Errorf("WeeklyGoals = %v", ctx.WeeklyGoals)
	}

	if len(ctx.DailyTasks) != 2 {
		t.Fatalf("DailyTasks = %v, want 2 tasks", ctx.DailyTasks)
	}
	if ctx.DailyTasks[0].Energy != "high" {
		t.Errorf("run task energy = %q, want high", ctx.DailyTasks[0].Energy)
	}
	if ctx.DailyTasks[1].Energy != "low" {
		t.Errorf("read task energy = %q, want low", ctx.DailyTasks[1].Energy)
	}
	if ctx.DailyTasks[1].Importance != "low" {
		t.Errorf("completed task importance = %q, want low", ctx.DailyTasks[1].Importance)
	}
}

// TestGatherPlanningContextDegrades verifies missing and corrupt data
// yields an empty snapshot, never an error.
func TestGatherPlanningContextDegrades(t *testing.T) {
	kv := NewMemKV()
	local := NewLocalStore(kv)

	// Corrupt goals entry, below the JSON guard
	key, _ := BuildKey("u-1", SectionYearly, FieldGoals)
	if err := kv.Put(key, "{broken"); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	// Wrong-shape tasks entry
	seedField(t, local, "u-1", SectionDaily, FieldTasks, `"not a list"`)

	ctx := GatherPlanningContext(local, "u-1", "coach", testNow)

	if ctx.AIMode != "coach" {
		t.Errorf("AIMode = %q, want coach", ctx.AIMode)
	}
	if len(ctx.YearlyGoals) != 0 || len(ctx.DailyTasks) != 0 {
		t.Errorf("corrupt fields should degrade to empty: %+v", ctx)
	}
	if ctx.UserEnergyToday != "med" {
		t.Errorf("UserEnergyToday = %q, want med default", ctx.UserEnergyToday)
	}

	// Nil store degrades the same way
	empty := GatherPlanningContext(nil, "u-1", "", testNow)
	if len(empty.YearlyGoals) != 0 {
		t.Errorf("nil store should yield an empty snapshot: %+v", empty)
	}
}

// TestGatherPlanningContextSkipsBlankItems verifies whitespace-only rows
// never reach the snapshot.
func TestGatherPlanningContextSkipsBlankItems(t *testing.T) {
	local := NewLocalStore(NewMemKV())
	seedField(t, local, "u-1", SectionDaily, FieldTasks, `[{"id":1,"text":"  "},{"id":2,"text":"real task"}]`)

	ctx := GatherPlanningContext(local, "u-1", "", testNow)
	if len(ctx.DailyTasks) != 1 || ctx.DailyTasks[0].Title != "real task" {
		t.Errorf("DailyTasks = %v, want just the real task", ctx.DailyTasks)
	}
}

// TestInferCategory tests the life-area keyword classifier.
func TestInferCategory(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Read the Bible every morning", "faith"},
		{"Start a workout routine", "health"},
		{"Grow the business", "career"},
		{"Budget every month", "money"},
		{"Call family weekly", "relationships"},
		{"Learn to paint", "other"},
	}
	for _, tt := range tests {
		if got := inferCategory(tt.text); got != tt.want {
			t.Errorf("inferCategory(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

// TestInferTaskEnergy tests the task energy-demand classifier.
func TestInferTaskEnergy(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Afternoon nap", "low"},
		{"Meditate for ten minutes", "low"},
		{"Gym session", "high"},
		{"Quarterly presentation", "high"},
		{"Water the plants", "med"},
	}
	for _, tt := range tests {
		if got := inferTaskEnergy(tt.text); got != tt.want {
			t.Errorf("inferTaskEnergy(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

// TestEnergyLevel tests the 1-5 slider mapping.
func TestEnergyLevel(t *testing.T) {
	tests := []struct {
		v    int
		want string
	}{
		{1, "low"}, {2, "low"}, {3, "med"}, {4, "high"}, {5, "high"},
	}
	for _, tt := range tests {
		if got := energyLevel(tt.v); got != tt.want {
			t.Errorf("energyLevel(%d) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

// TestFallbackReply tests the canned-reply keyword routing.
func TestFallbackReply(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"prioritizing", "Help me prioritize my day",
			"What would make the biggest difference if you did it today?"},
		{"overwhelmed", "I feel overwhelmed by everything",
			"That's a lot to carry. What feels most important right now?"},
		{"tired", "I'm so tired today",
			"Your energy is valid. Want to protect some space for rest?"},
		{"default", "random message with no keywords",
			"I'm here with you. What's on your mind about today?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FallbackReply(tt.message); got != tt.want {
				t.Errorf("FallbackReply(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}
