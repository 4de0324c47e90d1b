package models

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Planning Context
//
// The AI assistant receives a read-only snapshot of the user's plan: goals
// across the four horizons, today's tasks with inferred energy demands, and
// the current energy level from the mood slider. This file assembles that
// snapshot straight from the local store — the sync layer is the source of
// the snapshot and nothing more; it never parses or acts on the reply.
// ============================================================================

// Planner sections, one per planning horizon.
const (
	SectionYearly  = "yearly"
	SectionMonthly = "monthly"
	SectionWeekly  = "weekly"
	SectionDaily   = "daily"
)

// DefaultSections lists every section migration and export cover.
var DefaultSections = []string{SectionYearly, SectionMonthly, SectionWeekly, SectionDaily}

// Well-known field names within sections. The sync layer enforces no
// schema; these are the names the planner UI writes.
const (
	FieldGoals      = "goals"
	FieldTheme      = "theme"
	FieldPriorities = "priorities"
	FieldTasks      = "tasks"
	FieldMoodEnergy = "moodEnergy"
	FieldNotes      = "notes"
	FieldSchedule   = "schedule"
	FieldHabits     = "habits"
	FieldFocus      = "focus"
	FieldReview     = "review"
)

// PlanningContext is the snapshot handed to the AI assistant.
type PlanningContext struct {
	Date            string        `json:"date"`
	UserEnergyToday string        `json:"userEnergyToday"`
	YearlyGoals     []ContextGoal `json:"yearlyGoals"`
	MonthlyGoals    []ContextGoal `json:"monthlyGoals"`
	WeeklyGoals     []ContextGoal `json:"weeklyGoals"`
	DailyTasks      []ContextTask `json:"dailyTasks"`
	AIMode          string        `json:"aiMode"`
}

// ContextGoal is one goal in the snapshot, ranked by list order.
type ContextGoal struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	PriorityRank int    `json:"priorityRank"`
	Category     string `json:"category,omitempty"`
}

// ContextTask is one daily task in the snapshot.
type ContextTask struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Due        string `json:"due,omitempty"`
	Importance string `json:"importance"`
	Energy     string `json:"energy"`
}

// storedItem is the shape the planner UI stores for goals, priorities,
// and tasks. Extra fields are ignored; only what the snapshot needs.
type storedItem struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	DueTime   string `json:"dueTime"`
}

// storedMoodEnergy is the mood/energy slider shape (both on a 1-5 scale).
type storedMoodEnergy struct {
	Mood   int `json:"mood"`
	Energy int `json:"energy"`
}

// GatherPlanningContext assembles the AI snapshot for a user from the
// local store. Missing or corrupt fields degrade to empty lists — the
// snapshot is advisory, never an error path.
func GatherPlanningContext(local *LocalStore, userID, aiMode string, now func() time.Time) PlanningContext {
	if now == nil {
		now = time.Now
	}
	if aiMode == "" {
		aiMode = "advisor"
	}
	ctx := PlanningContext{
		Date:            now().UTC().Format("2006-01-02"),
		UserEnergyToday: "med",
		YearlyGoals:     []ContextGoal{},
		MonthlyGoals:    []ContextGoal{},
		WeeklyGoals:     []ContextGoal{},
		DailyTasks:      []ContextTask{},
		AIMode:          aiMode,
	}
	if local == nil || userID == "" {
		return ctx
	}

	ctx.YearlyGoals = readGoals(local, userID, SectionYearly, FieldGoals, true)
	ctx.MonthlyGoals = readGoals(local, userID, SectionMonthly, FieldGoals, false)
	ctx.WeeklyGoals = readGoals(local, userID, SectionWeekly, FieldPriorities, false)
	ctx.DailyTasks = readTasks(local, userID)

	if raw, ok := readField(local, userID, SectionDaily, FieldMoodEnergy); ok {
		var me storedMoodEnergy
		if err := json.Unmarshal(raw, &me); err == nil && me.Energy > 0 {
			ctx.UserEnergyToday = energyLevel(me.Energy)
		}
	}

	return ctx
}

// readField reads one field's raw JSON from the local store.
func readField(local *LocalStore, userID, section, field string) (json.RawMessage, bool) {
	key, err := BuildKey(userID, section, field)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to build context key"), "section", section, "field", field)
		return nil, false
	}
	return local.Read(key)
}

// readGoals loads a goal list, dropping blank entries and ranking by list
// order. Category inference only applies to yearly goals.
func readGoals(local *LocalStore, userID, section, field string, categorize bool) []ContextGoal {
	goals := []ContextGoal{}
	raw, ok := readField(local, userID, section, field)
	if !ok {
		return goals
	}
	var items []storedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return goals
	}
	rank := 0
	for i, item := range items {
		title := strings.TrimSpace(item.Text)
		if title == "" {
			continue
		}
		rank++
		goal := ContextGoal{
			ID:           itemID(item, i),
			Title:        title,
			PriorityRank: rank,
		}
		if categorize {
			goal.Category = inferCategory(title)
		}
		goals = append(goals, goal)
	}
	return goals
}

// readTasks loads today's tasks with inferred importance and energy.
func readTasks(local *LocalStore, userID string) []ContextTask {
	tasks := []ContextTask{}
	raw, ok := readField(local, userID, SectionDaily, FieldTasks)
	if !ok {
		return tasks
	}
	var items []storedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return tasks
	}
	for i, item := range items {
		title := strings.TrimSpace(item.Text)
		if title == "" {
			continue
		}
		importance := "medium"
		if item.Completed {
			importance = "low"
		}
		tasks = append(tasks, ContextTask{
			ID:         itemID(item, i),
			Title:      title,
			Due:        item.DueTime,
			Importance: importance,
			Energy:     inferTaskEnergy(title),
		})
	}
	return tasks
}

func itemID(item storedItem, index int) int {
	if item.ID != 0 {
		return item.ID
	}
	return index
}

// Category keyword sets for yearly goal classification.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"faith", []string{"faith", "pray", "bible", "church"}},
	{"health", []string{"health", "exercise", "workout", "diet"}},
	{"career", []string{"career", "work", "job", "business"}},
	{"money", []string{"money", "finance", "save", "budget"}},
	{"relationships", []string{"relationship", "family", "friend", "marriage"}},
}

// inferCategory guesses a goal's life area from its text.
func inferCategory(text string) string {
	lower := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				return ck.category
			}
		}
	}
	return "other"
}

var (
	lowEnergyTask  = regexp.MustCompile(`(?i)rest|relax|chill|nap|sleep|meditate|pray|read|watch`)
	highEnergyTask = regexp.MustCompile(`(?i)workout|exercise|run|gym|meeting|presentation|deadline|urgent|important`)
)

// inferTaskEnergy guesses a task's energy demand from its text.
func inferTaskEnergy(text string) string {
	if lowEnergyTask.MatchString(text) {
		return "low"
	}
	if highEnergyTask.MatchString(text) {
		return "high"
	}
	return "med"
}

// energyLevel maps the 1-5 slider to the three levels the assistant uses.
func energyLevel(v int) string {
	switch {
	case v <= 2:
		return "low"
	case v >= 4:
		return "high"
	default:
		return "med"
	}
}
