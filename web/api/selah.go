package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"

	"planroom/models"
)

// ============================================================================
// Selah AI Proxy
//
// The planner UI never talks to the LLM vendor directly; it posts
// { message, history, context } here and receives { reply } back. This
// handler assembles the system prompt from the planning context, forwards
// the conversation to an OpenAI-compatible chat-completions endpoint, and
// keeps the vendor API key server-side.
//
// When the upstream is not configured or unreachable, the handler serves a
// canned gentle reply instead of an error — the assistant degrades to
// reflective questions rather than breaking the page.
// ============================================================================

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SelahRequest is the assistant request body from the planner UI.
type SelahRequest struct {
	Message string                 `json:"message"`
	History []ChatMessage          `json:"history,omitempty"`
	Context models.PlanningContext `json:"context,omitempty"`
}

// SelahReply is the assistant response body.
type SelahReply struct {
	Reply string `json:"reply"`
}

// maxHistoryMessages caps how much conversation history is forwarded
// upstream; older turns add cost without improving the reply.
const maxHistoryMessages = 30

// SelahHandler proxies assistant conversations to the configured upstream.
type SelahHandler struct {
	cfg        *models.Config
	httpClient *http.Client
}

// NewSelahHandler creates the assistant proxy for the given config.
func NewSelahHandler(cfg *models.Config) *SelahHandler {
	return &SelahHandler{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Chat handles POST /api/v1/selah
func (h *SelahHandler) Chat(ctx rweb.Context) error {
	var req SelahRequest
	if err := json.Unmarshal(ctx.Request().Body(), &req); err != nil {
		return writeSelahError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return writeSelahError(ctx, http.StatusBadRequest, "message is required and must be a string")
	}

	// Without an upstream key the assistant still answers, just from the
	// canned reflective replies.
	if h.cfg.OpenAIAPIKey == "" {
		return ctx.WriteJSON(SelahReply{Reply: fallbackFor(req.Message)})
	}

	reply, err := h.complete(req)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "assistant upstream failed, serving fallback"))
		return ctx.WriteJSON(SelahReply{Reply: fallbackFor(req.Message)})
	}

	return ctx.WriteJSON(SelahReply{Reply: reply})
}

// writeSelahError keeps the assistant's error contract: a bare
// { "error": "..." } object, matching what the planner UI expects.
func writeSelahError(ctx rweb.Context, status int, message string) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(map[string]string{"error": message})
}

// complete forwards the conversation to the chat-completions upstream and
// returns the assistant's text.
func (h *SelahHandler) complete(req SelahRequest) (string, error) {
	messages := make([]ChatMessage, 0, len(req.History)+2)
	messages = append(messages, ChatMessage{Role: "system", Content: buildSystemPrompt(req.Context)})

	history := req.History
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: "user", Content: req.Message})

	body, err := json.Marshal(map[string]interface{}{
		"model":       h.cfg.OpenAIModel,
		"messages":    messages,
		"temperature": 0.7,
		"max_tokens":  500, // Keep responses concise (1-3 short messages)
	})
	if err != nil {
		return "", serr.Wrap(err, "failed to marshal completion request")
	}

	httpReq, err := http.NewRequest(http.MethodPost, h.cfg.OpenAIBaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", serr.Wrap(err, "failed to create completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.cfg.OpenAIAPIKey)

	resp, err := h.httpClient.Do(httpReq)
	if err != nil {
		return "", serr.Wrap(err, "completion request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", serr.New(fmt.Sprintf("completion returned status %d", resp.StatusCode))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", serr.Wrap(err, "failed to decode completion response")
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", serr.New("no response from assistant upstream")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// Greeting detection: a bare greeting gets a conversational reply, but a
// greeting that also carries planning intent goes down the planning path.
var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(hi|hey|hello|howdy|sup|what's up|wassup|yo)\b`),
	regexp.MustCompile(`(?i)^how are you`),
	regexp.MustCompile(`(?i)^how's it going`),
	regexp.MustCompile(`(?i)^how do you do`),
	regexp.MustCompile(`(?i)^good (morning|afternoon|evening)`),
	regexp.MustCompile(`(?i)^what's good`),
}

var planningKeywords = regexp.MustCompile(`(?i)priorit|align|plan|organize|schedule|focus|help`)

// IsGreeting reports whether a message is only a greeting.
func IsGreeting(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	matched := false
	for _, p := range greetingPatterns {
		if p.MatchString(lower) {
			matched = true
			break
		}
	}
	return matched && !planningKeywords.MatchString(lower)
}

// fallbackFor picks the canned reply for a message; bare greetings get a
// greeting back rather than a planning question.
func fallbackFor(message string) string {
	if IsGreeting(message) {
		return "Hey! Good to see you. How can I help with your planning today?"
	}
	return models.FallbackReply(message)
}

// buildContextSummary renders the planning snapshot as prompt lines.
func buildContextSummary(ctx models.PlanningContext) string {
	var parts []string

	if ctx.UserEnergyToday != "" {
		parts = append(parts, "User energy today: "+ctx.UserEnergyToday)
	}
	if line := goalLine("Yearly goals", ctx.YearlyGoals); line != "" {
		parts = append(parts, line)
	}
	if line := goalLine("Monthly goals", ctx.MonthlyGoals); line != "" {
		parts = append(parts, line)
	}
	if line := goalLine("Weekly goals", ctx.WeeklyGoals); line != "" {
		parts = append(parts, line)
	}
	if len(ctx.DailyTasks) > 0 {
		tasks := make([]string, 0, len(ctx.DailyTasks))
		for _, t := range ctx.DailyTasks {
			entry := t.Title
			if t.Energy != "" {
				entry += " (" + t.Energy + " energy)"
			}
			tasks = append(tasks, entry)
		}
		parts = append(parts, "Daily tasks: "+strings.Join(tasks, ", "))
	}

	if len(parts) == 0 {
		return "No specific goals or tasks set yet."
	}
	return strings.Join(parts, "\n")
}

func goalLine(label string, goals []models.ContextGoal) string {
	if len(goals) == 0 {
		return ""
	}
	titles := make([]string, 0, len(goals))
	for _, g := range goals {
		titles = append(titles, g.Title)
	}
	return label + ": " + strings.Join(titles, ", ")
}

// buildSystemPrompt assembles the assistant's system prompt around the
// planning context summary.
func buildSystemPrompt(ctx models.PlanningContext) string {
	var b strings.Builder
	b.WriteString("You are Selah, a warm, human AI planning assistant.\n\n")
	b.WriteString("Your identity:\n")
	b.WriteString("- Name: Selah\n")
	b.WriteString("- Tone: warm, human, never preachy\n")
	b.WriteString("- Replies are short (1-3 messages max)\n")
	b.WriteString("- Never use \"you must\" or \"you should\"\n")
	b.WriteString("- Never shame or pressure\n")
	b.WriteString("- Always offer gentle choices\n\n")
	b.WriteString("Behavior rules:\n")
	b.WriteString("- If the user greets you, respond conversationally, then ask how you can help\n")
	b.WriteString("- Otherwise, help with aligned productivity: daily -> weekly -> monthly -> yearly goals\n")
	b.WriteString("- Be energy-aware when prioritizing tasks\n\n")
	b.WriteString("User's planning context:\n")
	b.WriteString(buildContextSummary(ctx))
	b.WriteString("\n\nRespond naturally and helpfully. Keep it warm, brief, and aligned.")
	return b.String()
}
