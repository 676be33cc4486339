package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/wordbot/pkg/models"
)

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func formatReminder(count int) string {
	return fmt.Sprintf("🔔 You have %d %s due for review. Send /quiz to start.", count, plural(count, "word", "words"))
}

func formatSettings(st models.UserSettings) string {
	state := "on"
	if !st.RemindersEnabled {
		state = "off"
	}
	hour := "during notification hours"
	if st.RemindHour != nil {
		hour = fmt.Sprintf("at %02d:00", *st.RemindHour)
	}
	limit := "default"
	if st.DailyLimit > 0 {
		limit = fmt.Sprintf("up to %d %s", st.DailyLimit, plural(st.DailyLimit, "word", "words"))
	}
	return fmt.Sprintf("🔔 Reminders: %s\n🕐 When: %s\n📦 Per reminder: %s", state, hour, limit)
}

// formatPrompt renders prompt number index (0-based) of total
func formatPrompt(p models.Prompt, index, total int, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "❓ %d/%d\nTranslate: %s", index+1, total, p.Question)
	if p.Deadline != nil {
		left := p.Deadline.Sub(now).Round(time.Second)
		if left < 0 {
			left = 0
		}
		fmt.Fprintf(&sb, "\n⏳ %s", left)
	}
	return sb.String()
}

func formatStart(s *models.Session, now time.Time) string {
	var header string
	if s.Mode == models.ModeBlitz && s.Deadline != nil {
		n := len(s.Prompts)
		header = fmt.Sprintf("⚡ Blitz: %d %s, %s on the clock. Go!", n, plural(n, "word", "words"), s.Deadline.Sub(s.StartedAt).Round(time.Second))
	} else {
		header = fmt.Sprintf("🎯 Quiz: %d %s. Send /stop to quit.", len(s.Prompts), plural(len(s.Prompts), "word", "words"))
	}
	p := s.CurrentPrompt()
	if p == nil {
		return header
	}
	return header + "\n\n" + formatPrompt(*p, s.Current, len(s.Prompts), now)
}

func formatFeedback(res models.AnswerResult) string {
	answer := strings.Join(res.Expected, " / ")
	switch {
	case res.Correct:
		return fmt.Sprintf("✅ Correct! %+d (score %d)", res.Points, res.Score)
	case res.TimedOut:
		return fmt.Sprintf("⌛ Too slow. Answer: %s (%+d, score %d)", answer, res.Points, res.Score)
	default:
		return fmt.Sprintf("❌ Wrong. Answer: %s (%+d, score %d)", answer, res.Points, res.Score)
	}
}

func formatSummary(r models.SessionResult) string {
	title := "🏁 Quiz complete!"
	switch {
	case r.Outcome == models.StatusExpired:
		title = "⏱ Time is up!"
	case r.Mode == models.ModeBlitz:
		title = "🏁 Blitz complete!"
	}
	return fmt.Sprintf("%s\nCorrect: %d/%d\nWrong: %d\nScore: %d\nAccuracy: %.0f%%",
		title, r.Correct, r.Total, r.Wrong(), r.Score, r.Accuracy()*100)
}

func formatStats(st models.UserStats) string {
	b := st.Breakdown
	return fmt.Sprintf(`📊 Your statistics

Words available: %d
🆕 New: %d
📖 Learning: %d
👍 Known: %d
🏆 Mastered: %d
Due now: %d

Sessions: %d (average accuracy %.0f%%)
Points: %d
Today: %d correct, %d wrong, %d added`,
		st.TotalWords, b.New, b.Learning, b.Known, b.Mastered, st.DueNow,
		st.SessionsCompleted, st.AverageScore*100, st.Points,
		st.Today.Correct, st.Today.Wrong, st.Today.Added)
}

var scopeTitles = map[models.LeaderboardScope]string{
	models.ScopeMastered: "most words mastered",
	models.ScopePoints:   "most points",
	models.ScopeDaily:    "today",
	models.ScopeWeekly:   "this week",
	models.ScopeMonthly:  "this month",
}

func formatLeaderboard(scope models.LeaderboardScope, entries []models.LeaderboardEntry, userID int64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 Top: %s\n", scopeTitles[scope])
	if len(entries) == 0 {
		sb.WriteString("\nNobody has scored yet.")
		return sb.String()
	}
	for _, e := range entries {
		name := e.Username
		if name == "" {
			name = fmt.Sprintf("user %d", e.UserID)
		}
		marker := ""
		if e.UserID == userID {
			marker = " ← you"
		}
		fmt.Fprintf(&sb, "\n%d. %s: %d%s", e.Rank, name, e.Score, marker)
	}
	return sb.String()
}
