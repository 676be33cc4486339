package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/example/wordbot/internal/backup"
	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/internal/excel"
	"github.com/example/wordbot/internal/quiz"
	"github.com/example/wordbot/internal/stats"
	"github.com/example/wordbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Callback data
const (
	cbMenu        = "menu"
	cbQuiz        = "quiz"
	cbBlitz       = "blitz"
	cbBlitzBudget = "blitz:"
	cbStats       = "stats"
	cbTop         = "top:"
	cbAdd         = "add"
	cbStop        = "stop"
	cbDeleteGroup = "delgroup:"
)

const maxUploadSize = 5 << 20

const helpText = `Welcome to the vocabulary bot! 🎓

/quiz [group] - practise due and new words
/blitz [1m|3m|5m] - timed round, answer fast
/stop - stop the current round
/add - add words, one "word - translation" per line
/delword word - delete one of your words
/groups - list your groups
/newgroup name - create a group
/addto name - add words to a group
/renamegroup old -> new - rename a group
/delgroup name - delete a group and its words
/import - upload an .xlsx, .csv or backup .json file
/export - download your words as .xlsx
/backup - download your full progress
/stats - your statistics
/top [mastered|points|daily|weekly|monthly] - leaderboards
/remind [on|off|0-23|any|limit N|now] - reminder settings`

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var from *tgbotapi.User
	switch {
	case update.Message != nil:
		from = update.Message.From
	case update.CallbackQuery != nil:
		from = update.CallbackQuery.From
	}
	if from == nil {
		return
	}

	if !b.limiter.allow(from.ID, b.now()) {
		b.log.WithField("user_id", from.ID).Debug("rate limited, dropping update")
		return
	}
	if err := b.svc.Store.Users.Ensure(ctx, from.ID, from.UserName, b.now()); err != nil {
		b.log.WithError(err).WithField("user_id", from.ID).Error("failed to register user")
		return
	}

	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
		return
	}
	b.handleCallbackQuery(ctx, update.CallbackQuery)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	if msg.IsCommand() {
		b.setState(userID, "")
		args := strings.TrimSpace(msg.CommandArguments())
		switch msg.Command() {
		case "start", "help":
			b.reply(chatID, helpText, b.MainMenuButtons()...)
		case "menu":
			b.reply(chatID, "Main Menu - choose an option:", b.MainMenuButtons()...)
		case "quiz":
			b.startSession(ctx, chatID, msg.From, models.ModeQuiz, args)
		case "blitz":
			b.startSession(ctx, chatID, msg.From, models.ModeBlitz, args)
		case "stop":
			b.handleStop(ctx, chatID, userID)
		case "stats":
			b.handleStats(ctx, chatID, userID)
		case "top":
			b.handleTop(ctx, chatID, userID, args)
		case "add":
			if args == "" {
				b.setState(userID, stateAwaitingWords)
				b.reply(chatID, "Send me your words, one per line:\nword - translation\n\nExample:\nhello - salom\nbook: kitob")
				return
			}
			b.addWords(ctx, chatID, userID, nil, args)
		case "addto":
			b.handleAddTo(ctx, chatID, userID, args)
		case "import":
			b.setState(userID, stateAwaitingDocument)
			b.reply(chatID, "Send an .xlsx or .csv file with columns source, target, example, group, variants.\nA .json file from /backup restores your progress.")
		case "export":
			b.handleExport(ctx, chatID, userID)
		case "backup":
			b.handleBackup(ctx, chatID, userID)
		case "delword":
			b.handleDeleteWord(ctx, chatID, userID, args)
		case "groups":
			b.handleGroups(ctx, chatID, userID)
		case "newgroup":
			b.handleNewGroup(ctx, chatID, userID, args)
		case "renamegroup":
			b.handleRenameGroup(ctx, chatID, userID, args)
		case "delgroup":
			b.handleDeleteGroupPrompt(ctx, chatID, userID, args)
		case "remind":
			b.handleRemind(ctx, chatID, userID, args)
		case "admin_stats":
			if !b.isAdmin(userID) {
				b.reply(chatID, "This command is only available for administrators.")
				return
			}
			b.handleAdminStats(ctx, chatID)
		default:
			b.reply(chatID, "Unknown command. Use /help to see what I can do.", b.MainMenuButtons()...)
		}
		return
	}

	switch p := b.takeState(userID); p.state {
	case stateAwaitingWords:
		b.addWords(ctx, chatID, userID, p.groupID, msg.Text)
		return
	case stateAwaitingDocument:
		if msg.Document != nil {
			b.importDocument(ctx, chatID, userID, msg.Document)
			return
		}
	}

	if msg.Text == "" {
		return
	}
	b.handleAnswer(ctx, chatID, userID, msg.Text, b.sentAt(msg))
}

// sentAt is when the user sent msg, to Telegram's one-second precision.
func (b *Bot) sentAt(msg *tgbotapi.Message) time.Time {
	if msg.Date == 0 {
		return b.now()
	}
	return msg.Time()
}

// handleCallbackQuery handles callback queries from buttons
func (b *Bot) handleCallbackQuery(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Debug("failed to answer callback")
	}
	userID := cb.From.ID
	chatID := userID
	if cb.Message != nil && cb.Message.Chat != nil {
		chatID = cb.Message.Chat.ID
	}

	switch data := cb.Data; {
	case data == cbMenu:
		b.reply(chatID, "Main Menu - choose an option:", b.MainMenuButtons()...)
	case data == cbQuiz:
		b.startSession(ctx, chatID, cb.From, models.ModeQuiz, "")
	case data == cbBlitz:
		var row []MenuButton
		for _, d := range b.svc.Engine.Config().BlitzBudgets {
			row = append(row, MenuButton{Text: "⏱ " + d.String(), CallbackData: cbBlitzBudget + d.String()})
		}
		b.reply(chatID, "How long?", row)
	case strings.HasPrefix(data, cbBlitzBudget):
		b.startSession(ctx, chatID, cb.From, models.ModeBlitz, strings.TrimPrefix(data, cbBlitzBudget))
	case data == cbStats:
		b.handleStats(ctx, chatID, userID)
	case strings.HasPrefix(data, cbTop):
		b.handleTop(ctx, chatID, userID, strings.TrimPrefix(data, cbTop))
	case data == cbAdd:
		b.setState(userID, stateAwaitingWords)
		b.reply(chatID, "Send me your words, one per line:\nword - translation")
	case data == cbStop:
		b.handleStop(ctx, chatID, userID)
	case strings.HasPrefix(data, cbDeleteGroup):
		b.deleteGroup(ctx, chatID, userID, strings.TrimPrefix(data, cbDeleteGroup))
	default:
		b.log.WithField("data", data).Debug("unknown callback")
	}
}

func (b *Bot) startSession(ctx context.Context, chatID int64, from *tgbotapi.User, mode models.Mode, args string) {
	req := quiz.StartRequest{UserID: from.ID, Username: from.UserName, At: b.now()}

	var (
		sess *models.Session
		err  error
	)
	if mode == models.ModeBlitz {
		if args != "" {
			budget, perr := time.ParseDuration(args)
			if perr != nil {
				b.reply(chatID, fmt.Sprintf("I don't understand %q. Try /blitz 3m.", args))
				return
			}
			req.Budget = budget
		}
		sess, err = b.svc.Engine.StartBlitz(ctx, req)
	} else {
		if args != "" {
			group, gerr := b.svc.Store.Groups.GetByName(ctx, from.ID, args)
			if gerr != nil {
				b.replyError(chatID, from.ID, gerr, fmt.Sprintf("You have no group named %q.", args))
				return
			}
			req.GroupID = &group.ID
		}
		sess, err = b.svc.Engine.StartQuiz(ctx, req)
	}

	switch {
	case errors.Is(err, models.ErrInsufficientWords):
		b.reply(chatID, "You have no words to practise yet. Add some with /add.", []MenuButton{{Text: "📝 Add words", CallbackData: cbAdd}})
	case errors.Is(err, models.ErrValidation) && mode == models.ModeBlitz:
		b.reply(chatID, fmt.Sprintf("Blitz length must be one of %v.", b.svc.Engine.Config().BlitzBudgets))
	case err != nil:
		b.replyError(chatID, from.ID, err, "")
	default:
		b.reply(chatID, formatStart(sess, b.now()))
	}
}

func (b *Bot) handleAnswer(ctx context.Context, chatID, userID int64, text string, sentAt time.Time) {
	sess, err := b.svc.Engine.ActiveSession(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		b.reply(chatID, "No round is running. Start one:", b.MainMenuButtons()...)
		return
	}
	if err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}

	// A truncated date may fall before the prompt was shown
	if p := sess.CurrentPrompt(); p != nil && p.IssuedAt != nil && sentAt.Before(*p.IssuedAt) {
		sentAt = *p.IssuedAt
	}

	res, err := b.svc.Engine.SubmitAnswer(ctx, quiz.SubmitRequest{
		SessionID:   sess.ID,
		UserID:      userID,
		PromptIndex: sess.Current,
		Text:        text,
		SubmittedAt: sentAt,
	})
	switch {
	case errors.Is(err, models.ErrSessionExpired):
		b.reply(chatID, "⏱ Time is up! Your results are on the way.")
		return
	case errors.Is(err, models.ErrSessionConflict):
		b.log.WithFields(logrus.Fields{"user_id": userID, "session_id": sess.ID}).Debug("duplicate answer ignored")
		b.reply(chatID, "That answer was ignored, the question had already moved on.")
		return
	case errors.Is(err, models.ErrSessionComplete), errors.Is(err, models.ErrNotFound):
		b.reply(chatID, "That round is over.", b.MainMenuButtons()...)
		return
	case err != nil:
		b.replyError(chatID, userID, err, "")
		return
	}

	out := formatFeedback(res)
	if res.Next != nil {
		out += "\n\n" + formatPrompt(*res.Next, sess.Current+1, len(sess.Prompts), b.now())
	}
	if res.Summary != nil {
		out += "\n\n" + formatSummary(*res.Summary)
		b.reply(chatID, out, b.MainMenuButtons()...)
		return
	}
	b.reply(chatID, out)
}

func (b *Bot) handleStop(ctx context.Context, chatID, userID int64) {
	sess, err := b.svc.Engine.ActiveSession(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		b.reply(chatID, "Nothing to stop.")
		return
	}
	if err == nil {
		err = b.svc.Engine.Abandon(ctx, sess.ID, userID)
	}
	if err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}
	b.reply(chatID, fmt.Sprintf("Stopped. You answered %d, %d correct. Progress on those words is kept.", sess.Answered, sess.Correct), b.MainMenuButtons()...)
}

func (b *Bot) handleStats(ctx context.Context, chatID, userID int64) {
	st, err := b.svc.Stats.UserStats(ctx, userID, b.now())
	if err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}
	b.reply(chatID, formatStats(st), b.MainMenuButtons()...)
}

func (b *Bot) handleTop(ctx context.Context, chatID, userID int64, args string) {
	scope, err := stats.ParseScope(strings.ToLower(args))
	if err != nil {
		b.reply(chatID, "Use /top mastered, points, daily, weekly or monthly.")
		return
	}
	entries, err := b.svc.Stats.Leaderboard(ctx, stats.LeaderboardQuery{Scope: scope, AsOf: b.now()})
	if err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}
	b.reply(chatID, formatLeaderboard(scope, entries, userID), []MenuButton{
		{Text: "Mastered", CallbackData: cbTop + string(models.ScopeMastered)},
		{Text: "Points", CallbackData: cbTop + string(models.ScopePoints)},
		{Text: "Week", CallbackData: cbTop + string(models.ScopeWeekly)},
	})
}

func (b *Bot) addWords(ctx context.Context, chatID, userID int64, groupID *int64, text string) {
	lines := strings.Split(text, "\n")
	if len(lines) > b.cfg.MaxLinesPerAdd {
		b.reply(chatID, fmt.Sprintf("Please send at most %d lines at a time.", b.cfg.MaxLinesPerAdd))
		return
	}
	added, errs := excel.AddWordsFromLines(ctx, b.svc.Store, userID, groupID, lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Added %d %s.", added, plural(added, "word", "words"))
	for i, err := range errs {
		if i == 5 {
			fmt.Fprintf(&sb, "\n…and %d more problems", len(errs)-i)
			break
		}
		fmt.Fprintf(&sb, "\n⚠️ %v", err)
	}
	b.reply(chatID, sb.String(), b.MainMenuButtons()...)
}

func (b *Bot) importDocument(ctx context.Context, chatID, userID int64, doc *tgbotapi.Document) {
	if doc.FileSize > maxUploadSize {
		b.reply(chatID, "That file is too large.")
		return
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(doc.FileName), "."))
	if ext != excel.FormatXLSX && ext != excel.FormatCSV && ext != "json" {
		b.reply(chatID, "Please send an .xlsx, .csv or .json file.")
		return
	}

	data, err := b.download(ctx, doc.FileID)
	if err != nil {
		b.replyError(chatID, userID, err, "I could not download that file.")
		return
	}

	if ext == "json" {
		dump, err := backup.Decode(bytes.NewReader(data))
		if err == nil {
			var report backup.ImportReport
			report, err = b.svc.Backup.Restore(ctx, userID, dump)
			if err == nil {
				b.reply(chatID, fmt.Sprintf("Restored %d words and %d progress records, skipped %d.",
					report.Words, report.Progress, len(report.Skipped)))
				return
			}
		}
		b.replyError(chatID, userID, err, "That backup could not be restored.")
		return
	}

	cfg := excel.DefaultImportConfig()
	cfg.Reader = bytes.NewReader(data)
	cfg.Format = ext
	res, err := excel.ImportWords(ctx, b.svc.Store, userID, cfg)
	if err != nil {
		b.replyError(chatID, userID, err, "That file could not be read.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Imported %d rows: %d new, %d updated, %d groups created.",
		res.TotalProcessed, res.Created, res.Updated, res.GroupsCreated)
	for i, rowErr := range res.Errors {
		if i == 5 {
			fmt.Fprintf(&sb, "\n…and %d more problems", len(res.Errors)-i)
			break
		}
		fmt.Fprintf(&sb, "\n⚠️ %v", rowErr)
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", fileID, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxUploadSize))
}

func (b *Bot) handleExport(ctx context.Context, chatID, userID int64) {
	var buf bytes.Buffer
	n, err := excel.ExportWords(ctx, b.svc.Store, userID, nil, &buf)
	if err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}
	if n == 0 {
		b.reply(chatID, "You have not added any words yet.")
		return
	}
	b.sendDocument(chatID, "words.xlsx", buf.Bytes(), fmt.Sprintf("%d %s", n, plural(n, "word", "words")))
}

func (b *Bot) handleBackup(ctx context.Context, chatID, userID int64) {
	dump, err := b.svc.Backup.Dump(ctx, userID)
	if err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}
	var buf bytes.Buffer
	if err := backup.Encode(&buf, dump); err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}
	name := fmt.Sprintf("wordbot-backup-%s.json", b.now().UTC().Format("20060102-150405"))
	b.sendDocument(chatID, name, buf.Bytes(), "Send this file back with /import to restore it.")
}

// handleRemind shows or changes reminder settings; "now" sends a reminder at once
func (b *Bot) handleRemind(ctx context.Context, chatID, userID int64, args string) {
	fields := strings.Fields(strings.ToLower(args))
	if len(fields) > 0 && fields[0] == "now" {
		b.remindNow(ctx, chatID, userID)
		return
	}

	st, err := b.svc.Store.Settings.Get(ctx, userID)
	if err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}
	if len(fields) == 0 {
		b.reply(chatID, formatSettings(st))
		return
	}

	usage := "Use /remind on, off, an hour 0-23, any, limit N or now."
	switch fields[0] {
	case "on":
		st.RemindersEnabled = true
	case "off":
		st.RemindersEnabled = false
	case "any":
		st.RemindHour = nil
	case "limit":
		if len(fields) != 2 {
			b.reply(chatID, usage)
			return
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			b.reply(chatID, usage)
			return
		}
		st.DailyLimit = n
	default:
		hour, err := strconv.Atoi(fields[0])
		if err != nil {
			b.reply(chatID, usage)
			return
		}
		st.RemindHour = &hour
		st.RemindersEnabled = true
	}
	st.UpdatedAt = b.now()
	if err := b.svc.Store.Settings.Save(ctx, &st); err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}
	b.reply(chatID, "Saved.\n\n"+formatSettings(st))
}

func (b *Bot) remindNow(ctx context.Context, chatID, userID int64) {
	due, err := b.svc.Store.Progress.CountDue(ctx, userID, b.now())
	if err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}
	if due == 0 || b.reminders == nil {
		b.reply(chatID, fmt.Sprintf("%d %s due right now.", due, plural(due, "word is", "words are")))
		return
	}
	if err := b.reminders.RunManualCheck(ctx, userID); err != nil {
		b.replyError(chatID, userID, err, "")
	}
}

func (b *Bot) handleAdminStats(ctx context.Context, chatID int64) {
	users, err := b.svc.Store.Users.GetAll(ctx)
	if err != nil {
		b.replyError(chatID, 0, err, "")
		return
	}
	shared, err := b.svc.Store.Words.Count(ctx, database.WordFilter{UserID: models.SharedOwner, OwnedOnly: true})
	if err != nil {
		b.replyError(chatID, 0, err, "")
		return
	}
	due := "n/a"
	if b.reminders != nil {
		reminders, err := b.reminders.DueReminders(ctx, b.now())
		if err != nil {
			b.replyError(chatID, 0, err, "")
			return
		}
		due = strconv.Itoa(len(reminders))
	}
	b.reply(chatID, fmt.Sprintf("System Statistics\n\nTotal users: %d\nShared words: %d\nUsers with due words: %s\nServer time: %s",
		len(users), shared, due, b.now().In(b.cfg.Location).Format("2006-01-02 15:04:05")))
}

// replyError logs err and sends text, or a generic apology when text is empty
func (b *Bot) replyError(chatID, userID int64, err error, text string) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr) && text == "":
		text = "⚠️ " + verr.Error()
	case text == "":
		text = "Something went wrong, please try again later."
	}
	if !errors.Is(err, models.ErrNotFound) && !errors.Is(err, models.ErrValidation) {
		b.log.WithError(err).WithField("user_id", userID).Error("request failed")
	}
	b.reply(chatID, text)
}
