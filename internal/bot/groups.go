package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/wordbot/internal/database"
	"github.com/example/wordbot/pkg/models"
	"github.com/samber/lo"
)

func (b *Bot) handleGroups(ctx context.Context, chatID, userID int64) {
	groups, err := b.svc.Store.Groups.Summaries(ctx, userID)
	if err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}
	if len(groups) == 0 {
		b.reply(chatID, "You have no groups yet. Create one with /newgroup name.")
		return
	}
	var sb strings.Builder
	sb.WriteString("📂 Your groups:\n")
	for _, g := range groups {
		fmt.Fprintf(&sb, "\n• %s (%d %s)", g.Name, g.Words, plural(g.Words, "word", "words"))
	}
	sb.WriteString("\n\n/quiz name practises one group, /addto name adds words to it.")
	b.reply(chatID, sb.String())
}

func (b *Bot) handleNewGroup(ctx context.Context, chatID, userID int64, name string) {
	if name == "" {
		b.reply(chatID, "Use /newgroup name.")
		return
	}
	g := &models.Group{OwnerID: userID, Name: name, CreatedAt: b.now()}
	err := b.svc.Store.Groups.Create(ctx, g)
	switch {
	case errors.Is(err, database.ErrDuplicate):
		b.reply(chatID, fmt.Sprintf("You already have a group named %q.", g.Name))
	case err != nil:
		b.replyError(chatID, userID, err, "")
	default:
		b.reply(chatID, fmt.Sprintf("Created group %q. Fill it with /addto %s.", g.Name, g.Name))
	}
}

func (b *Bot) handleAddTo(ctx context.Context, chatID, userID int64, name string) {
	if name == "" {
		b.reply(chatID, "Use /addto group name.")
		return
	}
	g, err := b.svc.Store.Groups.GetByName(ctx, userID, name)
	if err != nil {
		b.replyError(chatID, userID, err, fmt.Sprintf("You have no group named %q.", name))
		return
	}
	b.expect(userID, pending{state: stateAwaitingWords, groupID: &g.ID})
	b.reply(chatID, fmt.Sprintf("Send the words for %q, one per line:\nword - translation", g.Name))
}

func (b *Bot) handleRenameGroup(ctx context.Context, chatID, userID int64, args string) {
	from, to, ok := strings.Cut(args, "->")
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if !ok || from == "" || to == "" {
		b.reply(chatID, "Use /renamegroup old name -> new name.")
		return
	}
	g, err := b.svc.Store.Groups.GetByName(ctx, userID, from)
	if err != nil {
		b.replyError(chatID, userID, err, fmt.Sprintf("You have no group named %q.", from))
		return
	}
	err = b.svc.Store.Groups.Rename(ctx, userID, g.ID, to)
	switch {
	case errors.Is(err, database.ErrDuplicate):
		b.reply(chatID, fmt.Sprintf("You already have a group named %q.", to))
	case err != nil:
		b.replyError(chatID, userID, err, "")
	default:
		b.reply(chatID, fmt.Sprintf("Renamed %q to %q.", g.Name, to))
	}
}

func (b *Bot) handleDeleteGroupPrompt(ctx context.Context, chatID, userID int64, name string) {
	if name == "" {
		b.reply(chatID, "Use /delgroup name.")
		return
	}
	g, err := b.svc.Store.Groups.GetByName(ctx, userID, name)
	if err != nil {
		b.replyError(chatID, userID, err, fmt.Sprintf("You have no group named %q.", name))
		return
	}
	b.reply(chatID, fmt.Sprintf("Delete group %q and all its words? Progress on them is lost.", g.Name), []MenuButton{
		{Text: "🗑 Delete", CallbackData: cbDeleteGroup + strconv.FormatInt(g.ID, 10)},
		{Text: "Cancel", CallbackData: cbMenu},
	})
}

func (b *Bot) deleteGroup(ctx context.Context, chatID, userID int64, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		b.log.WithField("data", rawID).Debug("bad group id in callback")
		return
	}
	var words int
	err = b.svc.Store.WithinTx(ctx, func(tx *database.Store) error {
		var err error
		words, err = tx.Groups.Delete(ctx, userID, id)
		return err
	})
	if err != nil {
		b.replyError(chatID, userID, err, lo.Ternary(errors.Is(err, models.ErrNotFound), "That group is already gone.", ""))
		return
	}
	b.reply(chatID, fmt.Sprintf("Deleted the group and %d %s.", words, plural(words, "word", "words")), b.MainMenuButtons()...)
}

// handleDeleteWord removes every owned word whose source matches, ignoring case
func (b *Bot) handleDeleteWord(ctx context.Context, chatID, userID int64, source string) {
	if source == "" {
		b.reply(chatID, "Use /delword word.")
		return
	}
	words, err := b.svc.Store.Words.List(ctx, database.WordFilter{UserID: userID, OwnedOnly: true})
	if err != nil {
		b.replyError(chatID, userID, err, "")
		return
	}
	matches := lo.Filter(words, func(w models.Word, _ int) bool {
		return strings.EqualFold(w.Source, source)
	})
	if len(matches) == 0 {
		b.reply(chatID, fmt.Sprintf("You have no word %q.", source))
		return
	}
	for _, w := range matches {
		if err := b.svc.Store.Words.Delete(ctx, userID, w.ID); err != nil {
			b.replyError(chatID, userID, err, "")
			return
		}
	}
	b.reply(chatID, fmt.Sprintf("Deleted %q (%d %s).", matches[0].Source, len(matches), plural(len(matches), "entry", "entries")))
}
