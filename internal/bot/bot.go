package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nad-devs/Recall-sub000/internal/classifier"
	"github.com/nad-devs/Recall-sub000/internal/models"
	"github.com/nad-devs/Recall-sub000/internal/relations"
	"go.uber.org/zap"
)

type Concepts interface {
	Create(ctx context.Context, draft models.ConceptDraft) (*models.Concept, error)
	Recategorize(ctx context.Context, id string) (*models.Concept, bool, error)
	CategoryTree(ctx context.Context) []string
}

type Relations interface {
	Connect(ctx context.Context, sourceID, targetID string) error
	Disconnect(ctx context.Context, sourceID, targetID string) error
	Related(ctx context.Context, id string) ([]relations.Edge, error)
}

// Analyzer turns a raw message into a concept draft.
type Analyzer interface {
	AnalyzeContent(ctx context.Context, content string) models.ConceptDraft
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api       *tgbotapi.BotAPI
	sender    sender
	concepts  Concepts
	relations Relations
	analyzer  Analyzer
	logger    *zap.Logger
}

// New connects to Telegram. analyzer may be nil, in which case messages are
// parsed without a model.
func New(token string, concepts Concepts, rel Relations, analyzer Analyzer, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, concepts, rel, analyzer, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, concepts Concepts, rel Relations, analyzer Analyzer, logger *zap.Logger) *Bot {
	return &Bot{
		sender:    s,
		concepts:  concepts,
		relations: rel,
		analyzer:  analyzer,
		logger:    logger,
	}
}

// Start handles updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	content := message.Text
	if message.Caption != "" {
		content = message.Caption
	}
	if strings.TrimSpace(content) == "" {
		b.sendMessage(message.Chat.ID, "Send me some text to remember.")
		return
	}

	draft := b.draft(ctx, content)
	draft.ConversationID = strconv.FormatInt(message.Chat.ID, 10)

	concept, err := b.concepts.Create(ctx, draft)
	if err != nil {
		b.logger.Error("Failed to save concept",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save this concept. Please try again.")
		return
	}

	b.sendMarkdown(message.Chat.ID, message.MessageID, formatConcept(concept))
}

func (b *Bot) draft(ctx context.Context, content string) models.ConceptDraft {
	if b.analyzer == nil {
		return classifier.ParseDraft(content)
	}
	return b.analyzer.AnalyzeContent(ctx, content)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "categories":
		b.handleCategories(ctx, message)
	case "related":
		b.handleRelated(ctx, message)
	case "link":
		b.handleLink(ctx, message, true)
	case "unlink":
		b.handleLink(ctx, message, false)
	case "recategorize":
		b.handleRecategorize(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to Recall! 🧠
Send me a technical note and I'll file it into your category tree.

The first line becomes the title, "- " lines become key points.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/categories - Show the category tree
/related <id> - Show concepts related to a concept
/link <id> <id> - Relate two concepts
/unlink <id> <id> - Remove a relation between two concepts
/recategorize <id> - File a concept again`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleCategories(ctx context.Context, message *tgbotapi.Message) {
	labels := b.concepts.CategoryTree(ctx)
	if len(labels) == 0 {
		b.sendMessage(message.Chat.ID, "You don't have any categories yet.")
		return
	}
	b.sendMarkdown(message.Chat.ID, 0, formatCategories(labels))
}

func (b *Bot) handleRelated(ctx context.Context, message *tgbotapi.Message) {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" || strings.ContainsAny(id, " \t\n") {
		b.sendMessage(message.Chat.ID, "Usage: /related <id>")
		return
	}

	edges, err := b.relations.Related(ctx, id)
	if err != nil {
		b.logger.Error("Failed to get related concepts",
			zap.Error(err),
			zap.String("concept_id", id))
		b.sendErrorMessage(message.Chat.ID, describeRelationError(err))
		return
	}
	if len(edges) == 0 {
		b.sendMessage(message.Chat.ID, "No related concepts yet.")
		return
	}
	b.sendMarkdown(message.Chat.ID, 0, formatEdges(edges))
}

func (b *Bot) handleLink(ctx context.Context, message *tgbotapi.Message, connect bool) {
	sourceID, targetID, err := parsePair(message.CommandArguments())
	if err != nil {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("Usage: /%s <id> <id>", message.Command()))
		return
	}

	op, done := b.relations.Disconnect, "Unlinked."
	if connect {
		op, done = b.relations.Connect, "Linked."
	}

	if err := op(ctx, sourceID, targetID); err != nil {
		b.logger.Error("Failed to update relation",
			zap.Error(err),
			zap.String("command", message.Command()),
			zap.String("source", sourceID),
			zap.String("target", targetID))
		b.sendErrorMessage(message.Chat.ID, describeRelationError(err))
		return
	}
	if !connect && b.stillSimilar(ctx, sourceID, targetID) {
		done = "Unlinked. It will still show under /related as a similar concept."
	}
	b.sendMessage(message.Chat.ID, done)
}

// stillSimilar reports whether target remains an automatic edge of source.
func (b *Bot) stillSimilar(ctx context.Context, sourceID, targetID string) bool {
	edges, err := b.relations.Related(ctx, sourceID)
	if err != nil {
		b.logger.Warn("Failed to list relations after unlink",
			zap.Error(err),
			zap.String("concept_id", sourceID))
		return false
	}
	for _, e := range edges {
		if e.Kind == relations.Auto && e.ID == targetID {
			return true
		}
	}
	return false
}

func (b *Bot) handleRecategorize(ctx context.Context, message *tgbotapi.Message) {
	id := strings.TrimSpace(message.CommandArguments())
	if id == "" {
		b.sendMessage(message.Chat.ID, "Usage: /recategorize <id>")
		return
	}

	concept, changed, err := b.concepts.Recategorize(ctx, id)
	if err != nil {
		b.logger.Error("Failed to recategorize concept",
			zap.Error(err),
			zap.String("concept_id", id))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't recategorize this concept.")
		return
	}
	if !changed {
		b.sendMessage(message.Chat.ID, "Category unchanged: "+concept.CategoryLabel())
		return
	}
	b.sendMessage(message.Chat.ID, "Moved to "+concept.CategoryLabel())
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendMarkdown(chatID int64, replyToID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.ReplyToMessageID = replyToID
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func parsePair(args string) (string, string, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", "", errors.New("expected two concept ids")
	}
	return fields[0], fields[1], nil
}
