package notify

import (
	"context"
	"errors"
	"time"

	"minex/internal/config"
	"minex/internal/models"
	"minex/internal/util"

	"github.com/go-telegram/bot"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var log = config.InitLogger()

var printer = message.NewPrinter(language.English)

type Sender interface {
	Send(ctx context.Context, text string) error
}

// TelegramSender posts messages to the admin chat.
type TelegramSender struct {
	bot    *bot.Bot
	chatId int64
}

func NewTelegramSender(token string, chatId int64) (*TelegramSender, error) {
	if token == "" || chatId == 0 {
		return nil, errors.New("telegram token and admin chat id are required")
	}
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: b, chatId: chatId}, nil
}

func (s *TelegramSender) Send(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: s.chatId,
		Text:   text,
	})
	return err
}

// LogSender writes notifications to the log when no chat is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, text string) error {
	log.Infoln("Notification:", text)
	return nil
}

// FormatRun renders a finished distribution run for admins.
func FormatRun(res *models.DistributionResult) string {
	return printer.Sprintf(
		"ROI distribution %s (%s)\nStakes processed: %d\nCredits: %d\nTotal ROI: %s\nCompleted stakes: %d\nFailures: %d\nTook: %v",
		util.FormatDay(res.AsOf),
		res.Trigger,
		res.StakesProcessed,
		res.Credits,
		util.FormatMoney(res.TotalROI),
		res.StakesCompleted,
		res.Failures,
		res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond),
	)
}

// Run forwards stake completions and run results to sender until ctx is done or both channels are closed.
// Send failures are logged and the message dropped.
func Run(
	ctx context.Context,
	sender Sender,
	stakes <-chan *models.NotificationStake,
	runs <-chan *models.DistributionResult,
) {
	for stakes != nil || runs != nil {
		var text string
		select {
		case <-ctx.Done():
			return
		case n, ok := <-stakes:
			if !ok {
				stakes = nil
				continue
			}
			text = n.Msg
		case res, ok := <-runs:
			if !ok {
				runs = nil
				continue
			}
			text = FormatRun(res)
		}

		if err := sender.Send(ctx, text); err != nil {
			log.Error("Failed to send notification: ", err)
		}
	}
	log.Infoln("Notification channels closed")
}
