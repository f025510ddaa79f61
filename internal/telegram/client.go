// Пакет telegram — адаптер Telegram Bot API на telebot.
//
// Client принимает обновления через long polling, переводит их в события
// bot.Router и реализует исходящие интерфейсы bot.Messenger и
// service.Deliverer поверх одного экземпляра *tele.Bot.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/SanchoysArt/sanchofile/internal/bot"
	"github.com/SanchoysArt/sanchofile/internal/domain/model"
	"github.com/SanchoysArt/sanchofile/internal/service"
)

// Options — параметры подключения к Bot API.
type Options struct {
	Token string
	// APIURL — адрес Bot API; пустой — api.telegram.org
	APIURL string
	// PollTimeout — таймаут long polling
	PollTimeout time.Duration
	// HandlerTimeout — ограничение на обработку одного обновления
	HandlerTimeout time.Duration
}

// Client — адаптер Telegram.
type Client struct {
	bot            *tele.Bot
	handlerTimeout time.Duration
	polling        atomic.Bool
	logger         *slog.Logger
}

var (
	_ bot.Messenger     = (*Client)(nil)
	_ service.Deliverer = (*Client)(nil)
)

// New создаёт клиента и проверяет токен запросом getMe.
func New(opts Options, logger *slog.Logger) (*Client, error) {
	c := &Client{
		handlerTimeout: opts.HandlerTimeout,
		logger:         logger.With(slog.String("component", "telegram")),
	}
	if c.handlerTimeout <= 0 {
		c.handlerTimeout = 30 * time.Second
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  opts.Token,
		URL:    opts.APIURL,
		Poller: &tele.LongPoller{Timeout: opts.PollTimeout, AllowedUpdates: []string{"message"}},
		// Обновления обрабатываются строго по одному
		Synchronous: true,
		OnError: func(err error, tc tele.Context) {
			attrs := []any{slog.String("error", err.Error())}
			if tc != nil && tc.Sender() != nil {
				attrs = append(attrs, slog.Int64("user_id", tc.Sender().ID))
			}
			c.logger.Error("Ошибка обработки обновления", attrs...)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к Telegram Bot API: %w", err)
	}
	c.bot = b

	c.logger.Info("Подключение к Telegram Bot API установлено",
		slog.String("bot_username", b.Me.Username),
		slog.Int64("bot_id", b.Me.ID),
	)
	return c, nil
}

// Username возвращает имя бота из getMe.
func (c *Client) Username() string {
	return c.bot.Me.Username
}

// Bind регистрирует обработчики обновлений.
func (c *Client) Bind(router *bot.Router) {
	c.bot.Use(Recover(c.logger), Instrument(c.logger))

	c.bot.Handle("/start", func(tc tele.Context) error {
		ctx, cancel := c.handlerContext()
		defer cancel()
		router.HandleStart(ctx, sender(tc.Sender()), tc.Message().Payload)
		return nil
	})

	c.bot.Handle(tele.OnText, func(tc tele.Context) error {
		ctx, cancel := c.handlerContext()
		defer cancel()
		router.HandleText(ctx, sender(tc.Sender()), tc.Text())
		return nil
	})

	onMedia := func(tc tele.Context) error {
		in, ok := incoming(tc.Message())
		if !ok {
			return nil
		}
		ctx, cancel := c.handlerContext()
		defer cancel()
		router.HandleUpload(ctx, sender(tc.Sender()), in)
		return nil
	}
	for _, endpoint := range []string{tele.OnDocument, tele.OnPhoto, tele.OnVideo, tele.OnAudio, tele.OnVoice} {
		c.bot.Handle(endpoint, onMedia)
	}
}

// Start запускает цикл опроса. Блокируется до Stop.
func (c *Client) Start() {
	c.polling.Store(true)
	c.logger.Info("Опрос обновлений запущен")
	c.bot.Start()
	c.polling.Store(false)
}

// Stop останавливает цикл опроса и дожидается текущего обработчика.
func (c *Client) Stop() {
	if !c.polling.Load() {
		return
	}
	c.bot.Stop()
	c.logger.Info("Опрос обновлений остановлен")
}

// Name возвращает имя зависимости для readiness.
func (c *Client) Name() string {
	return "telegram"
}

// CheckReady сообщает, выполняется ли опрос обновлений.
func (c *Client) CheckReady() (string, string) {
	if c.polling.Load() {
		return "ok", ""
	}
	return "fail", "опрос обновлений не запущен"
}

// SendText реализует bot.Messenger.
func (c *Client) SendText(_ context.Context, chatID int64, text string, kb bot.Keyboard) (bot.MessageRef, error) {
	opts := &tele.SendOptions{}
	if kb != nil {
		opts.ReplyMarkup = replyMarkup(kb)
	}
	msg, err := c.send(chatID, "sendMessage", text, opts)
	if err != nil {
		return bot.MessageRef{}, err
	}
	return bot.MessageRef{ChatID: chatID, MessageID: msg.ID}, nil
}

// SendMedia реализует bot.Messenger.
func (c *Client) SendMedia(_ context.Context, chatID int64, kind model.FileKind, handle, caption string) error {
	_, err := c.send(chatID, sendMethod(kind), media(kind, handle, caption), &tele.SendOptions{})
	return err
}

// EditText реализует bot.Messenger.
func (c *Client) EditText(_ context.Context, ref bot.MessageRef, text string) error {
	start := time.Now()
	_, err := c.bot.Edit(tele.StoredMessage{
		MessageID: strconv.Itoa(ref.MessageID),
		ChatID:    ref.ChatID,
	}, text)
	observeAPICall("editMessageText", start, err)
	if err != nil {
		return fmt.Errorf("ошибка редактирования сообщения %d: %w", ref.MessageID, err)
	}
	return nil
}

// Deliver реализует service.Deliverer: одна попытка отправки сообщения рассылки.
// Текст и подписи размечены HTML.
func (c *Client) Deliver(_ context.Context, userID int64, payload model.BroadcastPayload) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if payload.IsMedia() {
		_, err := c.send(userID, sendMethod(payload.Kind), media(payload.Kind, payload.Handle, payload.Caption), opts)
		return err
	}
	_, err := c.send(userID, "sendMessage", payload.Text, opts)
	return err
}

func (c *Client) send(chatID int64, method string, what any, opts *tele.SendOptions) (*tele.Message, error) {
	start := time.Now()
	msg, err := c.bot.Send(tele.ChatID(chatID), what, opts)
	observeAPICall(method, start, err)
	if err != nil {
		return nil, fmt.Errorf("ошибка %s для %d: %w", method, chatID, err)
	}
	return msg, nil
}

func (c *Client) handlerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.handlerTimeout)
}

// sender переводит пользователя Telegram в bot.Sender.
func sender(u *tele.User) bot.Sender {
	if u == nil {
		return bot.Sender{}
	}
	return bot.Sender{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// incoming извлекает файл из сообщения. Имена по умолчанию для фото и голосовых
// совпадают с тем, что показывает клиент Telegram.
func incoming(m *tele.Message) (bot.Incoming, bool) {
	if m == nil {
		return bot.Incoming{}, false
	}
	in := bot.Incoming{Caption: m.Caption}
	up := &in.Upload
	up.MessageRef = int64(m.ID)

	switch {
	case m.Document != nil:
		up.Kind = model.KindDocument
		up.Handle = m.Document.FileID
		up.Size = m.Document.FileSize
		up.Name = nameOr(m.Document.FileName, "document")
	case m.Photo != nil:
		up.Kind = model.KindPhoto
		up.Handle = m.Photo.FileID
		up.Size = m.Photo.FileSize
		up.Name = "photo.jpg"
	case m.Video != nil:
		up.Kind = model.KindVideo
		up.Handle = m.Video.FileID
		up.Size = m.Video.FileSize
		up.Name = nameOr(m.Video.FileName, "video.mp4")
	case m.Audio != nil:
		up.Kind = model.KindAudio
		up.Handle = m.Audio.FileID
		up.Size = m.Audio.FileSize
		up.Name = nameOr(m.Audio.FileName, "audio.mp3")
	case m.Voice != nil:
		up.Kind = model.KindVoice
		up.Handle = m.Voice.FileID
		up.Size = m.Voice.FileSize
		up.Name = "voice.ogg"
	default:
		return bot.Incoming{}, false
	}
	return in, true
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// media создаёт отправляемый объект по типу файла.
func media(kind model.FileKind, handle, caption string) tele.Sendable {
	file := tele.File{FileID: handle}
	switch kind {
	case model.KindPhoto:
		return &tele.Photo{File: file, Caption: caption}
	case model.KindVideo:
		return &tele.Video{File: file, Caption: caption}
	case model.KindAudio:
		return &tele.Audio{File: file, Caption: caption}
	case model.KindVoice:
		return &tele.Voice{File: file, Caption: caption}
	default:
		return &tele.Document{File: file, Caption: caption}
	}
}

// sendMethod — имя метода Bot API для метрик.
func sendMethod(kind model.FileKind) string {
	switch kind {
	case model.KindPhoto:
		return "sendPhoto"
	case model.KindVideo:
		return "sendVideo"
	case model.KindAudio:
		return "sendAudio"
	case model.KindVoice:
		return "sendVoice"
	default:
		return "sendDocument"
	}
}

// replyMarkup строит клавиатуру под полем ввода.
func replyMarkup(kb bot.Keyboard) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := make([]tele.Row, 0, len(kb))
	for _, line := range kb {
		btns := make([]tele.Btn, 0, len(line))
		for _, cmd := range line {
			btns = append(btns, m.Text(string(cmd)))
		}
		rows = append(rows, m.Row(btns...))
	}
	m.Reply(rows...)
	return m
}
