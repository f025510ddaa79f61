// router.go — маршрутизация входящих событий по состоянию диалога.
//
// Порядок обработки события:
//  1. регистрация пользователя (обновление имени);
//  2. проверка бана (администраторы не проверяются); бан сбрасывает ожидание;
//  3. если есть ожидание — ввод передаётся ему, токен отмены возвращает в Idle;
//  4. иначе текст сопоставляется с таблицей меню.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/SanchoysArt/sanchofile/internal/domain/conversation"
	"github.com/SanchoysArt/sanchofile/internal/domain/model"
	"github.com/SanchoysArt/sanchofile/internal/service"
)

// usersPageSize — сколько пользователей показывает "👥 Пользователи".
const usersPageSize = 10

var (
	botEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fb_bot_events_total",
		Help: "Количество входящих событий по типу.",
	}, []string{"event"})
	botRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fb_bot_rejected_total",
		Help: "Количество отклонённых событий по причине.",
	}, []string{"reason"})
)

// Services — сервисы, которыми пользуется Router.
type Services struct {
	Access    *service.AccessService
	Admins    *service.AdminSet
	Files     *service.FileRegistryService
	Quota     *service.QuotaSettings
	Stats     *service.StatsService
	Sessions  *service.SessionStore
	Broadcast *service.BroadcastEngine
}

// Router — диспетчер событий бота.
// Вызывается последовательно из одного цикла опроса.
type Router struct {
	svc         Services
	messenger   Messenger
	botUsername string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRouter создаёт диспетчер. botUsername — имя бота для ссылок вида t.me/<bot>?start=<код>.
func NewRouter(svc Services, messenger Messenger, botUsername string, logger *slog.Logger) *Router {
	return &Router{
		svc:         svc,
		messenger:   messenger,
		botUsername: strings.TrimPrefix(botUsername, "@"),
		now:         time.Now,
		logger:      logger.With(slog.String("component", "router")),
	}
}

// HandleStart обрабатывает /start. Непустой payload — короткий код из ссылки.
func (r *Router) HandleStart(ctx context.Context, from Sender, payload string) {
	botEventsTotal.WithLabelValues("start").Inc()
	isAdmin, ok := r.admit(ctx, from)
	if !ok {
		return
	}

	r.svc.Sessions.Reset(from.ID)
	payload = strings.TrimSpace(payload)
	if payload == "" {
		r.showMainMenu(ctx, from.ID, isAdmin)
		return
	}
	r.deliverByLink(ctx, from.ID, isAdmin, payload)
}

// HandleText обрабатывает текстовое сообщение.
func (r *Router) HandleText(ctx context.Context, from Sender, text string) {
	botEventsTotal.WithLabelValues("text").Inc()
	isAdmin, ok := r.admit(ctx, from)
	if !ok {
		return
	}

	text = strings.TrimSpace(text)
	sess := r.svc.Sessions.Get(from.ID)
	if sess.IsIdle() {
		r.dispatchCommand(ctx, from.ID, isAdmin, text)
		return
	}

	if sess.Action.AdminOnly() {
		if err := r.svc.Admins.Authorize(from.ID); err != nil {
			r.svc.Sessions.Reset(from.ID)
			r.deny(ctx, from.ID, err)
			return
		}
	}
	if conversation.IsCancel(text) {
		r.svc.Sessions.Reset(from.ID)
		if sess.Action.AdminOnly() {
			r.reply(ctx, from.ID, textAdminPanel, AdminKeyboard())
		} else {
			r.showMainMenu(ctx, from.ID, isAdmin)
		}
		return
	}

	switch sess.Action {
	case conversation.AwaitingFileSelection:
		r.deleteSelected(ctx, from.ID, isAdmin, sess, text)
	case conversation.AwaitingSearchCode:
		r.search(ctx, from.ID, isAdmin, text)
	case conversation.AwaitingBanSpec:
		r.applyBan(ctx, from.ID, text)
	case conversation.AwaitingPermanentBanSpec:
		r.applyPermanentBan(ctx, from.ID, text)
	case conversation.AwaitingUnbanId:
		r.applyUnban(ctx, from.ID, text)
	case conversation.AwaitingLimitValue:
		r.applyLimit(ctx, from.ID, text)
	case conversation.AwaitingBroadcastPayload:
		r.startBroadcast(ctx, from.ID, model.BroadcastPayload{Text: text})
	default:
		r.svc.Sessions.Reset(from.ID)
		r.dispatchCommand(ctx, from.ID, isAdmin, text)
	}
}

// HandleUpload обрабатывает входящий файл.
// В ожидании рассылки файл становится её содержимым, иначе регистрируется.
func (r *Router) HandleUpload(ctx context.Context, from Sender, in Incoming) {
	botEventsTotal.WithLabelValues("upload").Inc()
	isAdmin, ok := r.admit(ctx, from)
	if !ok {
		return
	}

	if isAdmin && r.svc.Sessions.Get(from.ID).Action == conversation.AwaitingBroadcastPayload {
		switch in.Upload.Kind {
		case model.KindPhoto, model.KindVideo, model.KindDocument:
			r.startBroadcast(ctx, from.ID, model.BroadcastPayload{
				Kind:    in.Upload.Kind,
				Handle:  in.Upload.Handle,
				Caption: in.Caption,
			})
		default:
			r.reply(ctx, from.ID, textBroadcastUnsupported, CancelKeyboard())
		}
		return
	}

	r.register(ctx, from.ID, in.Upload)
}

// admit регистрирует пользователя и проверяет бан.
func (r *Router) admit(ctx context.Context, from Sender) (isAdmin, ok bool) {
	if err := r.svc.Access.Touch(ctx, from.ID, from.Username, from.FullName()); err != nil {
		r.fail(ctx, from.ID, "Ошибка регистрации пользователя", err)
		return false, false
	}

	if r.svc.Admins.IsAdmin(from.ID) {
		return true, true
	}

	st, err := r.svc.Access.Evaluate(ctx, from.ID)
	if err != nil {
		r.fail(ctx, from.ID, "Ошибка проверки бана", err)
		return false, false
	}
	if st.Banned() {
		r.svc.Sessions.Reset(from.ID)
		r.reject(ctx, from.ID, "banned", banNotice(st))
		return false, false
	}
	return false, true
}

// dispatchCommand сопоставляет текст с меню (состояние Idle).
func (r *Router) dispatchCommand(ctx context.Context, userID int64, isAdmin bool, text string) {
	cmd, ok := conversation.LookupCommand(text)
	if !ok {
		r.reject(ctx, userID, "unknown_command", textUnknownCommand)
		return
	}
	if cmd.AdminOnly() {
		if err := r.svc.Admins.Authorize(userID); err != nil {
			r.deny(ctx, userID, err)
			return
		}
	}

	switch cmd {
	case conversation.CmdUpload:
		r.uploadHint(ctx, userID)
	case conversation.CmdMyFiles:
		r.listFiles(ctx, userID)
	case conversation.CmdSearch:
		r.await(ctx, userID, conversation.AwaitingSearchCode, textSearchPrompt)
	case conversation.CmdInfo:
		r.personalInfo(ctx, userID)
	case conversation.CmdAdminPanel:
		r.reply(ctx, userID, textAdminPanel, AdminKeyboard())
	case conversation.CmdMainMenu, conversation.CmdCancel:
		r.showMainMenu(ctx, userID, isAdmin)
	case conversation.CmdUsers:
		r.listUsers(ctx, userID)
	case conversation.CmdStats:
		r.showStats(ctx, userID)
	case conversation.CmdSettings:
		r.showSettings(ctx, userID)
	case conversation.CmdBan:
		r.await(ctx, userID, conversation.AwaitingBanSpec, textBanPrompt)
	case conversation.CmdPermanentBan:
		r.await(ctx, userID, conversation.AwaitingPermanentBanSpec, textPermanentBanPrompt)
	case conversation.CmdUnban:
		r.await(ctx, userID, conversation.AwaitingUnbanId, textUnbanPrompt)
	case conversation.CmdSetLimit:
		r.await(ctx, userID, conversation.AwaitingLimitValue, textLimitPrompt)
	case conversation.CmdBroadcast:
		r.await(ctx, userID, conversation.AwaitingBroadcastPayload, textBroadcastPrompt)
	case conversation.CmdStopBroadcast:
		r.stopBroadcast(ctx, userID)
	}
}

// --- Пользовательские команды --- //

func (r *Router) showMainMenu(ctx context.Context, userID int64, isAdmin bool) {
	r.reply(ctx, userID, textMainMenu, MainKeyboard(isAdmin))
}

func (r *Router) await(ctx context.Context, userID int64, action conversation.Action, prompt string) {
	r.svc.Sessions.Await(userID, action)
	r.reply(ctx, userID, prompt, CancelKeyboard())
}

func (r *Router) uploadHint(ctx context.Context, userID int64) {
	count, err := r.svc.Files.CountByOwner(ctx, userID)
	if err != nil {
		r.fail(ctx, userID, "Ошибка подсчёта файлов", err)
		return
	}
	if limit := r.svc.Quota.Limit(); count >= limit {
		r.reply(ctx, userID, quotaExceeded(count, limit), nil)
		return
	}
	r.reply(ctx, userID, textUploadHint, nil)
}

func (r *Router) personalInfo(ctx context.Context, userID int64) {
	count, err := r.svc.Files.CountByOwner(ctx, userID)
	if err != nil {
		r.fail(ctx, userID, "Ошибка подсчёта файлов", err)
		return
	}
	r.reply(ctx, userID, personalInfo(count, r.svc.Quota.Limit()), nil)
}

func (r *Router) register(ctx context.Context, userID int64, up model.Upload) {
	limit := r.svc.Quota.Limit()
	f, err := r.svc.Files.Register(ctx, userID, up)
	switch {
	case errors.Is(err, service.ErrQuotaExceeded):
		count, cerr := r.svc.Files.CountByOwner(ctx, userID)
		if cerr != nil {
			count = limit
		}
		r.reject(ctx, userID, "quota_exceeded", quotaExceeded(count, limit))
		return
	case err != nil:
		r.logger.Error("Ошибка регистрации файла",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		r.reply(ctx, userID, textUploadFailed, nil)
		return
	}

	count, err := r.svc.Files.CountByOwner(ctx, userID)
	if err != nil {
		r.logger.Warn("Ошибка подсчёта файлов", slog.Int64("user_id", userID), slog.String("error", err.Error()))
	}
	r.reply(ctx, userID, uploadConfirmed(f, deepLink(r.botUsername, f.ShortCode), count, limit), nil)
}

func (r *Router) listFiles(ctx context.Context, userID int64) {
	files, err := r.svc.Files.ListByOwner(ctx, userID)
	if err != nil {
		r.fail(ctx, userID, "Ошибка получения списка файлов", err)
		return
	}
	limit := r.svc.Quota.Limit()
	if len(files) == 0 {
		r.reply(ctx, userID, emptyFileList(limit), nil)
		return
	}
	// Ожидание выбора — только если список дошёл до пользователя
	if err := r.send(ctx, userID, fileList(files, r.botUsername, limit), CancelKeyboard()); err != nil {
		return
	}
	r.svc.Sessions.AwaitSelection(userID, files)
}

func (r *Router) deleteSelected(ctx context.Context, userID int64, isAdmin bool, sess conversation.Session, text string) {
	sel, err := conversation.ParseSelector(text)
	if err != nil {
		r.reply(ctx, userID, textSelectionMalformed, CancelKeyboard())
		return
	}

	f, err := r.svc.Files.DeleteBySelector(ctx, userID, sel, sess.Snapshot)
	switch {
	case errors.Is(err, service.ErrOutOfRange):
		r.reply(ctx, userID, outOfRange(len(sess.Snapshot)), CancelKeyboard())
		return
	case errors.Is(err, service.ErrNotOwner):
		r.reject(ctx, userID, "not_owner", textNotOwner)
		return
	case errors.Is(err, service.ErrNotFound):
		r.reply(ctx, userID, textFileGone, CancelKeyboard())
		return
	case err != nil:
		r.fail(ctx, userID, "Ошибка удаления файла", err)
		return
	}

	r.svc.Sessions.Reset(userID)
	count, err := r.svc.Files.CountByOwner(ctx, userID)
	if err != nil {
		r.logger.Warn("Ошибка подсчёта файлов", slog.Int64("user_id", userID), slog.String("error", err.Error()))
	}
	r.reply(ctx, userID, fileDeleted(f.Name, count, r.svc.Quota.Limit()), MainKeyboard(isAdmin))
}

func (r *Router) search(ctx context.Context, userID int64, isAdmin bool, text string) {
	code, err := conversation.ParseShortCode(text)
	if err != nil {
		r.reply(ctx, userID, textSearchMalformed, CancelKeyboard())
		return
	}

	f, err := r.svc.Files.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			r.reply(ctx, userID, textSearchNotFound, CancelKeyboard())
			return
		}
		r.fail(ctx, userID, "Ошибка поиска файла", err)
		return
	}

	link := deepLink(r.botUsername, f.ShortCode)
	card, cardErr := r.messenger.SendText(ctx, userID, fileCard(f, link, "⏳ Отправляю файл..."), nil)
	if cardErr != nil {
		r.logger.Warn("Ошибка отправки сообщения", slog.Int64("user_id", userID), slog.String("error", cardErr.Error()))
	}

	status := "✅ Файл успешно отправлен!"
	if err := r.messenger.SendMedia(ctx, userID, f.Kind, f.Handle, mediaCaption(f)); err != nil {
		r.logger.Warn("Ошибка отправки файла",
			slog.Int64("user_id", userID),
			slog.String("short_code", f.ShortCode),
			slog.String("error", err.Error()),
		)
		status = textDeepLinkFailed
	}
	if cardErr == nil {
		r.edit(ctx, card, fileCard(f, link, status))
	}

	r.svc.Sessions.Reset(userID)
	r.showMainMenu(ctx, userID, isAdmin)
}

func (r *Router) deliverByLink(ctx context.Context, userID int64, isAdmin bool, payload string) {
	code, err := conversation.ParseShortCode(payload)
	if err != nil {
		r.reply(ctx, userID, textDeepLinkNotFound, MainKeyboard(isAdmin))
		return
	}
	f, err := r.svc.Files.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			r.reply(ctx, userID, textDeepLinkNotFound, MainKeyboard(isAdmin))
			return
		}
		r.fail(ctx, userID, "Ошибка поиска файла", err)
		return
	}

	if err := r.messenger.SendMedia(ctx, userID, f.Kind, f.Handle, mediaCaption(f)); err != nil {
		r.logger.Warn("Ошибка отправки файла по ссылке",
			slog.Int64("user_id", userID),
			slog.String("short_code", f.ShortCode),
			slog.String("error", err.Error()),
		)
		r.reply(ctx, userID, textDeepLinkFailed, MainKeyboard(isAdmin))
		return
	}
	r.reply(ctx, userID, textDeepLinkSent, MainKeyboard(isAdmin))
}

// --- Команды администратора --- //

func (r *Router) listUsers(ctx context.Context, adminID int64) {
	users, err := r.svc.Stats.RecentUsers(ctx, usersPageSize)
	if err != nil {
		r.fail(ctx, adminID, "Ошибка получения пользователей", err)
		return
	}
	if len(users) == 0 {
		r.reply(ctx, adminID, textNoUsers, nil)
		return
	}
	st, err := r.svc.Stats.Stats(ctx)
	if err != nil {
		r.fail(ctx, adminID, "Ошибка получения статистики", err)
		return
	}
	r.reply(ctx, adminID, usersList(users, st.TotalUsers, r.now()), nil)
}

func (r *Router) showStats(ctx context.Context, adminID int64) {
	st, err := r.svc.Stats.Stats(ctx)
	if err != nil {
		r.fail(ctx, adminID, "Ошибка получения статистики", err)
		return
	}
	r.reply(ctx, adminID, statsText(st), nil)
}

func (r *Router) showSettings(ctx context.Context, adminID int64) {
	st, err := r.svc.Stats.Stats(ctx)
	if err != nil {
		r.fail(ctx, adminID, "Ошибка получения статистики", err)
		return
	}
	r.reply(ctx, adminID, settingsText(st, r.svc.Admins.Len(), adminID, r.svc.Broadcast.Running()), nil)
}

func (r *Router) applyBan(ctx context.Context, adminID int64, text string) {
	spec, err := conversation.ParseBanSpec(text)
	if err != nil {
		r.reply(ctx, adminID, textBanMalformed, CancelKeyboard())
		return
	}
	if _, err := r.svc.Access.SetBan(ctx, spec.UserID, spec.Days, spec.Reason); err != nil {
		if errors.Is(err, service.ErrInvalidDuration) {
			r.reply(ctx, adminID, textBanInvalidDuration, CancelKeyboard())
			return
		}
		r.fail(ctx, adminID, "Ошибка бана пользователя", err)
		return
	}
	r.svc.Sessions.Reset(adminID)
	r.reply(ctx, adminID, banApplied(spec.UserID, spec.Days, spec.Reason), AdminKeyboard())
}

func (r *Router) applyPermanentBan(ctx context.Context, adminID int64, text string) {
	spec, err := conversation.ParsePermanentBanSpec(text)
	if err != nil {
		r.reply(ctx, adminID, textPermanentBanMalformed, CancelKeyboard())
		return
	}
	if err := r.svc.Access.SetPermanentBan(ctx, spec.UserID, spec.Reason); err != nil {
		r.fail(ctx, adminID, "Ошибка бана пользователя", err)
		return
	}
	r.svc.Sessions.Reset(adminID)
	r.reply(ctx, adminID, permanentBanApplied(spec.UserID, spec.Reason), AdminKeyboard())
}

func (r *Router) applyUnban(ctx context.Context, adminID int64, text string) {
	userID, err := conversation.ParseUserID(text)
	if err != nil {
		r.reply(ctx, adminID, textUnbanMalformed, CancelKeyboard())
		return
	}
	if err := r.svc.Access.ClearBan(ctx, userID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			r.reply(ctx, adminID, textUnbanNotFound, CancelKeyboard())
			return
		}
		r.fail(ctx, adminID, "Ошибка разбана пользователя", err)
		return
	}
	r.svc.Sessions.Reset(adminID)
	r.reply(ctx, adminID, unbanned(userID), AdminKeyboard())
}

func (r *Router) applyLimit(ctx context.Context, adminID int64, text string) {
	limit, err := conversation.ParseLimit(text)
	if err != nil {
		r.reply(ctx, adminID, textLimitMalformed, CancelKeyboard())
		return
	}
	if err := r.svc.Quota.Set(ctx, limit, adminID); err != nil {
		if errors.Is(err, service.ErrInvalidLimit) {
			r.reply(ctx, adminID, textLimitNonPositive, CancelKeyboard())
			return
		}
		r.fail(ctx, adminID, "Ошибка установки лимита", err)
		return
	}
	r.svc.Sessions.Reset(adminID)
	r.reply(ctx, adminID, limitSet(limit), AdminKeyboard())
}

// startBroadcast фиксирует получателей и запускает рассылку в фоне.
// Прогресс и итог редактируют одно сообщение администратора.
func (r *Router) startBroadcast(ctx context.Context, adminID int64, payload model.BroadcastPayload) {
	recipients, err := r.svc.Access.ActiveUsers(ctx)
	if err != nil {
		r.fail(ctx, adminID, "Ошибка получения получателей", err)
		return
	}
	if len(recipients) == 0 {
		r.svc.Sessions.Reset(adminID)
		r.reply(ctx, adminID, textBroadcastNoRecipients, AdminKeyboard())
		return
	}
	if r.svc.Broadcast.Running() {
		r.svc.Sessions.Reset(adminID)
		r.reply(ctx, adminID, textBroadcastBusy, AdminKeyboard())
		return
	}

	// Колбэки выполняются после завершения обработки события
	bg := context.WithoutCancel(ctx)
	progressMsg, msgErr := r.messenger.SendText(ctx, adminID, broadcastStarted(len(recipients)), nil)
	if msgErr != nil {
		r.logger.Warn("Ошибка отправки сообщения", slog.Int64("user_id", adminID), slog.String("error", msgErr.Error()))
	}

	onProgress := func(p service.Progress) {
		if msgErr == nil {
			r.edit(bg, progressMsg, broadcastProgress(p))
		}
	}
	onDone := func(rep service.Report) {
		if msgErr == nil {
			r.edit(bg, progressMsg, broadcastFinished(rep))
			return
		}
		r.reply(bg, adminID, broadcastFinished(rep), nil)
	}

	err = r.svc.Broadcast.Start(ctx, payload, recipients, onProgress, onDone)
	r.svc.Sessions.Reset(adminID)
	if err != nil {
		if errors.Is(err, service.ErrBroadcastInProgress) {
			r.reply(ctx, adminID, textBroadcastBusy, AdminKeyboard())
			return
		}
		r.fail(ctx, adminID, "Ошибка запуска рассылки", err)
		return
	}
	r.logger.Info("Рассылка запущена администратором",
		slog.Int64("admin_id", adminID),
		slog.Int("recipients", len(recipients)),
	)
	r.reply(ctx, adminID, textBroadcastLaunched, AdminKeyboard())
}

func (r *Router) stopBroadcast(ctx context.Context, adminID int64) {
	if err := r.svc.Broadcast.Cancel(); err != nil {
		r.reply(ctx, adminID, textBroadcastNone, AdminKeyboard())
		return
	}
	r.logger.Info("Рассылка остановлена администратором", slog.Int64("admin_id", adminID))
	r.reply(ctx, adminID, textBroadcastStopping, AdminKeyboard())
}

// --- Вспомогательные функции --- //

// reply отправляет сообщение; ошибка отправки только логируется.
func (r *Router) reply(ctx context.Context, chatID int64, text string, kb Keyboard) {
	_ = r.send(ctx, chatID, text, kb)
}

// send отправляет сообщение и логирует ошибку отправки.
func (r *Router) send(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	if _, err := r.messenger.SendText(ctx, chatID, text, kb); err != nil {
		r.logger.Warn("Ошибка отправки сообщения",
			slog.Int64("user_id", chatID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// deny отвечает на отказ в доступе.
func (r *Router) deny(ctx context.Context, chatID int64, err error) {
	if errors.Is(err, service.ErrUnauthorized) {
		r.reject(ctx, chatID, "unauthorized", textNoAccess)
		return
	}
	r.fail(ctx, chatID, "Ошибка проверки прав", err)
}

// edit редактирует сообщение; ошибка только логируется.
func (r *Router) edit(ctx context.Context, ref MessageRef, text string) {
	if err := r.messenger.EditText(ctx, ref, text); err != nil {
		r.logger.Debug("Ошибка редактирования сообщения",
			slog.Int64("user_id", ref.ChatID),
			slog.Int("message_id", ref.MessageID),
			slog.String("error", err.Error()),
		)
	}
}

// reject отвечает на отклонённое событие и учитывает его в метриках.
func (r *Router) reject(ctx context.Context, chatID int64, reason, text string) {
	botRejectedTotal.WithLabelValues(reason).Inc()
	r.reply(ctx, chatID, text, nil)
}

// fail логирует ошибку хранилища и отвечает общим сообщением. Состояние не меняется.
func (r *Router) fail(ctx context.Context, chatID int64, msg string, err error) {
	r.logger.Error(msg,
		slog.Int64("user_id", chatID),
		slog.String("error", err.Error()),
	)
	r.reply(ctx, chatID, textInternalError, nil)
}
