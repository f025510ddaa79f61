// texts.go — тексты сообщений бота.
package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/SanchoysArt/sanchofile/internal/domain/model"
	"github.com/SanchoysArt/sanchofile/internal/service"
)

const cancelHint = "Для отмены нажмите кнопку '❌ Отмена'"

const (
	textMainMenu       = "📁 Файлообменник\n\nВыберите действие:"
	textAdminPanel     = "⚙️ Админ панель\n\nВыберите действие:"
	textUnknownCommand = "❌ Неизвестная команда!\n\nИспользуйте кнопки меню для навигации."
	textNoAccess       = "❌ У вас нет доступа!"
	textInternalError  = "❌ Внутренняя ошибка. Попробуйте позже."

	textUploadHint = "📤 Загрузка файла\n\n" +
		"Просто отправьте мне файл любого типа (документ, фото, видео, аудио).\n" +
		"После загрузки вы получите уникальную ссылку для скачивания."
	textUploadFailed = "❌ Ошибка при сохранении файла!"

	textSelectionMalformed = "❌ Неверный формат!\n\n" +
		"💡 Для удаления файла отправьте:\n" +
		"• Номер файла из списка (1, 2, 3...)\n" +
		"• Или код файла (8 символов)\n\n" + cancelHint
	textNotOwner        = "❌ Вы не можете удалить чужой файл!"
	textFileGone        = "❌ Файл не найден или уже удалён!"
	textSearchPrompt    = "🔍 Поиск по коду\n\nОтправьте код файла для поиска и скачивания:\n\n" + cancelHint
	textSearchMalformed = "❌ Неверный код! Код файла состоит из 8 латинских букв и цифр."
	textSearchNotFound  = "❌ Файл не найден! Проверьте правильность кода."

	textDeepLinkNotFound = "❌ Файл не найден или был удален."
	textDeepLinkSent     = "✅ Файл успешно отправлен!"
	textDeepLinkFailed   = "❌ Ошибка при отправке файла. Возможно, файл был удален."

	textBanPrompt = "🚫 Бан пользователя\n\n" +
		"Отправьте в формате:\n" +
		"ID_ПОЛЬЗОВАТЕЛЯ ДНИ ПРИЧИНА\n\n" +
		"Пример:\n" +
		"123456789 7 Распространение вирусов\n" +
		"987654321 30 Нарушение правил\n\n" + cancelHint
	textBanMalformed = "❌ Неверный формат! Нужно: ID ДНИ ПРИЧИНА"

	textPermanentBanPrompt = "⛔ Бан навсегда\n\n" +
		"Отправьте в формате:\n" +
		"ID_ПОЛЬЗОВАТЕЛЯ ПРИЧИНА\n\n" +
		"Пример:\n" +
		"123456789 Мошенничество\n\n" + cancelHint
	textPermanentBanMalformed = "❌ Неверный формат! Нужно: ID ПРИЧИНА"

	textUnbanPrompt      = "✅ Разбан пользователя\n\nОтправьте ID пользователя для разбана:\nПример: 123456789\n\n" + cancelHint
	textUnbanMalformed   = "❌ Неверный ID пользователя!"
	textUnbanNotFound    = "❌ Пользователь с таким ID не найден!"
	textLimitPrompt      = "📈 Установка лимита\n\nОтправьте новое значение общего лимита:\nПример: 25\n\n" + cancelHint
	textLimitMalformed   = "❌ Неверный лимит! Укажите число."
	textLimitNonPositive = "❌ Лимит должен быть больше 0!"

	textBroadcastPrompt = "📢 Рассылка сообщения\n\n" +
		"Отправьте сообщение для рассылки всем пользователям:\n\n" +
		"Вы можете отправить:\n" +
		"• Текст\n" +
		"• Текст с фото\n" +
		"• Текст с видео\n" +
		"• Текст с документом\n\n" + cancelHint

	textBroadcastUnsupported  = "❌ Этот тип файла нельзя разослать. Отправьте текст, фото, видео или документ."
	textBroadcastNoRecipients = "❌ Нет активных пользователей для рассылки!"
	textBroadcastBusy         = "⏳ Рассылка уже выполняется. Дождитесь завершения или остановите её."
	textBroadcastLaunched     = "📢 Рассылка запущена. Прогресс обновляется в сообщении выше."
	textBroadcastStopping     = "🛑 Рассылка останавливается..."
	textBroadcastNone         = "ℹ️ Сейчас нет выполняющейся рассылки."

	textNoUsers = "📭 Нет пользователей в базе."
)

var textBanInvalidDuration = fmt.Sprintf("❌ Количество дней должно быть от 1 до %d!", service.MaxBanDays)

// deepLink формирует ссылку для получения файла.
func deepLink(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, code)
}

func banNotice(st service.BanState) string {
	reason := st.Reason
	if reason == "" {
		reason = "Нарушение правил"
	}
	if st.Status == service.PermanentlyBanned {
		return fmt.Sprintf("❌ Вы забанены навсегда!\n\n"+
			"📝 Причина: %s\n\n"+
			"Если вы не согласны с баном, напишите в поддержку.", reason)
	}
	return fmt.Sprintf("❌ Вы забанены!\n\n"+
		"📝 Причина: %s\n"+
		"⏰ Разбан через: %d дн.\n\n"+
		"Если вы не согласны с баном, напишите в поддержку.", reason, st.DaysRemaining)
}

func quotaExceeded(count, limit int) string {
	return fmt.Sprintf("❌ Лимит загрузок исчерпан!\n"+
		"Максимум: %d файлов\n"+
		"Ваш текущий счет: %d/%d\n\n"+
		"Удалите некоторые файлы в разделе 'Мои загрузки'", limit, count, limit)
}

func uploadConfirmed(f *model.File, link string, count, limit int) string {
	return fmt.Sprintf("✅ Файл успешно загружен!\n\n"+
		"📁 Имя: %s\n"+
		"🔗 Ссылка: %s\n"+
		"📊 Код: %s\n\n"+
		"📊 Статистика: %d/%d файлов", f.Name, link, f.ShortCode, count, limit)
}

func personalInfo(count, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ℹ️ Информация\n\n📊 Общий лимит загрузок: %d файлов\n📁 Ваши загрузки: %d/%d\n", limit, count, limit)
	if count >= limit {
		b.WriteString("❌ Лимит исчерпан!\n")
	} else {
		fmt.Fprintf(&b, "✅ Можно загрузить еще: %d файлов\n", limit-count)
	}
	return b.String()
}

func emptyFileList(limit int) string {
	return fmt.Sprintf("📭 У вас пока нет загруженных файлов.\n📊 Лимит: 0/%d", limit)
}

// fileList выводит список загрузок. Не поместившиеся в одно сообщение
// пункты сворачиваются в итоговую строку; их номера остаются действительными.
func fileList(files []*model.File, botUsername string, limit int) string {
	const footer = "🗑 Чтобы удалить файл, отправьте его номер или код.\n\n" + cancelHint
	// Запас под строку о скрытых файлах
	const reserve = 128

	var b strings.Builder
	fmt.Fprintf(&b, "📂 Ваши загрузки: (%d/%d)\n\n", len(files), limit)
	size := textLen(b.String()) + textLen(footer) + reserve

	shown := 0
	for i, f := range files {
		entry := fmt.Sprintf("%d. %s\n   🔗 %s\n   🆔 Код: %s\n\n", i+1, f.Name, deepLink(botUsername, f.ShortCode), f.ShortCode)
		if size+textLen(entry) > maxMessageLen {
			break
		}
		size += textLen(entry)
		b.WriteString(entry)
		shown++
	}
	if hidden := len(files) - shown; hidden > 0 {
		fmt.Fprintf(&b, "... и еще %d файлов (номера %d-%d)\n\n", hidden, shown+1, len(files))
	}
	b.WriteString(footer)
	return b.String()
}

// maxMessageLen — предел длины текста сообщения Telegram в UTF-16 единицах.
const maxMessageLen = 4096

// textLen считает длину так же, как Bot API: в UTF-16 единицах.
func textLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func outOfRange(n int) string {
	if n == 0 {
		return "❌ Неверный номер файла! У вас нет файлов."
	}
	return fmt.Sprintf("❌ Неверный номер файла! Доступные номера: 1-%d", n)
}

func fileDeleted(name string, count, limit int) string {
	return fmt.Sprintf("✅ Файл '%s' успешно удален!\n📊 Осталось файлов: %d/%d", name, count, limit)
}

// fileCard — карточка найденного файла; status дописывается последней строкой.
func fileCard(f *model.File, link, status string) string {
	return fmt.Sprintf("🔍 Файл найден:\n\n"+
		"📁 Имя: %s\n"+
		"🔗 Ссылка: %s\n"+
		"📊 Код: %s\n"+
		"📦 Тип: %s\n"+
		"💾 Размер: %d байт\n\n"+
		"%s", f.Name, link, f.ShortCode, f.Kind, f.Size, status)
}

func mediaCaption(f *model.File) string {
	return "📁 " + f.Name
}

func banApplied(userID int64, days int, reason string) string {
	return fmt.Sprintf("✅ Пользователь %d забанен!\n⏰ Срок: %d дн.\n📝 Причина: %s", userID, days, reason)
}

func permanentBanApplied(userID int64, reason string) string {
	return fmt.Sprintf("⛔ Пользователь %d забанен навсегда!\n📝 Причина: %s", userID, reason)
}

func unbanned(userID int64) string {
	return fmt.Sprintf("✅ Пользователь %d разбанен!", userID)
}

func limitSet(limit int) string {
	return fmt.Sprintf("✅ Общий лимит установлен: %d файлов", limit)
}

func usersList(users []*model.User, total int, now time.Time) string {
	var b strings.Builder
	b.WriteString("👥 Список пользователей:\n\n")
	for _, u := range users {
		st := service.BanStateAt(u.Ban, now)
		if st.Banned() {
			b.WriteString("🚫 ЗАБАНЕН\n")
		} else {
			b.WriteString("✅ АКТИВЕН\n")
		}
		fmt.Fprintf(&b, "👤 %s (%s)\n🆔 ID: %d\n", u.FullName, u.DisplayName(), u.ID)
		if st.Banned() {
			if st.Status == service.TemporarilyBanned {
				fmt.Fprintf(&b, "⏰ Разбан через: %d дн.\n", st.DaysRemaining)
			} else {
				b.WriteString("⏰ Бессрочно\n")
			}
			reason := st.Reason
			if reason == "" {
				reason = "Не указана"
			}
			fmt.Fprintf(&b, "📝 Причина: %s\n", reason)
		}
		b.WriteString("\n")
	}
	if rest := total - len(users); rest > 0 {
		fmt.Fprintf(&b, "... и еще %d пользователей", rest)
	}
	return b.String()
}

func statsText(st service.Stats) string {
	return fmt.Sprintf("📊 Статистика бота\n\n"+
		"👥 Всего пользователей: %d\n"+
		"📁 Всего файлов: %d\n"+
		"🚫 Забаненных: %d\n"+
		"✅ Активных: %d\n"+
		"📈 Общий лимит: %d файлов", st.TotalUsers, st.TotalFiles, st.BannedUsers, st.ActiveUsers, st.UploadLimit)
}

func settingsText(st service.Stats, admins int, userID int64, broadcasting bool) string {
	status := "нет"
	if broadcasting {
		status = "выполняется"
	}
	return fmt.Sprintf("⚙️ Текущие настройки\n\n"+
		"📊 Общий лимит загрузок: %d файлов\n"+
		"👑 Администраторы: %d пользователей\n"+
		"👥 Всего пользователей: %d\n"+
		"✅ Активных пользователей: %d\n"+
		"📢 Рассылка: %s\n"+
		"🆔 Ваш ID: %d", st.UploadLimit, admins, st.TotalUsers, st.ActiveUsers, status, userID)
}

func broadcastStarted(total int) string {
	return fmt.Sprintf("📢 Начинаю рассылку...\n👥 Получателей: %d\n✅ Успешно: 0\n❌ Ошибок: 0", total)
}

func broadcastProgress(p service.Progress) string {
	return fmt.Sprintf("📢 Рассылка...\n"+
		"👥 Получателей: %d\n"+
		"✅ Успешно: %d\n"+
		"❌ Ошибок: %d\n"+
		"📊 Прогресс: %d/%d (%.1f%%)", p.Total, p.Success, p.Failure, p.Done, p.Total, p.Percent())
}

func broadcastFinished(rep service.Report) string {
	title := "📢 Рассылка завершена!"
	if rep.Aborted {
		title = "🛑 Рассылка остановлена!"
	}
	return fmt.Sprintf("%s\n\n"+
		"👥 Всего получателей: %d\n"+
		"✅ Успешно доставлено: %d\n"+
		"❌ Не доставлено: %d\n"+
		"📊 Эффективность: %.1f%%", title, rep.Total, rep.Success, rep.Failure, rep.Efficiency())
}
