package conversation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CodeLength — длина короткого кода файла.
const CodeLength = 8

// ErrMalformedInput — ввод не соответствует грамматике подсказки.
var ErrMalformedInput = errors.New("неверный формат ввода")

// Selector — ссылка на файл: позиция в последнем списке (с 1) либо короткий код.
// Заполнено ровно одно поле.
type Selector struct {
	Index int
	Code  string
}

// IsIndex сообщает, является ли селектор позиционным.
func (s Selector) IsIndex() bool {
	return s.Code == ""
}

// ParseSelector разбирает селектор удаления.
// Строка из 8 символов — код; более короткое число — позиция в списке.
func ParseSelector(text string) (Selector, error) {
	text = strings.TrimSpace(text)
	if len(text) == CodeLength && IsShortCode(text) {
		return Selector{Code: text}, nil
	}
	if isDigits(text) && len(text) < CodeLength {
		n, err := strconv.Atoi(text)
		if err != nil || n < 1 {
			return Selector{}, fmt.Errorf("%w: номер файла должен быть положительным", ErrMalformedInput)
		}
		return Selector{Index: n}, nil
	}
	return Selector{}, fmt.Errorf("%w: ожидался номер файла или код из %d символов", ErrMalformedInput, CodeLength)
}

// ParseShortCode проверяет, что текст — короткий код.
func ParseShortCode(text string) (string, error) {
	text = strings.TrimSpace(text)
	if !IsShortCode(text) {
		return "", fmt.Errorf("%w: код должен состоять из %d латинских букв и цифр", ErrMalformedInput, CodeLength)
	}
	return text, nil
}

// IsShortCode — ровно CodeLength символов [0-9A-Za-z].
func IsShortCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}

// BanSpec — разобранная команда бана.
// Days == 0 для бессрочного бана.
type BanSpec struct {
	UserID int64
	Days   int
	Reason string
}

// ParseBanSpec разбирает "<id> <дни> <причина>".
// Первые два токена разделяются пробелом, остаток строки — причина.
// Положительность срока проверяет AccessControl.
func ParseBanSpec(text string) (BanSpec, error) {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 3)
	if len(parts) < 3 || strings.TrimSpace(parts[2]) == "" {
		return BanSpec{}, fmt.Errorf("%w: нужно ID ДНИ ПРИЧИНА", ErrMalformedInput)
	}
	id, err := parseUserID(parts[0])
	if err != nil {
		return BanSpec{}, err
	}
	days, err := strconv.Atoi(parts[1])
	if err != nil {
		return BanSpec{}, fmt.Errorf("%w: количество дней должно быть числом", ErrMalformedInput)
	}
	return BanSpec{UserID: id, Days: days, Reason: strings.TrimSpace(parts[2])}, nil
}

// ParsePermanentBanSpec разбирает "<id> <причина>".
func ParsePermanentBanSpec(text string) (BanSpec, error) {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return BanSpec{}, fmt.Errorf("%w: нужно ID ПРИЧИНА", ErrMalformedInput)
	}
	id, err := parseUserID(parts[0])
	if err != nil {
		return BanSpec{}, err
	}
	return BanSpec{UserID: id, Reason: strings.TrimSpace(parts[1])}, nil
}

// ParseUserID разбирает ID пользователя для разбана.
func ParseUserID(text string) (int64, error) {
	return parseUserID(strings.TrimSpace(text))
}

// ParseLimit разбирает новое значение лимита.
// Положительность проверяет QuotaSettings.
func ParseLimit(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: лимит должен быть числом", ErrMalformedInput)
	}
	return n, nil
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: некорректный ID пользователя %q", ErrMalformedInput, s)
	}
	return id, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
