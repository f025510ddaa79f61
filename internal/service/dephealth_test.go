// dephealth_test.go — unit-тесты разбора адреса Telegram Bot API для dephealth.
package service

import (
	"testing"
)

// TestTelegramHealthTarget проверяет разбор адреса Bot API.
func TestTelegramHealthTarget(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantBase string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "пустой адрес — значение по умолчанию",
			input:    "",
			wantBase: "https://api.telegram.org",
			wantPath: "/",
		},
		{
			name:     "локальный Bot API сервер с портом",
			input:    "http://tg-bot-api:8081",
			wantBase: "http://tg-bot-api:8081",
			wantPath: "/",
		},
		{
			name:     "адрес с путём",
			input:    "https://proxy.example.com/telegram",
			wantBase: "https://proxy.example.com",
			wantPath: "/telegram",
		},
		{
			name:    "без схемы",
			input:   "api.telegram.org",
			wantErr: true,
		},
		{
			name:    "неподдерживаемая схема",
			input:   "ftp://api.telegram.org",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, path, err := telegramHealthTarget(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("telegramHealthTarget(%q) — ожидалась ошибка, получено: %q %q", tt.input, base, path)
				}
				return
			}
			if err != nil {
				t.Fatalf("telegramHealthTarget(%q) — неожиданная ошибка: %v", tt.input, err)
			}
			if base != tt.wantBase {
				t.Errorf("base = %q, ожидалось %q", base, tt.wantBase)
			}
			if path != tt.wantPath {
				t.Errorf("path = %q, ожидалось %q", path, tt.wantPath)
			}
		})
	}
}
