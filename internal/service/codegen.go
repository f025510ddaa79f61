// codegen.go — генерация коротких кодов файлов.
package service

import (
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"

	"github.com/SanchoysArt/sanchofile/internal/domain/conversation"
)

// base62Alphabet — алфавит коротких кодов.
const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// CodeGenerator возвращает случайный короткий код.
type CodeGenerator func() string

// NewCodeGenerator создаёт генератор кодов длины conversation.CodeLength
// из алфавита [0-9A-Za-z] на криптографическом источнике случайности.
func NewCodeGenerator() (CodeGenerator, error) {
	gen, err := nanoid.CustomASCII(base62Alphabet, conversation.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания генератора кодов: %w", err)
	}
	return CodeGenerator(gen), nil
}
