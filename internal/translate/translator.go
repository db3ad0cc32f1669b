// Package translate turns source-language region text into the target
// language through a remote model or service.
package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"pdf-translator/internal/llm"
	"pdf-translator/internal/types"
)

// Translator translates one piece of text. A successful result is never
// empty.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Func adapts a function to the Translator interface
type Func func(ctx context.Context, text string) (string, error)

// Translate calls f(ctx, text)
func (f Func) Translate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// LanguageName returns the English name of a language tag ("Chinese" for zh)
func LanguageName(tag language.Tag) string {
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// SystemPrompt builds the instruction sent with every translation request
func SystemPrompt(source, target language.Tag) string {
	return fmt.Sprintf("Translate the following %s text into %s. Output only the translation.",
		LanguageName(source), LanguageName(target))
}

// LLMTranslator translates with a chat model
type LLMTranslator struct {
	client *llm.Client
	prompt string
}

// NewLLMTranslator creates a translator from source to target language
func NewLLMTranslator(client *llm.Client, source, target language.Tag) *LLMTranslator {
	return &LLMTranslator{
		client: client,
		prompt: SystemPrompt(source, target),
	}
}

// Translate implements Translator
func (t *LLMTranslator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", types.NewAppError(types.ErrInvalidInput, "empty text", nil)
	}

	return t.client.Generate(ctx, []*schema.Message{
		schema.SystemMessage(t.prompt),
		schema.UserMessage(text),
	})
}
