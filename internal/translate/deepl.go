package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/text/language"

	"pdf-translator/internal/types"
)

// DeepLTranslator uses the DeepL v2 REST API
type DeepLTranslator struct {
	client *http.Client
	url    string
	token  string
	source string
	target string
}

// NewDeepLTranslator creates a DeepL client. baseURL is the API host,
// e.g. https://api-free.deepl.com. A nil client uses http.DefaultClient.
func NewDeepLTranslator(baseURL, token string, source, target language.Tag, client *http.Client) *DeepLTranslator {
	if baseURL == "" {
		baseURL = "https://api-free.deepl.com"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &DeepLTranslator{
		client: client,
		url:    baseURL,
		token:  token,
		source: deeplSourceCode(source),
		target: deeplTargetCode(target),
	}
}

func deeplSourceCode(tag language.Tag) string {
	base, _ := tag.Base()
	return strings.ToUpper(base.String())
}

// DeepL wants a regional variant for a few target languages
func deeplTargetCode(tag language.Tag) string {
	base, _ := tag.Base()
	switch code := strings.ToUpper(base.String()); code {
	case "EN":
		if region, conf := tag.Region(); conf == language.Exact && region.String() == "GB" {
			return "EN-GB"
		}
		return "EN-US"
	case "PT":
		return "PT-BR"
	default:
		return code
	}
}

type deeplRequest struct {
	Text       []string `json:"text"`
	SourceLang string   `json:"source_lang,omitempty"`
	TargetLang string   `json:"target_lang"`
}

type deeplResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate implements Translator
func (t *DeepLTranslator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", types.NewAppError(types.ErrInvalidInput, "empty text", nil)
	}

	body, err := json.Marshal(deeplRequest{
		Text:       []string{strings.TrimSpace(text)},
		SourceLang: t.source,
		TargetLang: t.target,
	})
	if err != nil {
		return "", types.NewAppError(types.ErrAPICall, "failed to encode request", err)
	}

	u, err := url.JoinPath(t.url, "/v2/translate")
	if err != nil {
		return "", types.NewAppError(types.ErrConfig, "invalid DeepL URL", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrAPICall, "failed to create request", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+t.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", types.NewAppError(types.ErrAPICall, "DeepL request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", convertStatus(resp)
	}

	var result deeplResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", types.NewAppError(types.ErrAPICall, "failed to decode DeepL response", err)
	}
	if len(result.Translations) == 0 || strings.TrimSpace(result.Translations[0].Text) == "" {
		return "", types.NewAppError(types.ErrAPICall, "empty DeepL response", nil)
	}
	return strings.TrimSpace(result.Translations[0].Text), nil
}

func convertStatus(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	details := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppErrorWithDetails(types.ErrAPIRateLimit, "DeepL rate limit exceeded", details, nil)
	case resp.StatusCode == 456:
		return types.NewAppErrorWithDetails(types.ErrAPICall, "DeepL quota exceeded", details, nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return types.NewAppErrorWithDetails(types.ErrAPICall, "DeepL authentication failed", details, nil)
	case resp.StatusCode >= 500:
		return types.NewAppErrorWithDetails(types.ErrAPICall, "DeepL server error", details, nil)
	default:
		return types.NewAppErrorWithDetails(types.ErrAPICall, "invalid request", details, nil)
	}
}
