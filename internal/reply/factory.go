package reply

import (
	"fmt"
	"net/http"
)

// NewCompleter returns the Completer for a configured provider name.
//
//nolint:ireturn
func NewCompleter(provider string, httpClient *http.Client) (Completer, error) {
	switch provider {
	case "", "openai":
		return NewHTTPCompleter(httpClient), nil
	case "gemini":
		return NewGeminiCompleter(), nil
	default:
		return nil, fmt.Errorf("unknown reply provider %q", provider)
	}
}
