package service

import (
	"net/http"
	"strings"

	"blofin_bot/internal/models"

	"github.com/bytedance/sonic"
)

// Коды 1524xx у BloFin: ключ, подпись, passphrase, timestamp, IP whitelist.
func isAuthCode(code string) bool {
	return len(code) == 6 && strings.HasPrefix(code, "1524")
}

func classifyCode(path, code, msg string, status int) error {
	class := models.ErrExchangeRejection
	switch {
	case isAuthCode(code):
		class = models.ErrAuth
	case code == "429" || status == http.StatusTooManyRequests:
		class = models.ErrTransient
	}
	return models.NewExchangeError(class, path, code, msg, status)
}

func classifyHTTP(path string, status int, body []byte) error {
	var env envelope
	_ = sonic.Unmarshal(body, &env)

	msg := env.Msg
	if msg == "" {
		msg = truncate(body)
	}

	class := models.ErrExchangeRejection
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || isAuthCode(env.Code):
		class = models.ErrAuth
	case status == http.StatusTooManyRequests || status >= 500:
		class = models.ErrTransient
	}
	return models.NewExchangeError(class, path, env.Code, msg, status)
}
