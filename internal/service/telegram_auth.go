package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"earning_bot/internal/domain"
)

var ErrInvalidInitData = errors.New("невалидные init data")

// проверяет HMAC Telegram WebApp init_data и убеждается,
// что auth_date недавний (в течение 1 часа) для предотвращения replay-атак
func ValidateTelegramInitData(initData, botToken string) (url.Values, bool) {
	return validateInitDataAt(initData, botToken, time.Now())
}

func validateInitDataAt(initData, botToken string, now time.Time) (url.Values, bool) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, false
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, false
	}
	values.Del("hash")

	provided, err := hex.DecodeString(hash)
	if err != nil {
		return nil, false
	}
	if !hmac.Equal(initDataHash(values, botToken), provided) {
		return nil, false
	}

	// проверка актуальности: требуем auth_date в течение последнего часа
	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, false
	}
	// разрешаем небольшую рассинхронизацию часов, но отклоняем всё старше 1 часа
	unix := now.Unix()
	if unix-authDate > 3600 || authDate-unix > 300 {
		return nil, false
	}

	return values, true
}

// initDataHash - HMAC по отсортированным парам key=value;
// ключ Telegram WebApp: HMAC("WebAppData", botToken)
func initDataHash(values url.Values, botToken string) []byte {
	var dataCheck []string
	for k, v := range values {
		dataCheck = append(dataCheck, k+"="+strings.Join(v, ""))
	}
	sort.Strings(dataCheck)

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botToken))
	h := hmac.New(sha256.New, secretKey.Sum(nil))
	h.Write([]byte(strings.Join(dataCheck, "\n")))
	return h.Sum(nil)
}

// ParseInitData проверяет init_data и достает профиль и реферальный код из start_param
func ParseInitData(initData, botToken string) (domain.Profile, string, error) {
	values, ok := ValidateTelegramInitData(initData, botToken)
	if !ok {
		return domain.Profile{}, "", ErrInvalidInitData
	}
	var p domain.Profile
	if err := json.Unmarshal([]byte(values.Get("user")), &p); err != nil || p.TgID == 0 {
		return domain.Profile{}, "", ErrInvalidInitData
	}
	return p, values.Get("start_param"), nil
}
