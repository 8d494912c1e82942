package httpserver

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"earning_bot/internal/cache"
	"earning_bot/internal/domain"
	"earning_bot/internal/http/handlers"
	"earning_bot/internal/repository"
	"earning_bot/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBotToken = "test-bot-token"
	adminTgID    = 900
)

type api struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	settings := service.NewSettingsService(store, cache.NewMemory())
	ledger := service.NewLedgerService(store)
	h := &handlers.Handler{
		Accounts:    service.NewAccountService(store, settings, ledger, nil, "earnbot", time.UTC),
		Rewards:     service.NewRewardService(store, settings, ledger, nil, time.UTC),
		Withdrawals: service.NewWithdrawalService(store, settings, nil, nil),
		Referrals:   service.NewReferralService(store, settings, ledger, nil, nil),
		Ledger:      ledger,
		Settings:    settings,
		Audit:       service.NewAuditService(store),
		JWT:         service.NewJWTManager("secret", time.Hour),
		BotToken:    testBotToken,
	}
	r := NewRouter(RouterConfig{Handler: h, AdminIDs: []int64{adminTgID}, Version: "test"})
	return &api{t: t, router: r}
}

func initData(tgID int64, startParam string) string {
	fields := map[string]string{
		"auth_date": strconv.FormatInt(time.Now().Unix(), 10),
		"user":      `{"id":` + strconv.FormatInt(tgID, 10) + `,"username":"u` + strconv.FormatInt(tgID, 10) + `"}`,
	}
	if startParam != "" {
		fields["start_param"] = startParam
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(testBotToken))
	h := hmac.New(sha256.New, secret.Sum(nil))
	h.Write([]byte(strings.Join(parts, "\n")))

	vals := url.Values{}
	for k, v := range fields {
		vals.Set(k, v)
	}
	vals.Set("hash", hex.EncodeToString(h.Sum(nil)))
	return vals.Encode()
}

func (a *api) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

// login возвращает токен и данные аккаунта
func (a *api) login(tgID int64, startParam string) (string, map[string]any) {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/api/auth/telegram", "", gin.H{"init_data": initData(tgID, startParam)})
	require.Equal(a.t, http.StatusOK, code, body)
	token, _ := body["token"].(string)
	require.NotEmpty(a.t, token)
	return token, body["account"].(map[string]any)
}

func TestPublicEndpoints(t *testing.T) {
	a := newAPI(t)

	code, body := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	code, _ = a.do(http.MethodGet, "/api/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(http.MethodPost, "/api/auth/telegram", "", gin.H{"init_data": "user=1&hash=ff"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = a.do(http.MethodPost, "/api/auth/telegram", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestInitDataHeaderAuth(t *testing.T) {
	a := newAPI(t)
	a.login(100, "")

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("X-Telegram-Init-Data", initData(100, ""))
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// незарегистрированный пользователь
	req = httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("X-Telegram-Init-Data", initData(101, ""))
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWatchAdFlow(t *testing.T) {
	a := newAPI(t)
	token, _ := a.login(100, "")

	code, body := a.do(http.MethodPost, "/api/watch-ad", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["allowed"])
	assert.Equal(t, "5", body["new_balance"])

	// сразу второй раз - кулдаун, но это не ошибка
	code, body = a.do(http.MethodPost, "/api/watch-ad", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, string(domain.ReasonCooldownActive), body["reason"])

	code, body = a.do(http.MethodGet, "/api/history/earnings", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["history"], 1)

	code, body = a.do(http.MethodGet, "/api/history/ad", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["history"], 1)

	code, _ = a.do(http.MethodGet, "/api/history/bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = a.do(http.MethodGet, "/api/user", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "5", body["today_earnings"])
}

func TestAdminRequired(t *testing.T) {
	a := newAPI(t)
	token, _ := a.login(100, "")

	code, _ := a.do(http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	admin, _ := a.login(adminTgID, "")
	code, body := a.do(http.MethodGet, "/api/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["total"])
}

func TestTaskFlow(t *testing.T) {
	a := newAPI(t)
	admin, _ := a.login(adminTgID, "")
	user, _ := a.login(100, "")

	code, _ := a.do(http.MethodPost, "/api/admin/tasks", admin, gin.H{"title": "", "reward": "10"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, task := a.do(http.MethodPost, "/api/admin/tasks", admin, gin.H{"title": "YouTube Subscribe", "reward": "10", "url": "https://youtube.com"})
	require.Equal(t, http.StatusCreated, code)
	taskID := strconv.Itoa(int(task["id"].(float64)))

	code, body := a.do(http.MethodGet, "/api/tasks", user, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["tasks"], 1)

	code, body = a.do(http.MethodPost, "/api/tasks/"+taskID+"/complete", user, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["allowed"])
	assert.Equal(t, "10", body["new_balance"])

	code, body = a.do(http.MethodPost, "/api/tasks/"+taskID+"/complete", user, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(domain.ReasonAlreadyCompleted), body["reason"])

	code, _ = a.do(http.MethodPost, "/api/tasks/999/complete", user, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(http.MethodPost, "/api/tasks/abc/complete", user, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = a.do(http.MethodPost, "/api/admin/tasks/"+taskID+"/toggle", admin, gin.H{"active": false})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["is_active"])

	code, body = a.do(http.MethodGet, "/api/tasks", user, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["tasks"], 0)
}

func TestWithdrawalFlow(t *testing.T) {
	a := newAPI(t)
	admin, _ := a.login(adminTgID, "")
	user, _ := a.login(100, "")

	cfg := domain.DefaultEarningConfig()
	cfg.MinWithdraw = decimal.NewFromInt(5)
	code, body := a.do(http.MethodPut, "/api/admin/settings", admin, cfg)
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 1, body["version"])

	cfg.AdDailyLimit = -1
	code, _ = a.do(http.MethodPut, "/api/admin/settings", admin, cfg)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = a.do(http.MethodPost, "/api/withdraw", user, gin.H{"amount": "5", "method": "bkash", "account_number": "01712345678"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(domain.ReasonInsufficientBalance), body["reason"])

	code, _ = a.do(http.MethodPost, "/api/watch-ad", user, nil)
	require.Equal(t, http.StatusOK, code)

	code, body = a.do(http.MethodPost, "/api/withdraw", user, gin.H{"amount": "5", "method": "bkash", "account_number": "01712345678"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["allowed"], body)
	w := body["withdrawal"].(map[string]any)
	id := strconv.Itoa(int(w["id"].(float64)))

	code, body = a.do(http.MethodGet, "/api/admin/withdrawals/pending", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["withdrawals"], 1)

	code, _ = a.do(http.MethodPost, "/api/admin/withdrawals/"+id+"/maybe", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = a.do(http.MethodPost, "/api/admin/withdrawals/"+id+"/approve", admin, gin.H{"notes": "paid"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, string(domain.WithdrawalStatusApproved), body["status"])

	code, _ = a.do(http.MethodPost, "/api/admin/withdrawals/"+id+"/reject", admin, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = a.do(http.MethodPost, "/api/admin/withdrawals/999/approve", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = a.do(http.MethodGet, "/api/user", user, nil)
	require.Equal(t, http.StatusOK, code)
	acc := body["account"].(map[string]any)
	assert.Equal(t, "0", acc["balance"])
	assert.Equal(t, "5", acc["total_withdrawn"])

	code, body = a.do(http.MethodGet, "/api/history/withdrawals", user, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["history"], 1)
}

func TestReferralFlow(t *testing.T) {
	a := newAPI(t)
	admin, _ := a.login(adminTgID, "")
	referrerToken, referrer := a.login(100, "")
	a.login(200, "ref_"+referrer["referral_code"].(string))

	code, body := a.do(http.MethodGet, "/api/referrals", referrerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, "https://t.me/earnbot?start=ref_"+referrer["referral_code"].(string), body["link"])
	edges := body["referrals"].([]any)
	require.Len(t, edges, 1)
	edgeID := strconv.Itoa(int(edges[0].(map[string]any)["id"].(float64)))

	code, body = a.do(http.MethodPost, "/api/admin/referrals/"+edgeID+"/pay", admin, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "10", body["amount"])

	code, body = a.do(http.MethodPost, "/api/admin/referrals/"+edgeID+"/pay", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, string(domain.ReasonBonusAlreadyPaid), body["reason"])
}

func TestAdminBanToggle(t *testing.T) {
	a := newAPI(t)
	admin, _ := a.login(adminTgID, "")
	user, acc := a.login(100, "")
	id := strconv.Itoa(int(acc["id"].(float64)))

	code, body := a.do(http.MethodPost, "/api/admin/users/"+id+"/ban", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["is_banned"])

	code, body = a.do(http.MethodPost, "/api/watch-ad", user, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(domain.ReasonAccountBanned), body["reason"])

	code, body = a.do(http.MethodPost, "/api/admin/users/"+id+"/ban", admin, gin.H{"banned": false})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["is_banned"])

	// без тела - переключение от текущего состояния
	code, body = a.do(http.MethodPost, "/api/admin/users/"+id+"/ban", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["is_banned"])
	code, body = a.do(http.MethodPost, "/api/admin/users/"+id+"/ban", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["is_banned"])

	code, body = a.do(http.MethodGet, "/api/admin/audit?account_id="+id, admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["logs"])

	code, _ = a.do(http.MethodPost, "/api/admin/users/999/ban", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminSettingsPartialUpdate(t *testing.T) {
	a := newAPI(t)
	admin, _ := a.login(adminTgID, "")
	def := domain.DefaultEarningConfig()

	code, body := a.do(http.MethodPut, "/api/admin/settings", admin, gin.H{"ad_daily_limit": 3})
	require.Equal(t, http.StatusOK, code, body)

	code, body = a.do(http.MethodGet, "/api/admin/settings", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["ad_daily_limit"])
	assert.Equal(t, def.AdReward.String(), body["ad_reward"])
	assert.Equal(t, def.MinWithdraw.String(), body["min_withdraw"])
	assert.EqualValues(t, def.AdCooldownSeconds, body["ad_cooldown_seconds"])
	assert.Len(t, body["withdraw_methods"], len(def.WithdrawMethods))

	// второе частичное обновление не откатывает первое
	code, body = a.do(http.MethodPut, "/api/admin/settings", admin, gin.H{"min_withdraw": "20"})
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 2, body["version"])
	cfg := body["config"].(map[string]any)
	assert.EqualValues(t, 3, cfg["ad_daily_limit"])
	assert.Equal(t, "20", cfg["min_withdraw"])

	code, _ = a.do(http.MethodPut, "/api/admin/settings", admin, gin.H{"ad_reward": "0"})
	assert.Equal(t, http.StatusBadRequest, code)
}
