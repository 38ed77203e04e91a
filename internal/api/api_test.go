package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/makremffff/adwatch-backend/internal/actiontoken"
	"github.com/makremffff/adwatch-backend/internal/api/middleware"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

const testBotToken = "12345:test-bot-token"

type memberStub struct {
	member bool
	err    error
}

func (s memberStub) IsMember(ctx context.Context, chatId string, userId int64) (bool, error) {
	return s.member, s.err
}

func newTestApp(t *testing.T) *miniapp.App {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&miniapp.User{},
		&miniapp.Task{},
		&miniapp.TaskCompletion{},
		&miniapp.Payout{},
		&miniapp.Incident{},
		&miniapp.Ref{},
		&actiontoken.Token{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &miniapp.App{
		Db:         db,
		Membership: memberStub{member: true},
		BotToken:   testBotToken,
	}
}

type envelope struct {
	Ok    bool                   `json:"ok"`
	Error string                 `json:"error"`
	Data  map[string]interface{} `json:"data"`
}

func perform(t *testing.T, app *miniapp.App, body map[string]interface{}) (int, envelope) {
	t.Helper()
	return performAs(t, app, body, "")
}

// performAs drives the request through the session middleware with the given
// Authorization header, the way the production router does.
func performAs(t *testing.T, app *miniapp.App, body map[string]interface{}, auth string) (int, envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("app", app) })
	router.POST("/", middleware.Session(), Dispatch)

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return w.Code, resp
}

// signInitData builds a Mini App payload signed with the test bot token.
func signInitData(t *testing.T, userId int64, name string, authDate time.Time) string {
	t.Helper()
	userJson, err := json.Marshal(map[string]interface{}{
		"id":         userId,
		"first_name": name,
	})
	if err != nil {
		t.Fatalf("marshal user: %v", err)
	}
	values := url.Values{}
	values.Set("user", string(userJson))
	values.Set("auth_date", fmt.Sprintf("%d", authDate.Unix()))
	values.Set("query_id", "AAHtest")

	pairs := make([]string, 0, len(values))
	for key := range values {
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(testBotToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func seedUser(t *testing.T, app *miniapp.App, user miniapp.User) *miniapp.User {
	t.Helper()
	if err := app.Db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %d: %v", user.Id, err)
	}
	return &user
}

func loadUser(t *testing.T, app *miniapp.App, id int64) miniapp.User {
	t.Helper()
	var user miniapp.User
	if err := app.Db.Where("id = ?", id).First(&user).Error; err != nil {
		t.Fatalf("load user %d: %v", id, err)
	}
	return user
}

// calmUser rewinds the pacing stamps so the next scored action is not "too
// fast" relative to the previous test step.
func calmUser(t *testing.T, app *miniapp.App, id int64) {
	t.Helper()
	old := time.Now().Add(-time.Minute).Unix()
	err := app.Db.Model(&miniapp.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_ad_at":       old,
		"last_spin_at":     old,
		"last_task_at":     old,
		"last_withdraw_at": old,
		"last_seen_at":     old,
	}).Error
	if err != nil {
		t.Fatalf("calm user %d: %v", id, err)
	}
}

func issueToken(t *testing.T, app *miniapp.App, userId int64, action string) string {
	t.Helper()
	token, err := tokenManager(app).Generate(userId, action, "")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token.Token
}

func countIncidents(t *testing.T, app *miniapp.App, userId int64, kind string) int64 {
	t.Helper()
	var n int64
	app.Db.Model(&miniapp.Incident{}).Where("user_id = ? AND kind = ?", userId, kind).Count(&n)
	return n
}
