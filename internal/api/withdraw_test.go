package api

import (
	"testing"
	"time"

	"github.com/makremffff/adwatch-backend/internal/actiontoken"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

func TestWithdrawDebitsIntoPendingPayout(t *testing.T) {
	app := newTestApp(t)
	seedUser(t, app, miniapp.User{Id: 777, Balance: 150})
	token := issueToken(t, app, 777, "withdraw")

	status, resp := perform(t, app, map[string]interface{}{
		"type":      "withdraw",
		"init_data": signInitData(t, 777, "Alice", time.Now()),
		"action_id": token,
		"amount":    120,
		"email":     "alice@example.com",
	})
	if status != 200 || !resp.Ok {
		t.Fatalf("withdraw: %d %v", status, resp.Error)
	}
	user := loadUser(t, app, 777)
	if user.Balance != 30 {
		t.Fatalf("balance = %v, want 30", user.Balance)
	}
	var payout miniapp.Payout
	if err := app.Db.Where("user_id = ?", 777).First(&payout).Error; err != nil {
		t.Fatalf("payout row: %v", err)
	}
	if payout.Amount != 120 || payout.Rail != miniapp.PayoutRailEmail || payout.Status != miniapp.PayoutStatusPending {
		t.Fatalf("payout = %+v", payout)
	}
}

func TestWithdrawValidation(t *testing.T) {
	app := newTestApp(t)
	seedUser(t, app, miniapp.User{Id: 777, Balance: 500})
	initData := signInitData(t, 777, "Alice", time.Now())

	cases := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{
			name: "below minimum",
			body: map[string]interface{}{"amount": 50, "email": "alice@example.com"},
			want: 400,
		},
		{
			name: "over balance",
			body: map[string]interface{}{"amount": 600, "email": "alice@example.com"},
			want: 400,
		},
		{
			name: "no destination",
			body: map[string]interface{}{"amount": 120},
			want: 400,
		},
		{
			name: "both destinations",
			body: map[string]interface{}{"amount": 120, "email": "alice@example.com", "wallet": "TRX9aaaaaa"},
			want: 400,
		},
		{
			name: "bad email",
			body: map[string]interface{}{"amount": 120, "email": "not-an-email"},
			want: 400,
		},
		{
			name: "short wallet",
			body: map[string]interface{}{"amount": 120, "wallet": "abc"},
			want: 400,
		},
	}
	for _, tc := range cases {
		calmUser(t, app, 777)
		body := map[string]interface{}{
			"type":      "withdraw",
			"init_data": initData,
			"action_id": issueToken(t, app, 777, "withdraw"),
		}
		for k, v := range tc.body {
			body[k] = v
		}
		status, _ := perform(t, app, body)
		if status != tc.want {
			t.Fatalf("%s: status %d, want %d", tc.name, status, tc.want)
		}
	}
	user := loadUser(t, app, 777)
	if user.Balance != 500 {
		t.Fatalf("balance after rejected withdrawals = %v, want 500", user.Balance)
	}
}

func TestWithdrawPerUserMinimumRaisesFloor(t *testing.T) {
	app := newTestApp(t)
	seedUser(t, app, miniapp.User{Id: 777, Balance: 500, WithdrawMin: 300})

	status, _ := perform(t, app, map[string]interface{}{
		"type":      "withdraw",
		"init_data": signInitData(t, 777, "Alice", time.Now()),
		"action_id": issueToken(t, app, 777, "withdraw"),
		"amount":    200,
		"email":     "alice@example.com",
	})
	if status != 400 {
		t.Fatalf("below the personal floor: status %d, want 400", status)
	}
}

func TestWithdrawPayoutWriteFailureLeavesBalance(t *testing.T) {
	app := newTestApp(t)
	seedUser(t, app, miniapp.User{Id: 777, Balance: 150})
	token := issueToken(t, app, 777, "withdraw")
	if err := app.Db.Migrator().DropTable(&miniapp.Payout{}); err != nil {
		t.Fatalf("drop payouts: %v", err)
	}

	status, _ := perform(t, app, map[string]interface{}{
		"type":      "withdraw",
		"init_data": signInitData(t, 777, "Alice", time.Now()),
		"action_id": token,
		"amount":    120,
		"email":     "alice@example.com",
	})
	if status != 500 {
		t.Fatalf("payout write failure: status %d, want 500", status)
	}
	user := loadUser(t, app, 777)
	if user.Balance != 150 {
		t.Fatalf("debit survived a failed payout write: balance %v, want 150", user.Balance)
	}
	// the whole attempt rolled back, so the token is still there for a retry
	var tokens int64
	app.Db.Model(&actiontoken.Token{}).Where("token = ?", token).Count(&tokens)
	if tokens != 1 {
		t.Fatalf("token rows = %d, want the unconsumed token back", tokens)
	}
}

func TestWithdrawTooSoonAfterPrevious(t *testing.T) {
	app := newTestApp(t)
	seedUser(t, app, miniapp.User{Id: 777, Balance: 500, LastWithdrawAt: time.Now().Unix()})

	status, _ := perform(t, app, map[string]interface{}{
		"type":      "withdraw",
		"init_data": signInitData(t, 777, "Alice", time.Now()),
		"action_id": issueToken(t, app, 777, "withdraw"),
		"amount":    120,
		"email":     "alice@example.com",
	})
	if status != 429 {
		t.Fatalf("back-to-back withdrawals: status %d, want 429", status)
	}
	user := loadUser(t, app, 777)
	if user.Balance != 500 {
		t.Fatalf("paced-out withdrawal moved the balance: %v", user.Balance)
	}
}

func TestWithdrawShadowBannedLeavesNoPayout(t *testing.T) {
	app := newTestApp(t)
	seedUser(t, app, miniapp.User{Id: 777, Balance: 150, ShadowBanned: true})

	status, resp := perform(t, app, map[string]interface{}{
		"type":      "withdraw",
		"init_data": signInitData(t, 777, "Alice", time.Now()),
		"action_id": issueToken(t, app, 777, "withdraw"),
		"amount":    120,
		"email":     "alice@example.com",
	})
	if status != 200 || !resp.Ok {
		t.Fatalf("shadowed withdraw should look normal: %d %v", status, resp.Error)
	}
	user := loadUser(t, app, 777)
	if user.Balance != 150 {
		t.Fatalf("stored balance moved: %v", user.Balance)
	}
	var payouts int64
	app.Db.Model(&miniapp.Payout{}).Count(&payouts)
	if payouts != 0 {
		t.Fatalf("payout rows = %d, want none for a shadowed account", payouts)
	}
}
