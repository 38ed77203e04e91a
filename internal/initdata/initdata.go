package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MaxAge is the freshness window for auth_date. Payloads older than this are
// treated as unauthenticated even when the signature checks out.
const MaxAge = 20 * time.Minute

var (
	ErrNoSecret  = errors.New("bot token is not set")
	ErrNoHash    = errors.New("init data has no hash")
	ErrSignature = errors.New("init data signature mismatch")
	ErrStale     = errors.New("init data is stale")
	ErrMalformed = errors.New("init data is malformed")
)

// Identity is the verified subset of the Mini App init data we care about.
type Identity struct {
	UserId   int64  `json:"id"`
	Name     string `json:"first_name"`
	Username string `json:"username"`
	PhotoUrl string `json:"photo_url"`
	AuthDate time.Time
}

// Verify recomputes the WebAppData HMAC over the canonical form of raw and
// checks auth_date freshness against now. Any parse failure is a verification
// failure, never a pass.
func Verify(raw string, botToken string, now time.Time) (*Identity, error) {
	if botToken == "" {
		return nil, ErrNoSecret
	}
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMalformed
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, ErrMalformed
	}
	gotHash := values.Get("hash")
	if gotHash == "" {
		return nil, ErrNoHash
	}
	pairs := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	want := mac.Sum(nil)
	got, err := hex.DecodeString(gotHash)
	if err != nil {
		return nil, ErrSignature
	}
	if !hmac.Equal(want, got) {
		return nil, ErrSignature
	}
	authDateRaw := values.Get("auth_date")
	if authDateRaw == "" {
		return nil, ErrMalformed
	}
	authUnix, err := strconv.ParseInt(authDateRaw, 10, 64)
	if err != nil {
		return nil, ErrMalformed
	}
	authDate := time.Unix(authUnix, 0)
	if now.Sub(authDate) > MaxAge {
		return nil, ErrStale
	}
	identity := &Identity{AuthDate: authDate}
	userRaw := values.Get("user")
	if userRaw == "" {
		return nil, ErrMalformed
	}
	if err := json.Unmarshal([]byte(userRaw), identity); err != nil {
		return nil, ErrMalformed
	}
	if identity.UserId <= 0 {
		return nil, fmt.Errorf("user id %d: %w", identity.UserId, ErrMalformed)
	}
	return identity, nil
}
