package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tiny-little/royale-web/internal/backend"
)

// TelegramMaxAge is how old a Telegram login widget payload may be
const TelegramMaxAge = 24 * time.Hour

var ErrTelegramMissingFields = errors.New("missing required telegram parameters (id, hash, auth_date)")
var ErrTelegramExpired = errors.New("telegram authentication data is older than 24 hours")
var ErrTelegramInvalidHash = errors.New("invalid telegram authentication hash")

// telegramPayload is the login widget's callback data, kept as the raw field set so
// that the hash can be checked over exactly the fields Telegram signed
type telegramPayload map[string]string

func parseTelegramPayload(body []byte) (telegramPayload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	payload := make(telegramPayload, len(raw))
	for key, value := range raw {
		if string(value) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			payload[key] = s
			continue
		}
		// Numbers (id, auth_date) are signed in their decimal form
		payload[key] = string(value)
	}
	return payload, nil
}

func (p telegramPayload) validate(now time.Time) error {
	if p["id"] == "" || p["hash"] == "" || p["auth_date"] == "" {
		return ErrTelegramMissingFields
	}
	authDate, err := strconv.ParseInt(p["auth_date"], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid auth_date: %w", err)
	}
	if now.Unix()-authDate > int64(TelegramMaxAge/time.Second) {
		return ErrTelegramExpired
	}
	return nil
}

// dataCheckString is every field except hash, sorted by key, as key=value lines
func (p telegramPayload) dataCheckString() string {
	keys := make([]string, 0, len(p))
	for key := range p {
		if key != "hash" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+p[key])
	}
	return strings.Join(lines, "\n")
}

// verify checks the payload's hash: HMAC-SHA256 of the data check string, keyed with
// the SHA-256 digest of the bot token
func (p telegramPayload) verify(botToken string) bool {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(p.dataCheckString()))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(p["hash"])))
}

func (p telegramPayload) identity() backend.OAuthIdentity {
	id := p["id"]
	name := p["username"]
	if name == "" {
		name = p["first_name"]
	}
	if name == "" {
		name = "telegram_" + id
	}
	return backend.OAuthIdentity{
		Name:     name,
		Image:    p["photo_url"],
		Email:    id + "@telegram.me",
		Provider: "telegram",
		Sub:      id,
	}
}
