package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v3"

	"github.com/rejectly/rejectly/internal/domain"
)

func TestExpoSend(t *testing.T) {
	var got expoMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"data":{"status":"ok","id":"abc"}}`))
	}))
	defer srv.Close()

	res := NewExpo(srv.URL, "tok", 0).Send(context.Background(), domain.PushMessage{
		Token: "ExponentPushToken[x]", Title: "Hi", Body: "there", Data: map[string]string{"k": "v"},
	})
	if !res.Success {
		t.Fatalf("send failed: %s", res.Error)
	}
	if got.To != "ExponentPushToken[x]" || got.Title != "Hi" || got.Data["k"] != "v" {
		t.Errorf("payload = %+v", got)
	}
	if auth != "Bearer tok" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestExpoTicketError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"status":"error","message":"DeviceNotRegistered"}}`))
	}))
	defer srv.Close()

	res := NewExpo(srv.URL, "", 0).Send(context.Background(), domain.PushMessage{Token: "ExponentPushToken[x]"})
	if res.Success || !strings.Contains(res.Error, "DeviceNotRegistered") {
		t.Fatalf("result = %+v", res)
	}
	if res.Transport {
		t.Error("a rejected ticket is a device failure, not a gateway failure")
	}
}

func TestExpoHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"code":"VALIDATION_ERROR","message":"bad token"}]}`))
	}))
	defer srv.Close()

	res := NewExpo(srv.URL, "", 0).Send(context.Background(), domain.PushMessage{Token: "x"})
	if res.Success || !strings.Contains(res.Error, "bad token") || !res.Transport {
		t.Fatalf("result = %+v", res)
	}
}

type fakeBot struct {
	to   tele.Recipient
	text string
	err  error
}

func (f *fakeBot) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.to = to
	f.text, _ = what.(string)
	return &tele.Message{}, f.err
}

func TestTelegramSend(t *testing.T) {
	bot := &fakeBot{}
	g := &Telegram{bot: bot}

	res := g.Send(context.Background(), domain.PushMessage{Token: "tg:12345", Title: "Day 3", Body: "Go!"})
	if !res.Success {
		t.Fatalf("send failed: %s", res.Error)
	}
	if bot.to.Recipient() != "12345" || bot.text != "Day 3\nGo!" {
		t.Errorf("sent %q to %q", bot.text, bot.to.Recipient())
	}

	bot.err = errors.New("chat not found")
	if res := g.Send(context.Background(), domain.PushMessage{Token: "tg:1"}); res.Success {
		t.Error("expected failure")
	}
	if res := g.Send(context.Background(), domain.PushMessage{Token: "tg:abc"}); res.Success {
		t.Error("expected bad chat id failure")
	}
}

type countingGateway struct {
	name string
	sent int
}

func (c *countingGateway) Name() string { return c.name }
func (c *countingGateway) Send(context.Context, domain.PushMessage) domain.PushResult {
	c.sent++
	return domain.PushResult{Success: true}
}

func TestRouter(t *testing.T) {
	tg := &countingGateway{name: "tg"}
	expo := &countingGateway{name: "expo"}
	r := &Router{Routes: []Route{{Prefix: TelegramPrefix, Gateway: tg}, {Prefix: "ExponentPushToken", Gateway: expo}}}

	r.Send(context.Background(), domain.PushMessage{Token: "tg:1"})
	r.Send(context.Background(), domain.PushMessage{Token: "ExponentPushToken[a]"})
	r.Send(context.Background(), domain.PushMessage{Token: "ExponentPushToken[b]"})
	if tg.sent != 1 || expo.sent != 2 {
		t.Errorf("tg=%d expo=%d", tg.sent, expo.sent)
	}

	if res := r.Send(context.Background(), domain.PushMessage{Token: "other"}); res.Success {
		t.Error("unroutable token should fail without a default")
	}
	r.Default = Log{}
	if res := r.Send(context.Background(), domain.PushMessage{Token: "other"}); !res.Success {
		t.Error("default gateway should handle unmatched tokens")
	}
}
