package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rejectly/rejectly/internal/domain"
)

func TestOpenAIGenerate(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		content := `{"title":"Ask for a refill","description":"Ask for a free refill","goal_type":"collect_nos","goal_count":3,"xp_reward":50}`
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	defer srv.Close()

	g, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	tmpl, err := g.Generate(context.Background(), domain.GenerateRequest{
		Category: "social", Difficulty: domain.DifficultyHard, Prompt: "Day 70",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.ResponseFormat["type"] != "json_object" {
		t.Errorf("response_format = %v", gotReq.ResponseFormat)
	}
	if !strings.Contains(gotReq.Messages[1].Content, "Day 70") {
		t.Errorf("prompt not forwarded: %q", gotReq.Messages[1].Content)
	}
	if tmpl.Title != "Ask for a refill" || tmpl.GoalType != domain.GoalCollectNos || tmpl.GoalCount != 3 {
		t.Errorf("template = %+v", tmpl)
	}
	if tmpl.Difficulty != domain.DifficultyHard || tmpl.Category != "social" {
		t.Errorf("request fields not applied: %+v", tmpl)
	}
}

func TestOpenAIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	g, _ := NewOpenAI(OpenAIConfig{BaseURL: srv.URL})
	_, err := g.Generate(context.Background(), domain.GenerateRequest{Difficulty: domain.DifficultyEasy})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestOpenAIBadContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"not json"}}]}`))
	}))
	defer srv.Close()

	g, _ := NewOpenAI(OpenAIConfig{BaseURL: srv.URL})
	if _, err := g.Generate(context.Background(), domain.GenerateRequest{}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNewOpenAIRequiresURL(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Fatal("expected error without base url")
	}
}

func TestPoolScalesByDifficulty(t *testing.T) {
	p := NewPool(1)
	ctx := context.Background()
	for _, d := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard, domain.DifficultyExpert} {
		tmpl, err := p.Generate(ctx, domain.GenerateRequest{Category: "career", Difficulty: d})
		if err != nil {
			t.Fatalf("%s: %v", d, err)
		}
		if tmpl.Title == "" || !tmpl.GoalType.Valid() {
			t.Errorf("%s: bad template %+v", d, tmpl)
		}
		if tmpl.GoalCount < scale[d] {
			t.Errorf("%s: goal count %d below multiplier %d", d, tmpl.GoalCount, scale[d])
		}
	}
}

func TestPoolUnknownCategoryUsesGeneral(t *testing.T) {
	p := NewPool(7)
	tmpl, err := p.Generate(context.Background(), domain.GenerateRequest{Category: "knitting", Difficulty: domain.DifficultyEasy})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range questPool {
		if e.Category == "" && e.Title == tmpl.Title {
			found = true
		}
	}
	if !found {
		t.Errorf("title %q is not a general entry", tmpl.Title)
	}
	if tmpl.Category != "knitting" {
		t.Errorf("category = %q", tmpl.Category)
	}
}

func TestPoolAvoidsRepeatForUser(t *testing.T) {
	p := NewPool(3)
	req := domain.GenerateRequest{Category: "social", Difficulty: domain.DifficultyEasy, UserID: "u1"}
	prev := ""
	for i := 0; i < 10; i++ {
		tmpl, err := p.Generate(context.Background(), req)
		if err != nil {
			t.Fatal(err)
		}
		if tmpl.Title == prev {
			t.Fatalf("round %d repeated %q", i, prev)
		}
		prev = tmpl.Title
	}
}

func TestPoolUnknownDifficulty(t *testing.T) {
	if _, err := NewPool(1).Generate(context.Background(), domain.GenerateRequest{Difficulty: "LEGENDARY"}); err == nil {
		t.Fatal("expected error")
	}
}

type stubGen struct {
	tmpl  domain.QuestTemplate
	err   error
	calls int
}

func (s *stubGen) Generate(context.Context, domain.GenerateRequest) (domain.QuestTemplate, error) {
	s.calls++
	return s.tmpl, s.err
}

func TestFallback(t *testing.T) {
	primary := &stubGen{err: errors.New("down")}
	secondary := &stubGen{tmpl: domain.QuestTemplate{Title: "local"}}
	f := &Fallback{Primary: primary, Secondary: secondary}

	tmpl, err := f.Generate(context.Background(), domain.GenerateRequest{})
	if err != nil || tmpl.Title != "local" {
		t.Fatalf("got %+v, %v", tmpl, err)
	}

	primary.err = nil
	primary.tmpl = domain.QuestTemplate{Title: "remote"}
	tmpl, _ = f.Generate(context.Background(), domain.GenerateRequest{})
	if tmpl.Title != "remote" || secondary.calls != 1 {
		t.Errorf("primary success should not call secondary: %+v, calls=%d", tmpl, secondary.calls)
	}
}
