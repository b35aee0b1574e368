package generator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/rejectly/rejectly/internal/domain"
)

// poolEntry is a quest idea before difficulty scaling.
type poolEntry struct {
	Category    string
	Title       string
	Description string
	GoalType    domain.GoalType
	BaseCount   int
}

// questPool is the built-in catalog. Category "" fits any challenge.
var questPool = []poolEntry{
	{"social", "Ask for a discount", "Ask a shop for a discount you are not entitled to.", domain.GoalCollectNos, 1},
	{"social", "Compliment strangers", "Give honest compliments to people you do not know.", domain.GoalTakeAction, 2},
	{"social", "Join a conversation", "Join a group conversation already in progress.", domain.GoalTakeAction, 1},
	{"social", "Request a favor", "Ask strangers for a small favor.", domain.GoalCollectNos, 2},
	{"career", "Cold outreach", "Message people in your field asking for a short call.", domain.GoalCollectNos, 2},
	{"career", "Ask for feedback", "Ask colleagues for blunt feedback on your work.", domain.GoalTakeAction, 1},
	{"career", "Pitch an idea", "Pitch an idea to someone who can say no.", domain.GoalCollectYes, 1},
	{"fitness", "Ask for a spot", "Ask someone at the gym to spot you or share a machine.", domain.GoalCollectNos, 1},
	{"fitness", "Invite a partner", "Invite people to join your workout.", domain.GoalCollectYes, 1},
	{"dating", "Start a conversation", "Start a conversation with someone you find interesting.", domain.GoalTakeAction, 1},
	{"dating", "Ask for a number", "Ask for someone's number.", domain.GoalCollectNos, 1},
	{"", "Collect no's", "Make requests likely to be refused.", domain.GoalCollectNos, 3},
	{"", "Get a yes", "Keep asking until someone agrees.", domain.GoalCollectYes, 1},
	{"", "Do the scary thing", "Take one action you have been putting off.", domain.GoalTakeAction, 1},
}

// scale multiplies goal counts and rewards by difficulty.
var scale = map[domain.Difficulty]int{
	domain.DifficultyEasy:   1,
	domain.DifficultyMedium: 2,
	domain.DifficultyHard:   3,
	domain.DifficultyExpert: 5,
}

// Pool picks quests from the built-in catalog. It never fails for a known
// difficulty, which makes it the usual fallback behind a remote generator.
type Pool struct {
	mu   sync.Mutex
	rng  *rand.Rand
	last map[string]string // user → last title handed out
}

var _ domain.QuestGenerator = (*Pool)(nil)

// NewPool creates a pool with a deterministic random source.
func NewPool(seed int64) *Pool {
	return &Pool{rng: rand.New(rand.NewSource(seed)), last: make(map[string]string)}
}

// Generate picks an entry for the request's category, falling back to
// the general entries, avoiding the title the user got last time.
func (p *Pool) Generate(ctx context.Context, req domain.GenerateRequest) (domain.QuestTemplate, error) {
	if err := ctx.Err(); err != nil {
		return domain.QuestTemplate{}, err
	}
	mult, ok := scale[req.Difficulty]
	if !ok {
		return domain.QuestTemplate{}, fmt.Errorf("pool: unknown difficulty %q", req.Difficulty)
	}

	candidates := entriesFor(req.Category)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	pick := candidates[0]
	for _, e := range candidates {
		if e.Title != p.last[req.UserID] {
			pick = e
			break
		}
	}
	if req.UserID != "" {
		p.last[req.UserID] = pick.Title
	}

	count := pick.BaseCount * mult
	return domain.QuestTemplate{
		Title:       pick.Title,
		Description: pick.Description,
		Category:    req.Category,
		Difficulty:  req.Difficulty,
		GoalType:    pick.GoalType,
		GoalCount:   count,
		XPReward:    int64(25 * count),
		Generated:   true,
	}, nil
}

func entriesFor(category string) []poolEntry {
	var out []poolEntry
	for _, e := range questPool {
		if strings.EqualFold(e.Category, category) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		for _, e := range questPool {
			if e.Category == "" {
				out = append(out, e)
			}
		}
	}
	return out
}
