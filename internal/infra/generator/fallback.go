package generator

import (
	"context"
	"log"

	"github.com/rejectly/rejectly/internal/domain"
)

// Fallback tries Primary and, when it fails, Secondary.
type Fallback struct {
	Primary   domain.QuestGenerator
	Secondary domain.QuestGenerator
}

var _ domain.QuestGenerator = (*Fallback)(nil)

// Generate implements domain.QuestGenerator.
func (f *Fallback) Generate(ctx context.Context, req domain.GenerateRequest) (domain.QuestTemplate, error) {
	if f.Primary == nil {
		return f.Secondary.Generate(ctx, req)
	}
	tmpl, err := f.Primary.Generate(ctx, req)
	if err == nil || f.Secondary == nil || ctx.Err() != nil {
		return tmpl, err
	}
	log.Printf("[generator] primary failed for %s/%s, using fallback: %v", req.Category, req.Difficulty, err)
	return f.Secondary.Generate(ctx, req)
}
