package push

import (
	"context"
	"log"

	"github.com/rejectly/rejectly/internal/domain"
)

// Log writes pushes to the process log instead of delivering them.
type Log struct{}

var _ domain.PushGateway = Log{}

// Name implements domain.PushGateway.
func (Log) Name() string { return "log" }

// Send implements domain.PushGateway.
func (Log) Send(_ context.Context, msg domain.PushMessage) domain.PushResult {
	log.Printf("[push] %s: %s | %s", msg.Token, msg.Title, msg.Body)
	return domain.PushResult{Success: true}
}
