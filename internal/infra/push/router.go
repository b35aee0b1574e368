package push

import (
	"context"
	"strings"

	"github.com/rejectly/rejectly/internal/domain"
)

// Route sends tokens with Prefix to Gateway.
type Route struct {
	Prefix  string
	Gateway domain.PushGateway
}

// Router dispatches each message to the first route whose prefix matches
// the token, or to Default.
type Router struct {
	Routes  []Route
	Default domain.PushGateway
}

var _ domain.PushGateway = (*Router)(nil)

// Name implements domain.PushGateway.
func (r *Router) Name() string { return "router" }

// Send implements domain.PushGateway.
func (r *Router) Send(ctx context.Context, msg domain.PushMessage) domain.PushResult {
	if g := r.For(msg.Token); g != nil {
		return g.Send(ctx, msg)
	}
	return domain.PushResult{Error: domain.ErrPushGateway.Error() + ": no gateway for token"}
}

// For returns the gateway that handles token.
func (r *Router) For(token string) domain.PushGateway {
	for _, rt := range r.Routes {
		if strings.HasPrefix(token, rt.Prefix) {
			return rt.Gateway
		}
	}
	return r.Default
}
