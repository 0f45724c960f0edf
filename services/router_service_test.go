package services

import (
	"context"
	"testing"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/pkg/ratelimit"
	"github.com/chm413/mochi-link/ws"
)

type fakeBindingRepo struct {
	bindings   map[string]models.GroupBinding
	touchCalls []string
}

func newFakeBindingRepo() *fakeBindingRepo {
	return &fakeBindingRepo{bindings: map[string]models.GroupBinding{}}
}

func (r *fakeBindingRepo) Create(ctx context.Context, binding *models.GroupBinding) error {
	r.bindings[binding.ID] = *binding
	return nil
}
func (r *fakeBindingRepo) GetByID(ctx context.Context, id string) (*models.GroupBinding, error) {
	b, ok := r.bindings[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return &b, nil
}
func (r *fakeBindingRepo) ListByServer(ctx context.Context, serverID string) ([]models.GroupBinding, error) {
	var out []models.GroupBinding
	for _, b := range r.bindings {
		if b.ServerID == serverID {
			out = append(out, b)
		}
	}
	return out, nil
}
func (r *fakeBindingRepo) ListByGroup(ctx context.Context, groupID string) ([]models.GroupBinding, error) {
	return nil, nil
}
func (r *fakeBindingRepo) UpdateStatus(ctx context.Context, id string, status models.BindingStatus) error {
	return nil
}
func (r *fakeBindingRepo) Touch(ctx context.Context, id string) error {
	r.touchCalls = append(r.touchCalls, id)
	return nil
}
func (r *fakeBindingRepo) Delete(ctx context.Context, id string) error { return nil }

func blockingBinding() models.GroupBinding {
	return models.GroupBinding{
		ID:       "binding-1",
		GroupID:  "group-1",
		ServerID: "server-1",
		ChatConfig: &models.ChatBindingConfig{
			Enabled:         true,
			RateLimitWindow: 60000,
			RateLimitMax:    1,
			MessageFormat:   "{username}: {content}",
			FilterRules: []models.FilterRule{
				{Type: models.FilterKeyword, Pattern: "badword", Action: models.FilterBlock},
			},
		},
	}
}

// TestRouteGroupToServer_FilterBlockedMessageDoesNotConsumeRateLimit is
// Scenario F: a message a filter rejects must never spend the rate
// limiter's quota a legitimate message would need.
func TestRouteGroupToServer_FilterBlockedMessageDoesNotConsumeRateLimit(t *testing.T) {
	bindings := newFakeBindingRepo()
	limiter := ratelimit.NewBindingRateLimiter()
	defer limiter.Stop()
	router := NewRouterService(ws.NewHub(nil, nil, nil), bindings, limiter)

	binding := blockingBinding()

	for i := 0; i < 5; i++ {
		delivered, err := router.RouteGroupToServer(context.Background(), binding, "Steve", "this has a badword in it")
		if delivered || err != nil {
			t.Fatalf("expected a filter-blocked message to be silently dropped, got delivered=%v err=%v", delivered, err)
		}
	}

	// RateLimitMax is 1; if any of the five blocked sends above had consumed
	// quota, this clean message would now fail with ErrRateLimited instead
	// of reaching the (offline, so ErrServerOffline) delivery attempt.
	_, err := router.RouteGroupToServer(context.Background(), binding, "Steve", "hello there")
	if err == pkg.ErrRateLimited {
		t.Fatal("filter-blocked messages must not consume rate limit quota")
	}
	if err != pkg.ErrServerOffline {
		t.Fatalf("expected delivery to fail with ErrServerOffline (no live connection), got %v", err)
	}
}

func TestRouteGroupToServer_RateLimitAppliesAfterFilters(t *testing.T) {
	bindings := newFakeBindingRepo()
	limiter := ratelimit.NewBindingRateLimiter()
	defer limiter.Stop()
	router := NewRouterService(ws.NewHub(nil, nil, nil), bindings, limiter)

	binding := blockingBinding()

	if _, err := router.RouteGroupToServer(context.Background(), binding, "Steve", "hello"); err != pkg.ErrServerOffline {
		t.Fatalf("expected the first clean message to reach delivery, got %v", err)
	}
	_, err := router.RouteGroupToServer(context.Background(), binding, "Steve", "hello again")
	if err != pkg.ErrRateLimited {
		t.Fatalf("expected the second clean message within the same window to be rate limited, got %v", err)
	}
}

func TestRouteGroupToServer_DisabledBindingNeverRoutes(t *testing.T) {
	bindings := newFakeBindingRepo()
	limiter := ratelimit.NewBindingRateLimiter()
	defer limiter.Stop()
	router := NewRouterService(ws.NewHub(nil, nil, nil), bindings, limiter)

	binding := blockingBinding()
	binding.ChatConfig.Enabled = false

	delivered, err := router.RouteGroupToServer(context.Background(), binding, "Steve", "hello")
	if delivered || err != nil {
		t.Fatalf("expected a disabled binding to never route, got delivered=%v err=%v", delivered, err)
	}
}

type fakeGroupSink struct {
	delivered []string
}

func (s *fakeGroupSink) DeliverToGroup(ctx context.Context, groupID, text string) error {
	s.delivered = append(s.delivered, groupID)
	return nil
}

// TestRouteServerToGroups_TouchesBindingOnSuccessfulDelivery covers the
// "both directions update the binding's lastUsedAt and increment per-route
// counters" requirement for the server-to-groups direction.
func TestRouteServerToGroups_TouchesBindingOnSuccessfulDelivery(t *testing.T) {
	bindings := newFakeBindingRepo()
	binding := blockingBinding()
	binding.BindingType = models.BindingChat
	binding.ChatConfig.Bidirectional = true
	bindings.bindings[binding.ID] = binding

	limiter := ratelimit.NewBindingRateLimiter()
	defer limiter.Stop()
	router := NewRouterService(ws.NewHub(nil, nil, nil), bindings, limiter)

	sink := &fakeGroupSink{}
	if err := router.RouteServerToGroups(context.Background(), "server-1", "Steve", "hello", sink); err != nil {
		t.Fatalf("RouteServerToGroups: %v", err)
	}

	if len(sink.delivered) != 1 || sink.delivered[0] != "group-1" {
		t.Fatalf("expected delivery to group-1, got %v", sink.delivered)
	}
	if len(bindings.touchCalls) != 1 || bindings.touchCalls[0] != "binding-1" {
		t.Fatalf("expected the binding to be touched after a successful route, got %v", bindings.touchCalls)
	}
}

func TestRouteServerToGroups_SkipsUnidirectionalBinding(t *testing.T) {
	bindings := newFakeBindingRepo()
	binding := blockingBinding()
	binding.BindingType = models.BindingChat
	binding.ChatConfig.Bidirectional = false
	bindings.bindings[binding.ID] = binding

	limiter := ratelimit.NewBindingRateLimiter()
	defer limiter.Stop()
	router := NewRouterService(ws.NewHub(nil, nil, nil), bindings, limiter)

	sink := &fakeGroupSink{}
	if err := router.RouteServerToGroups(context.Background(), "server-1", "Steve", "hello", sink); err != nil {
		t.Fatalf("RouteServerToGroups: %v", err)
	}
	if len(sink.delivered) != 0 {
		t.Fatalf("expected a unidirectional binding to be skipped, got %v", sink.delivered)
	}
	if len(bindings.touchCalls) != 0 {
		t.Fatalf("expected no touch for a skipped binding, got %v", bindings.touchCalls)
	}
}
