package services

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/chm413/mochi-link/models"
	"github.com/chm413/mochi-link/pkg"
	"github.com/chm413/mochi-link/pkg/ratelimit"
	"github.com/chm413/mochi-link/repository"
	"github.com/chm413/mochi-link/ws"
)

// GroupMessageSink is how the Binding & Message Router (C9) hands a
// formatted chat line to the bot surface (C12) for delivery into the
// external chat group — a typed callback interface rather than the
// teacher's broadcast-to-room call, since this hub has no internal event
// bus to publish onto.
type GroupMessageSink interface {
	DeliverToGroup(ctx context.Context, groupID, text string) error
}

// RouterService is the Binding & Message Router (C9): it applies a
// binding's filter rules, enforces its rate limit, renders its message
// template, and delivers the result in whichever direction the call came
// from — group chat to server, or server chat to every bound group.
type RouterService interface {
	RouteGroupToServer(ctx context.Context, binding models.GroupBinding, username, content string) (delivered bool, err error)
	RouteServerToGroups(ctx context.Context, serverID, playerName, content string, sink GroupMessageSink) error
}

type routerService struct {
	hub      *ws.Hub
	bindings repository.GroupBindingRepository
	limiter  *ratelimit.BindingRateLimiter
}

// NewRouterService constructs the RouterService.
func NewRouterService(hub *ws.Hub, bindings repository.GroupBindingRepository, limiter *ratelimit.BindingRateLimiter) RouterService {
	return &routerService{hub: hub, bindings: bindings, limiter: limiter}
}

// RouteGroupToServer handles a message sent in a bound chat group, bound
// for the server's in-game chat: filter, then rate limit, then template,
// then publish as a fire-and-forget event — chat messages are not queued
// for offline servers, they are simply dropped; chat is best-effort, unlike
// whitelist/command mutations.
func (s *routerService) RouteGroupToServer(ctx context.Context, binding models.GroupBinding, username, content string) (bool, error) {
	if binding.ChatConfig == nil || !binding.ChatConfig.Enabled {
		return false, nil
	}

	// Filters run before the rate limit: a message a filter blocks must
	// never consume quota a legitimate message would need.
	allowed, transformed := applyFilters(binding.ChatConfig.FilterRules, username, content)
	if !allowed {
		return false, nil
	}

	key := ratelimit.BindingKey(binding.GroupID, binding.ServerID)
	window := time.Duration(binding.ChatConfig.RateLimitWindow) * time.Millisecond
	if !s.limiter.Allow(key, binding.ChatConfig.RateLimitMax, window) {
		return false, pkg.ErrRateLimited
	}

	formatted := renderTemplate(binding.ChatConfig.MessageFormat, map[string]string{
		"group":   binding.GroupID,
		"username": username,
		"content": transformed,
	})

	if err := s.hub.PublishEvent(binding.ServerID, "chat.incoming", map[string]string{
		"username": username,
		"message":  formatted,
	}); err != nil {
		return false, err
	}
	if err := s.bindings.Touch(ctx, binding.ID); err != nil {
		slog.Warn("failed to touch binding after route", "bindingId", binding.ID, "error", err)
	}
	return true, nil
}

// RouteServerToGroups fans a player chat message out to every enabled,
// bidirectional chat binding on serverID, independently filtering/
// rate-limiting/templating each one before handing it to sink.
func (s *routerService) RouteServerToGroups(ctx context.Context, serverID, playerName, content string, sink GroupMessageSink) error {
	bindings, err := s.bindings.ListByServer(ctx, serverID)
	if err != nil {
		return err
	}

	var firstErr error
	for _, binding := range bindings {
		if binding.BindingType != models.BindingChat && binding.BindingType != models.BindingFull {
			continue
		}
		if binding.ChatConfig == nil || !binding.ChatConfig.Enabled || !binding.ChatConfig.Bidirectional {
			continue
		}

		allowed, transformed := applyFilters(binding.ChatConfig.FilterRules, playerName, content)
		if !allowed {
			continue
		}

		key := ratelimit.BindingKey(binding.GroupID, binding.ServerID)
		window := time.Duration(binding.ChatConfig.RateLimitWindow) * time.Millisecond
		if !s.limiter.Allow(key, binding.ChatConfig.RateLimitMax, window) {
			continue
		}

		formatted := renderTemplate(binding.ChatConfig.MessageFormat, map[string]string{
			"group":      binding.GroupID,
			"playerName": playerName,
			"content":    transformed,
		})

		if err := sink.DeliverToGroup(ctx, binding.GroupID, formatted); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := s.bindings.Touch(ctx, binding.ID); err != nil {
			slog.Warn("failed to touch binding after route", "bindingId", binding.ID, "error", err)
		}
	}
	return firstErr
}

// applyFilters evaluates rules in order against content (and username, for
// the user filter type). The first block rule ends evaluation with the
// message rejected; transform rules accumulate; an unmatched rule simply
// passes through to the next.
func applyFilters(rules []models.FilterRule, username, content string) (allowed bool, transformed string) {
	transformed = content
	for _, rule := range rules {
		matched := ruleMatches(rule, username, transformed)
		if !matched {
			continue
		}
		switch rule.Action {
		case models.FilterBlock:
			return false, transformed
		case models.FilterTransform:
			transformed = applyTransform(rule, transformed)
		case models.FilterAllow:
			// Explicit allow short-circuits remaining block rules for this message.
			return true, transformed
		}
	}
	return true, transformed
}

func ruleMatches(rule models.FilterRule, username, content string) bool {
	switch rule.Type {
	case models.FilterRegex:
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(content)
	case models.FilterKeyword:
		return strings.Contains(strings.ToLower(content), strings.ToLower(rule.Pattern))
	case models.FilterUser:
		return strings.EqualFold(username, rule.Pattern)
	case models.FilterLength:
		return rule.MaxLength > 0 && len([]rune(content)) > rule.MaxLength
	default:
		return false
	}
}

func applyTransform(rule models.FilterRule, content string) string {
	switch rule.Type {
	case models.FilterRegex:
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return content
		}
		return re.ReplaceAllString(content, rule.Replacement)
	case models.FilterKeyword:
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(rule.Pattern))
		return re.ReplaceAllString(content, rule.Replacement)
	case models.FilterLength:
		if rule.MaxLength > 0 && len([]rune(content)) > rule.MaxLength {
			runes := []rune(content)
			return string(runes[:rule.MaxLength])
		}
		return content
	default:
		return content
	}
}

// renderTemplate substitutes {key} placeholders in format using fields,
// in the teacher's terse strings.NewReplacer style rather than
// text/template — fixed single-pass placeholder substitution does not
// need a templating engine.
func renderTemplate(format string, fields map[string]string) string {
	pairs := make([]string, 0, len(fields)*2)
	for k, v := range fields {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(format)
}
