package ipacl

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
)

// PolicyProvider supplies the toggle and fallback behaviour, typically
// backed by site settings so admins can flip it at runtime.
type PolicyProvider interface {
	IPAccessPolicy(ctx context.Context) (enabled, defaultAllow bool)
}

// Service evaluates the allow/deny predicate consulted before any
// public request reaches the file lifecycle.
type Service struct {
	repo   Repository
	policy PolicyProvider
	logger *zap.Logger
}

func NewService(repo Repository, policy PolicyProvider, logger *zap.Logger) *Service {
	return &Service{repo: repo, policy: policy, logger: logger}
}

// AddRule validates and stores a CIDR rule. A bare address is accepted
// and treated as a /32 (or /128) network.
func (s *Service) AddRule(ctx context.Context, cidr, kind, description string) (*AccessRule, error) {
	if kind != KindWhitelist && kind != KindBlacklist {
		return nil, fmt.Errorf("invalid rule kind %q", kind)
	}
	normalized, err := normalizeCIDR(cidr)
	if err != nil {
		return nil, err
	}
	rule := &AccessRule{
		CIDR:        normalized,
		Kind:        kind,
		Description: description,
		Active:      true,
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context) ([]*AccessRule, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) DeleteRule(ctx context.Context, id uint) error {
	return s.repo.Delete(ctx, id)
}

// ToggleRule flips a rule's active flag and returns the new state.
func (s *Service) ToggleRule(ctx context.Context, id uint) (bool, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if err := s.repo.SetActive(ctx, id, !rule.Active); err != nil {
		return false, err
	}
	return !rule.Active, nil
}

// Allowed evaluates the predicate for one client address. Blacklist
// rules are checked first; if any whitelist rules exist the address
// must match one of them; otherwise the default policy decides.
// Unparseable addresses and storage failures fall back to the default
// policy rather than blocking traffic on an internal fault.
func (s *Service) Allowed(ctx context.Context, clientIP string) bool {
	enabled, defaultAllow := s.policy.IPAccessPolicy(ctx)
	if !enabled {
		return true
	}

	ip := net.ParseIP(clientIP)
	if ip == nil {
		s.logger.Warn("unparseable client address", zap.String("ip", clientIP))
		return defaultAllow
	}

	rules, err := s.repo.ListActive(ctx)
	if err != nil {
		s.logger.Error("list access rules", zap.Error(err))
		return defaultAllow
	}

	var whitelists []*AccessRule
	for _, rule := range rules {
		switch rule.Kind {
		case KindBlacklist:
			if ruleMatches(rule, ip) {
				s.logger.Info("request denied by blacklist",
					zap.String("ip", clientIP), zap.String("cidr", rule.CIDR))
				return false
			}
		case KindWhitelist:
			whitelists = append(whitelists, rule)
		}
	}

	if len(whitelists) > 0 {
		for _, rule := range whitelists {
			if ruleMatches(rule, ip) {
				return true
			}
		}
		s.logger.Info("request outside all whitelists", zap.String("ip", clientIP))
		return false
	}

	return defaultAllow
}

func ruleMatches(rule *AccessRule, ip net.IP) bool {
	_, network, err := net.ParseCIDR(rule.CIDR)
	if err != nil {
		// Malformed stored rule; skip rather than fail the request.
		return false
	}
	return network.Contains(ip)
}

func normalizeCIDR(cidr string) (string, error) {
	if _, network, err := net.ParseCIDR(cidr); err == nil {
		return network.String(), nil
	}
	ip := net.ParseIP(cidr)
	if ip == nil {
		return "", errors.New("invalid IP range format")
	}
	if ip.To4() != nil {
		return ip.String() + "/32", nil
	}
	return ip.String() + "/128", nil
}
