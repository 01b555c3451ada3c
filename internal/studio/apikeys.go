package studio

import (
	"context"
	"errors"
	"strings"

	"shotdeck/internal/events"
	"shotdeck/internal/store"
)

// MaskedKey is an API key safe to show back to its owner.
type MaskedKey struct {
	Provider  string          `json:"provider"`
	Masked    string          `json:"masked"`
	UpdatedAt store.Timestamp `json:"updatedAt"`
}

func checkProvider(op, provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	switch provider {
	case store.ProviderFal, store.ProviderOpenAI:
		return provider, nil
	default:
		return "", invalid(op, "provider %q must be %s or %s", provider, store.ProviderFal, store.ProviderOpenAI)
	}
}

// MaskKey keeps only the last four characters of key.
func MaskKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return strings.Repeat("•", 8)
	}
	return strings.Repeat("•", 8) + key[len(key)-visible:]
}

func masked(record store.APIKey) MaskedKey {
	return MaskedKey{Provider: record.Provider, Masked: MaskKey(record.Key), UpdatedAt: record.UpdatedAt}
}

// SetAPIKey stores or replaces the user's key for provider.
func (s *Service) SetAPIKey(ctx context.Context, userID, provider, key string) (MaskedKey, error) {
	const op = "set api key"
	if err := requireUser(op, userID); err != nil {
		return MaskedKey{}, err
	}
	provider, err := checkProvider(op, provider)
	if err != nil {
		return MaskedKey{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return MaskedKey{}, invalid(op, "key required")
	}
	record, err := s.store.SetAPIKey(ctx, userID, provider, key)
	if err != nil {
		return MaskedKey{}, translate(op, err)
	}
	s.emit(userID, events.TypeWorkspace, events.ActionUpdated, "", provider)
	return masked(*record), nil
}

// ListAPIKeys returns the user's keys with their secrets masked.
func (s *Service) ListAPIKeys(ctx context.Context, userID string) ([]MaskedKey, error) {
	const op = "list api keys"
	if err := requireUser(op, userID); err != nil {
		return nil, err
	}
	records, err := s.store.ListAPIKeys(ctx, userID)
	if err != nil {
		return nil, translate(op, err)
	}
	out := make([]MaskedKey, 0, len(records))
	for _, record := range records {
		out = append(out, masked(record))
	}
	return out, nil
}

// DeleteAPIKey removes the user's key for provider.
func (s *Service) DeleteAPIKey(ctx context.Context, userID, provider string) error {
	const op = "delete api key"
	if err := requireUser(op, userID); err != nil {
		return err
	}
	provider, err := checkProvider(op, provider)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAPIKey(ctx, userID, provider); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(op, "api key")
		}
		return translate(op, err)
	}
	s.emit(userID, events.TypeWorkspace, events.ActionUpdated, "", provider)
	return nil
}

// ResolveAPIKey returns the user's stored key for provider, or "" when the
// configured default should be used.
func (s *Service) ResolveAPIKey(ctx context.Context, userID, provider string) (string, error) {
	return ResolveAPIKey(ctx, s.store, userID, provider)
}

// ResolveAPIKey looks up a user's key directly in st.
func ResolveAPIKey(ctx context.Context, st *store.Store, userID, provider string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", nil
	}
	record, err := st.GetAPIKey(ctx, userID, provider)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", translate("resolve api key", err)
	}
	return record.Key, nil
}
