package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/portal-auth/internal/adapter/oauth"
	"github.com/smallbiznis/portal-auth/internal/domain"
	"github.com/smallbiznis/portal-auth/internal/repository"
)

const statePrefix = "login:state:"

// FlowService orchestrates the authorization-code flow: it hands out the
// provider redirect on login and turns the provider callback into a
// reconciled local identity. A failed attempt is terminal; the user
// re-initiates from the start. No retry happens inside the flow.
type FlowService struct {
	providers  *oauth.Registry
	states     repository.LoginStateStore
	reconciler *Reconciler
	stateTTL   time.Duration
	logger     *zap.Logger
}

func NewFlowService(
	providers *oauth.Registry,
	states repository.LoginStateStore,
	reconciler *Reconciler,
	stateTTL time.Duration,
	logger *zap.Logger,
) *FlowService {
	if logger == nil {
		logger = zap.L()
	}
	return &FlowService{
		providers:  providers,
		states:     states,
		reconciler: reconciler,
		stateTTL:   stateTTL,
		logger:     logger,
	}
}

// Begin issues a state nonce and returns the provider authorization URL.
func (s *FlowService) Begin(ctx context.Context, providerName string) (string, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return "", err
	}

	state, err := randomState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	payload := domain.LoginState{
		State:     state,
		Provider:  p.Name(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.states.SaveState(ctx, statePrefix+state, payload, s.stateTTL); err != nil {
		return "", fmt.Errorf("persist state: %w", err)
	}

	return p.AuthCodeURL(state), nil
}

// Complete validates the callback state, exchanges the code, fetches the
// profile, and reconciles the local record. All provider and store calls
// block until done; there is no partial-success state.
func (s *FlowService) Complete(ctx context.Context, providerName, code, state string) (domain.UserIdentity, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return domain.UserIdentity{}, err
	}

	if err := s.consumeState(ctx, p.Name(), state); err != nil {
		return domain.UserIdentity{}, err
	}

	token, err := p.Exchange(ctx, code)
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("exchange code: %w", err)
	}

	profile, err := p.FetchProfile(ctx, token)
	if err != nil {
		return domain.UserIdentity{}, fmt.Errorf("fetch profile: %w", err)
	}

	user, err := s.reconciler.Reconcile(ctx, p.Name(), *profile, Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	})
	if err != nil {
		return domain.UserIdentity{}, err
	}
	return user, nil
}

func (s *FlowService) consumeState(ctx context.Context, provider, state string) error {
	if strings.TrimSpace(state) == "" {
		return domain.ErrInvalidState
	}
	key := statePrefix + state
	stored, err := s.states.GetState(ctx, key)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if stored == nil || !strings.EqualFold(stored.Provider, provider) {
		return domain.ErrInvalidState
	}
	// One-shot nonce: gone after first use regardless of outcome.
	if err := s.states.DeleteState(ctx, key); err != nil {
		s.logger.Warn("failed to delete login state", zap.Error(err))
	}
	return nil
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
