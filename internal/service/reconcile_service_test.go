package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"authlink/internal/domain"
	"authlink/internal/repository"
)

func newTestReconciler() (*ReconcileService, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	audit := NewAuditRecorder(zap.NewNop(), store.Repos().AuditEvents)
	return NewReconcileService(zap.NewNop(), store, audit), store
}

func countEvents(events []domain.AuditEvent, eventType string) int {
	count := 0
	for _, e := range events {
		if e.Event == eventType {
			count++
		}
	}
	return count
}

func googleAssertion() domain.ExternalAssertion {
	expires := time.Now().UTC().Add(time.Hour)
	return domain.ExternalAssertion{
		Provider:        "google",
		ProviderSubject: "google-sub-1",
		Email:           "user@example.com",
		DisplayName:     "User Example",
		AccessToken:     "prov-access-1",
		RefreshToken:    "prov-refresh-1",
		ExpiresAt:       &expires,
	}
}

func TestResolveCreatesAccountAndIdentity(t *testing.T) {
	svc, store := newTestReconciler()

	account, isNew, err := svc.Resolve(context.Background(), googleAssertion(), domain.DeviceInfo{IP: "1.2.3.4"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !isNew {
		t.Fatalf("expected a new account")
	}
	if account.Email != "user@example.com" {
		t.Fatalf("unexpected email: %q", account.Email)
	}
	if !account.EmailVerified {
		t.Fatalf("provider email should be pre-marked verified")
	}
	if account.PasswordHash != "" {
		t.Fatalf("oauth-created account should have no password hash")
	}
	if account.Status != domain.AccountActive {
		t.Fatalf("unexpected status: %q", account.Status)
	}

	identity, err := store.Repos().Identities.GetByProviderSubject(context.Background(), "google", "google-sub-1")
	if err != nil {
		t.Fatalf("identity lookup: %v", err)
	}
	if identity.AccountID != account.ID {
		t.Fatalf("identity bound to wrong account")
	}
	if identity.AccessToken != "prov-access-1" {
		t.Fatalf("provider tokens not stored")
	}

	// Primera creacion: REGISTER y OAUTH_LINK disparan juntos.
	events := store.Audits()
	if countEvents(events, domain.AuditRegister) != 1 {
		t.Fatalf("expected one REGISTER event, got %d", countEvents(events, domain.AuditRegister))
	}
	if countEvents(events, domain.AuditOAuthLink) != 1 {
		t.Fatalf("expected one OAUTH_LINK event, got %d", countEvents(events, domain.AuditOAuthLink))
	}
}

func TestResolveIdempotent(t *testing.T) {
	svc, store := newTestReconciler()
	ctx := context.Background()

	first, isNew, err := svc.Resolve(ctx, googleAssertion(), domain.DeviceInfo{})
	if err != nil || !isNew {
		t.Fatalf("first resolve: %v isNew=%v", err, isNew)
	}

	updated := googleAssertion()
	updated.AccessToken = "prov-access-2"
	updated.RefreshToken = "prov-refresh-2"
	second, isNew, err := svc.Resolve(ctx, updated, domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if isNew {
		t.Fatalf("second resolve should not create an account")
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same account on both resolves")
	}

	identity, err := store.Repos().Identities.GetByProviderSubject(ctx, "google", "google-sub-1")
	if err != nil {
		t.Fatalf("identity lookup: %v", err)
	}
	if identity.AccessToken != "prov-access-2" {
		t.Fatalf("provider tokens should be updated in place")
	}

	identities, err := store.Repos().Identities.ListByAccount(ctx, first.ID)
	if err != nil {
		t.Fatalf("list identities: %v", err)
	}
	if len(identities) != 1 {
		t.Fatalf("expected one linked identity, got %d", len(identities))
	}
	if countEvents(store.Audits(), domain.AuditRegister) != 1 {
		t.Fatalf("REGISTER should fire only on creation")
	}
	if countEvents(store.Audits(), domain.AuditOAuthLink) != 1 {
		t.Fatalf("OAUTH_LINK should fire only for new identity rows")
	}
}

func TestResolveCrossProviderConvergence(t *testing.T) {
	svc, store := newTestReconciler()
	ctx := context.Background()

	first, _, err := svc.Resolve(ctx, googleAssertion(), domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("google resolve: %v", err)
	}

	github := domain.ExternalAssertion{
		Provider:        "github",
		ProviderSubject: "github-sub-9",
		Email:           "user@example.com",
	}
	second, isNew, err := svc.Resolve(ctx, github, domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("github resolve: %v", err)
	}
	if isNew {
		t.Fatalf("matching email must attach, never create a second account")
	}
	if second.ID != first.ID {
		t.Fatalf("both providers should converge onto one account")
	}

	identities, err := store.Repos().Identities.ListByAccount(ctx, first.ID)
	if err != nil {
		t.Fatalf("list identities: %v", err)
	}
	if len(identities) != 2 {
		t.Fatalf("expected two linked identities, got %d", len(identities))
	}
	// Adjuntarse a una cuenta existente tambien dispara OAUTH_LINK, sin REGISTER.
	if countEvents(store.Audits(), domain.AuditRegister) != 1 {
		t.Fatalf("expected a single REGISTER event")
	}
	if countEvents(store.Audits(), domain.AuditOAuthLink) != 2 {
		t.Fatalf("expected two OAUTH_LINK events")
	}
}

func TestResolveEmptyEmailNeverMatches(t *testing.T) {
	svc, _ := newTestReconciler()
	ctx := context.Background()

	blank := domain.ExternalAssertion{Provider: "github", ProviderSubject: "s-1"}
	first, isNew, err := svc.Resolve(ctx, blank, domain.DeviceInfo{})
	if err != nil || !isNew {
		t.Fatalf("first resolve: %v isNew=%v", err, isNew)
	}
	if first.EmailVerified {
		t.Fatalf("account without email cannot be email-verified")
	}

	otherBlank := domain.ExternalAssertion{Provider: "gitlab", ProviderSubject: "s-2"}
	second, isNew, err := svc.Resolve(ctx, otherBlank, domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if !isNew || second.ID == first.ID {
		t.Fatalf("blank emails must never converge by email")
	}

	// El mismo par (provider, subject) si reusa su cuenta.
	again, isNew, err := svc.Resolve(ctx, blank, domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("repeat resolve: %v", err)
	}
	if isNew || again.ID != first.ID {
		t.Fatalf("existing pair should reuse its account")
	}
}

func TestResolveRejectsMissingProvider(t *testing.T) {
	svc, _ := newTestReconciler()

	_, _, err := svc.Resolve(context.Background(), domain.ExternalAssertion{Email: "x@y.com"}, domain.DeviceInfo{})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUnlinkOwnedScopedToAccount(t *testing.T) {
	svc, store := newTestReconciler()
	ctx := context.Background()

	owner, _, err := svc.Resolve(ctx, googleAssertion(), domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("resolve owner: %v", err)
	}
	other, _, err := svc.Resolve(ctx, domain.ExternalAssertion{
		Provider:        "github",
		ProviderSubject: "github-sub-9",
		Email:           "other@example.com",
	}, domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("resolve other: %v", err)
	}

	// Una cuenta no puede desvincular identidades ajenas; la respuesta es la
	// misma que para una identidad inexistente.
	unlinked, err := svc.UnlinkOwned(ctx, other.ID, "google", "google-sub-1", domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("foreign unlink: %v", err)
	}
	if unlinked {
		t.Fatalf("foreign identity must not be unlinked")
	}
	if _, err := store.Repos().Identities.GetByProviderSubject(ctx, "google", "google-sub-1"); err != nil {
		t.Fatalf("identity should still be linked: %v", err)
	}
	if countEvents(store.Audits(), domain.AuditOAuthUnlink) != 0 {
		t.Fatalf("no OAUTH_UNLINK event for a rejected unlink")
	}

	unlinked, err = svc.UnlinkOwned(ctx, owner.ID, "google", "google-sub-1", domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("owner unlink: %v", err)
	}
	if !unlinked {
		t.Fatalf("owner should unlink its own identity")
	}
}

func TestUnlinkIdempotent(t *testing.T) {
	svc, store := newTestReconciler()
	ctx := context.Background()

	if _, _, err := svc.Resolve(ctx, googleAssertion(), domain.DeviceInfo{}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	unlinked, err := svc.Unlink(ctx, "google", "google-sub-1", domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if !unlinked {
		t.Fatalf("expected identity to be unlinked")
	}
	if countEvents(store.Audits(), domain.AuditOAuthUnlink) != 1 {
		t.Fatalf("expected one OAUTH_UNLINK event")
	}

	// Entregas repetidas del callback no son error ni auditan de nuevo.
	unlinked, err = svc.Unlink(ctx, "google", "google-sub-1", domain.DeviceInfo{})
	if err != nil {
		t.Fatalf("repeat unlink: %v", err)
	}
	if unlinked {
		t.Fatalf("repeat unlink should report not linked")
	}
	if countEvents(store.Audits(), domain.AuditOAuthUnlink) != 1 {
		t.Fatalf("no extra OAUTH_UNLINK on repeat unlink")
	}
}
