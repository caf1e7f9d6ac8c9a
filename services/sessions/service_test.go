package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
)

const storageDir = "/data"

// setupTestService creates a sessions service on an in-memory filesystem with a
// controllable clock that starts thirty minutes in the past.
func setupTestService(t *testing.T, duration time.Duration) (*Service, afero.Fs, *time.Time) {
	t.Helper()
	fs := afero.NewMemMapFs()
	svc, err := NewService(fs, storageDir, duration)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	now := time.Now().UTC().Add(-30 * time.Minute)
	svc.now = func() time.Time { return now }
	return svc, fs, &now
}

func TestNewService_DefaultDuration(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Hour} {
		svc, err := NewService(afero.NewMemMapFs(), storageDir, d)
		if err != nil {
			t.Fatalf("NewService failed: %v", err)
		}
		if svc.sessionDuration != DefaultSessionDuration {
			t.Errorf("duration %v: expected default %v, got %v", d, DefaultSessionDuration, svc.sessionDuration)
		}
	}
}

func TestNewService_InMemoryOnly(t *testing.T) {
	svc, err := NewService(nil, "", DefaultSessionDuration)
	if err != nil {
		t.Fatalf("NewService with no fs failed: %v", err)
	}
	if svc.path != "" {
		t.Error("expected empty path for in-memory service")
	}
	if _, err := svc.Create("account-1", "", ""); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
}

func TestCreate_StoresSessionMetadata(t *testing.T) {
	svc, _, now := setupTestService(t, time.Hour)

	session, err := svc.Create("account-123", "Mozilla/5.0", "192.168.1.1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected non-empty token")
	}
	if session.AccountID != "account-123" {
		t.Errorf("expected account id account-123, got %q", session.AccountID)
	}
	if session.UserAgent != "Mozilla/5.0" || session.IPAddress != "192.168.1.1" {
		t.Errorf("unexpected metadata: %+v", session)
	}
	if !session.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expected expiry %v, got %v", now.Add(time.Hour), session.ExpiresAt)
	}
}

func TestValidate(t *testing.T) {
	svc, _, now := setupTestService(t, time.Hour)
	created, _ := svc.Create("account-123", "", "")

	got, err := svc.Validate(created.Token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.AccountID != "account-123" {
		t.Errorf("expected account-123, got %q", got.AccountID)
	}

	if _, err := svc.Validate(""); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Validate("nope"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	*now = now.Add(2 * time.Hour)
	if _, err := svc.Validate(created.Token); err != ErrSessionExpired {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
	if svc.Count() != 0 {
		t.Errorf("expected expired session to be dropped, got %d", svc.Count())
	}
}

func TestRevoke(t *testing.T) {
	svc, _, _ := setupTestService(t, time.Hour)
	session, _ := svc.Create("account-123", "", "")

	if err := svc.Revoke(session.Token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := svc.Validate(session.Token); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after revoke, got %v", err)
	}
	if err := svc.Revoke(session.Token); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound on second revoke, got %v", err)
	}
}

func TestRefresh(t *testing.T) {
	svc, _, now := setupTestService(t, time.Hour)
	session, _ := svc.Create("account-123", "", "")

	*now = now.Add(30 * time.Minute)
	refreshed, err := svc.Refresh(session.Token)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if !refreshed.ExpiresAt.After(session.ExpiresAt) {
		t.Errorf("expected new expiry %v after %v", refreshed.ExpiresAt, session.ExpiresAt)
	}
	if !refreshed.RefreshedAt.Equal(*now) {
		t.Errorf("expected refreshedAt %v, got %v", *now, refreshed.RefreshedAt)
	}

	if _, err := svc.Refresh("nope"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	*now = now.Add(3 * time.Hour)
	if _, err := svc.Refresh(session.Token); err != ErrSessionExpired {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestCleanup(t *testing.T) {
	svc, _, now := setupTestService(t, time.Hour)
	old, _ := svc.Create("account-1", "", "")

	*now = now.Add(50 * time.Minute)
	fresh, _ := svc.Create("account-2", "", "")

	*now = now.Add(20 * time.Minute)
	removed := svc.Cleanup()
	if len(removed) != 1 || removed[0] != old.Token {
		t.Fatalf("expected only the old token to be removed, got %v", removed)
	}
	if _, err := svc.Validate(fresh.Token); err != nil {
		t.Errorf("expected fresh session to survive, got %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	svc, _, now := setupTestService(t, time.Hour)
	session, _ := svc.Create("account-1", "", "")
	*now = now.Add(2 * time.Hour)

	expired := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx, 5*time.Millisecond, func(token string) { expired <- token }) }()

	select {
	case token := <-expired:
		if token != session.Token {
			t.Errorf("expected %q, got %q", session.Token, token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the sweep to report the expired session")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPersistence(t *testing.T) {
	svc, fs, _ := setupTestService(t, time.Hour)
	kept, _ := svc.Create("account-1", "", "")

	shortLived, err := NewService(fs, storageDir, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	shortLived.now = svc.now
	if shortLived.Count() != 1 {
		t.Fatalf("expected 1 loaded session, got %d", shortLived.Count())
	}
	gone, _ := shortLived.Create("account-2", "", "")

	// The reloaded service runs on the real clock, by which the one-minute session is over.
	reloaded, err := NewService(fs, storageDir, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.sessions[kept.Token]; !ok {
		t.Error("expected live session to be reloaded")
	}
	if _, ok := reloaded.sessions[gone.Token]; ok {
		t.Error("expected expired session to be skipped on load")
	}
}

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := generateToken()
		if err != nil {
			t.Fatalf("generateToken failed: %v", err)
		}
		if len(token) != 44 {
			t.Errorf("expected 44 character token, got %d", len(token))
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = true
	}
}

func TestRevokeAllForAccount(t *testing.T) {
	svc, _, _ := setupTestService(t, time.Hour)
	a1, _ := svc.Create("account-1", "", "")
	a2, _ := svc.Create("account-1", "", "")
	other, _ := svc.Create("account-2", "", "")

	revoked, err := svc.RevokeAllForAccount("account-1", a2.Token)
	if err != nil {
		t.Fatalf("RevokeAllForAccount failed: %v", err)
	}
	if len(revoked) != 1 || revoked[0] != a1.Token {
		t.Fatalf("expected only %q revoked, got %v", a1.Token, revoked)
	}
	if _, err := svc.Validate(a1.Token); err != ErrSessionNotFound {
		t.Errorf("expected revoked session to be gone, got %v", err)
	}
	if _, err := svc.Validate(a2.Token); err != nil {
		t.Errorf("expected kept session to survive, got %v", err)
	}

	revoked, err = svc.RevokeAllForAccount("account-1", "")
	if err != nil || len(revoked) != 1 {
		t.Fatalf("expected the remaining session revoked, got %v, %v", revoked, err)
	}
	if _, err := svc.Validate(other.Token); err != nil {
		t.Errorf("expected other account untouched, got %v", err)
	}

	revoked, err = svc.RevokeAllForAccount("account-1", "")
	if err != nil || len(revoked) != 0 {
		t.Errorf("expected nothing left to revoke, got %v, %v", revoked, err)
	}
}

func TestSharedFile_RevokeFromAnotherService(t *testing.T) {
	server, fs, now := setupTestService(t, time.Hour)
	session, _ := server.Create("account-1", "", "")

	cli, err := NewService(fs, storageDir, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	cli.now = func() time.Time { return *now }
	if _, err := cli.Validate(session.Token); err != nil {
		t.Fatalf("expected the second service to see the session, got %v", err)
	}
	if _, err := cli.RevokeAllForAccount("account-1", ""); err != nil {
		t.Fatalf("RevokeAllForAccount failed: %v", err)
	}

	if _, err := server.Validate(session.Token); err != ErrSessionNotFound {
		t.Errorf("expected the revoked token to be rejected, got %v", err)
	}
	removed := server.Cleanup()
	if len(removed) != 1 || removed[0] != session.Token {
		t.Errorf("expected cleanup to report the revoked token, got %v", removed)
	}

	// A later write by the server must not bring the token back.
	if _, err := server.Create("account-2", "", ""); err != nil {
		t.Fatal(err)
	}
	reloaded, err := NewService(fs, storageDir, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.sessions[session.Token]; ok {
		t.Error("revoked token reappeared on disk")
	}
}
