package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumehub/resumehub/internal/shared"
	"github.com/resumehub/resumehub/internal/token"
	"github.com/resumehub/resumehub/internal/users"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// ============================================================================
// IN-MEMORY USER/LINK STORE
// ============================================================================

type fakeStore struct {
	byID    map[int64]users.User
	byEmail map[string]int64
	nextID  int64

	links      map[int64]users.FederatedIdentity
	nextLinkID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byID:       make(map[int64]users.User),
		byEmail:    make(map[string]int64),
		nextID:     1,
		links:      make(map[int64]users.FederatedIdentity),
		nextLinkID: 1,
	}
}

func (f *fakeStore) FindByID(ctx context.Context, id int64) (users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (users.User, error) {
	id, ok := f.byEmail[email]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return f.byID[id], nil
}

func (f *fakeStore) Create(ctx context.Context, u users.User) (users.User, error) {
	if _, exists := f.byEmail[u.Email]; exists {
		return users.User{}, shared.ErrDuplicateEmail
	}
	now := time.Now().UTC()
	u.ID = f.nextID
	u.CreatedAt = now
	u.UpdatedAt = now
	f.nextID++
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u.ID
	return u, nil
}

func (f *fakeStore) RecordLogin(ctx context.Context, id int64) (users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	f.byID[id] = u
	return u, nil
}

func (f *fakeStore) FindFederated(ctx context.Context, provider, providerID string) (users.FederatedIdentity, error) {
	for _, link := range f.links {
		if link.Provider == provider && link.ProviderID == providerID {
			return link, nil
		}
	}
	return users.FederatedIdentity{}, shared.ErrNotFound
}

func (f *fakeStore) CreateFederated(ctx context.Context, link users.FederatedIdentity) (users.FederatedIdentity, error) {
	link.ID = f.nextLinkID
	f.nextLinkID++
	f.links[link.ID] = link
	return link, nil
}

func (f *fakeStore) UpdateFederatedTokens(ctx context.Context, id int64, accessToken, refreshToken string) error {
	link, ok := f.links[id]
	if !ok {
		return shared.ErrNotFound
	}
	link.AccessToken = accessToken
	link.RefreshToken = refreshToken
	f.links[id] = link
	return nil
}

var (
	_ UserStore      = (*fakeStore)(nil)
	_ FederatedStore = (*fakeStore)(nil)
)

type stubVerifier struct {
	claims FederatedClaims
	err    error
}

func (s *stubVerifier) VerifyIDToken(ctx context.Context, idToken string) (FederatedClaims, error) {
	if s.err != nil {
		return FederatedClaims{}, s.err
	}
	return s.claims, nil
}

func newTestService(t *testing.T, verifier IdentityVerifier) (*Service, *fakeStore, *token.Codec) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	codec, err := token.NewCodec(testSecret, time.Hour)
	require.NoError(t, err)

	store := newFakeStore()
	svc := NewService(nil, store, store, codec, token.NewBlacklist(client), verifier)
	return svc, store, codec
}

func signupFixture() SignupRequest {
	return SignupRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "a@x.com",
		Password:  "correct horse",
	}
}

// ============================================================================
// SIGNUP / LOGIN
// ============================================================================

func TestSignupIssuesTokenForNewUser(t *testing.T) {
	svc, store, codec := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	resp, err := svc.Signup(ctx, signupFixture())
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", resp.User.Email)
	assert.False(t, resp.User.EmailVerified)
	assert.True(t, codec.Verify(resp.Token))

	subject, err := codec.Subject(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", subject)

	stored := store.byID[resp.User.UserID]
	require.NotNil(t, stored.PasswordHash)
	assert.NoError(t, CheckPassword(*stored.PasswordHash, "correct horse"))
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, store, _ := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	_, err := svc.Signup(ctx, signupFixture())
	require.NoError(t, err)

	_, err = svc.Signup(ctx, signupFixture())
	assert.ErrorIs(t, err, shared.ErrDuplicateEmail)
	assert.Len(t, store.byID, 1)
}

func TestLoginSuccessRecordsLastLogin(t *testing.T) {
	svc, store, _ := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	signup, err := svc.Signup(ctx, signupFixture())
	require.NoError(t, err)

	resp, err := svc.Login(ctx, LoginRequest{Email: "a@x.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, signup.User.UserID, resp.User.UserID)
	assert.NotNil(t, store.byID[resp.User.UserID].LastLoginAt)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	_, err := svc.Signup(ctx, signupFixture())
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "a@x.com", Password: "wrong"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newTestService(t, &stubVerifier{})

	_, err := svc.Login(context.Background(), LoginRequest{Email: "nobody@x.com", Password: "whatever"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLoginFederatedOnlyAccount(t *testing.T) {
	svc, store, _ := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	_, err := store.Create(ctx, users.User{FirstName: "Ada", Email: "a@x.com", PasswordHash: nil})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "a@x.com", Password: "anything"})
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

// ============================================================================
// FEDERATED LOGIN
// ============================================================================

func googleClaims() FederatedClaims {
	return FederatedClaims{
		Provider:      FirebaseProvider,
		SubjectID:     "uid-1",
		Email:         "a@x.com",
		EmailVerified: true,
		DisplayName:   "Ada Lovelace",
	}
}

func TestGoogleLoginCreatesUserAndLinkOnce(t *testing.T) {
	svc, store, _ := newTestService(t, &stubVerifier{claims: googleClaims()})
	ctx := context.Background()

	first, err := svc.LoginWithGoogle(ctx, "id-token-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", first.User.FirstName)
	assert.Equal(t, "Lovelace", first.User.LastName)
	assert.True(t, first.User.EmailVerified)
	assert.Len(t, store.byID, 1)
	assert.Len(t, store.links, 1)
	assert.Nil(t, store.byID[first.User.UserID].PasswordHash)

	second, err := svc.LoginWithGoogle(ctx, "id-token-2")
	require.NoError(t, err)
	assert.Equal(t, first.User.UserID, second.User.UserID)
	assert.Len(t, store.byID, 1)
	assert.Len(t, store.links, 1)
}

func TestGoogleLoginRefreshesStoredToken(t *testing.T) {
	svc, store, _ := newTestService(t, &stubVerifier{claims: googleClaims()})
	ctx := context.Background()

	_, err := svc.LoginWithGoogle(ctx, "id-token-1")
	require.NoError(t, err)
	_, err = svc.LoginWithGoogle(ctx, "id-token-2")
	require.NoError(t, err)

	link, err := store.FindFederated(ctx, FirebaseProvider, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "id-token-2", link.AccessToken)
}

func TestGoogleLoginLinksExistingLocalAccount(t *testing.T) {
	svc, store, _ := newTestService(t, &stubVerifier{claims: googleClaims()})
	ctx := context.Background()

	signup, err := svc.Signup(ctx, signupFixture())
	require.NoError(t, err)

	resp, err := svc.LoginWithGoogle(ctx, "id-token-1")
	require.NoError(t, err)
	assert.Equal(t, signup.User.UserID, resp.User.UserID)
	assert.Len(t, store.byID, 1)

	link, err := store.FindFederated(ctx, FirebaseProvider, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, signup.User.UserID, link.UserID)
	// The linked account keeps its local credential.
	require.NotNil(t, store.byID[signup.User.UserID].PasswordHash)
}

func TestGoogleLoginVerificationFailure(t *testing.T) {
	svc, store, _ := newTestService(t, &stubVerifier{err: shared.ErrTokenVerification})

	_, err := svc.LoginWithGoogle(context.Background(), "bad-token")
	assert.ErrorIs(t, err, shared.ErrTokenVerification)
	assert.Empty(t, store.byID)
	assert.Empty(t, store.links)
}

func TestGoogleLoginWithoutDisplayName(t *testing.T) {
	claims := googleClaims()
	claims.DisplayName = ""
	svc, _, _ := newTestService(t, &stubVerifier{claims: claims})

	resp, err := svc.LoginWithGoogle(context.Background(), "id-token-1")
	require.NoError(t, err)
	assert.Equal(t, "firebase User", resp.User.FirstName)
	assert.Empty(t, resp.User.LastName)
}

// ============================================================================
// LOGOUT / VALIDATION
// ============================================================================

func TestRevocationDominatesSignatureValidity(t *testing.T) {
	svc, _, codec := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	resp, err := svc.Signup(ctx, signupFixture())
	require.NoError(t, err)

	valid, err := svc.IsValidToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.True(t, valid)

	require.NoError(t, svc.Logout(ctx, "Bearer "+resp.Token))

	// The codec alone still accepts the token; the orchestrator must not.
	assert.True(t, codec.Verify(resp.Token))
	valid, err = svc.IsValidToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	resp, err := svc.Signup(ctx, signupFixture())
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "Bearer "+resp.Token))
	require.NoError(t, svc.Logout(ctx, "Bearer "+resp.Token))

	valid, err := svc.IsValidToken(ctx, resp.Token)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestLogoutExpiredTokenIsNoop(t *testing.T) {
	svc, _, codec := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	issued := time.Now()
	codec.WithNow(func() time.Time { return issued })
	resp, err := svc.Signup(ctx, signupFixture())
	require.NoError(t, err)

	// Logout happens after the token's natural expiry.
	svc.WithNow(func() time.Time { return issued.Add(2 * time.Hour) })
	require.NoError(t, svc.Logout(ctx, "Bearer "+resp.Token))

	revoked, err := svc.blacklist.IsRevoked(ctx, resp.Token)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestLogoutMalformedToken(t *testing.T) {
	svc, _, _ := newTestService(t, &stubVerifier{})

	err := svc.Logout(context.Background(), "Bearer not-a-token")
	assert.ErrorIs(t, err, shared.ErrMalformedToken)
}

func TestIsValidTokenStripsBearerPrefix(t *testing.T) {
	svc, _, _ := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	resp, err := svc.Signup(ctx, signupFixture())
	require.NoError(t, err)

	valid, err := svc.IsValidToken(ctx, "Bearer "+resp.Token)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestCurrentUserResolvesAccount(t *testing.T) {
	svc, _, _ := newTestService(t, &stubVerifier{})
	ctx := context.Background()

	resp, err := svc.Signup(ctx, signupFixture())
	require.NoError(t, err)

	user, err := svc.CurrentUser(ctx, "Bearer "+resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.UserID, user.ID)

	require.NoError(t, svc.Logout(ctx, resp.Token))
	_, err = svc.CurrentUser(ctx, "Bearer "+resp.Token)
	assert.ErrorIs(t, err, shared.ErrMalformedToken)
}

func TestSplitDisplayName(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		first string
		last  string
	}{
		{"two parts", "Ada Lovelace", "Ada", "Lovelace"},
		{"many parts", "Ada King Lovelace", "Ada", "King Lovelace"},
		{"single part", "Ada", "Ada", ""},
		{"empty", "", "firebase User", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first, last := splitDisplayName(tc.in)
			assert.Equal(t, tc.first, first)
			assert.Equal(t, tc.last, last)
		})
	}
}
