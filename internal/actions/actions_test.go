package actions

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"zemini/internal/accounts"
	"zemini/internal/artifacts"
	"zemini/internal/auth"
	"zemini/internal/generation"
)

type providerStub struct {
	mu       sync.Mutex
	requests []generation.Request
	image    []byte
	err      error
	block    bool
}

func (p *providerStub) Generate(ctx context.Context, req generation.Request) ([]byte, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.image, nil
}

type storeStub struct {
	mu      sync.Mutex
	folders []string
	uploads [][]byte
	err     error
}

func (s *storeStub) Upload(ctx context.Context, data []byte, folder string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders = append(s.folders, folder)
	s.uploads = append(s.uploads, data)
	return fmt.Sprintf("https://cdn.example.com/%s/%d.png", folder, len(s.uploads)), nil
}

func (s *storeStub) UploadStream(ctx context.Context, r io.Reader, folder string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return s.Upload(ctx, data, folder)
}

type failingArtifactRepo struct {
	artifacts.Repository
}

func (failingArtifactRepo) Create(context.Context, artifacts.Artifact) (artifacts.Artifact, error) {
	return artifacts.Artifact{}, errors.New("connection refused")
}

type fixture struct {
	actions   *Actions
	users     *accounts.InMemoryRepository
	artifacts *artifacts.InMemoryRepository
	provider  *providerStub
	store     *storeStub
	tokens    *auth.TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:     accounts.NewInMemoryRepository(nil),
		artifacts: artifacts.NewInMemoryRepository(nil),
		provider:  &providerStub{image: []byte("\x89PNG image")},
		store:     &storeStub{},
		tokens:    auth.NewTokenIssuer("test-secret-test-secret-test-secret", time.Hour),
	}
	f.actions = New(Dependencies{
		Accounts:        accounts.NewService(f.users, accounts.NewHasher(bcrypt.MinCost)),
		Artifacts:       f.artifacts,
		Provider:        f.provider,
		Store:           f.store,
		Tokens:          f.tokens,
		ProviderTimeout: time.Second,
		StorageTimeout:  time.Second,
	})
	return f
}

// signUp registers and signs in a user, returning the resolved identity.
func (f *fixture) signUp(t *testing.T, name, email, password string) auth.Identity {
	t.Helper()
	ctx := context.Background()
	registered := f.actions.Register(ctx, RegisterInput{FullName: name, Email: email, Password: password})
	require.True(t, registered.OK(), "register: %s", registered.Message())

	session := f.actions.Login(ctx, LoginInput{Email: email, Password: password})
	require.True(t, session.OK(), "login: %s", session.Message())

	identity := f.tokens.Resolve(session.Data().Token)
	require.False(t, identity.IsGuest())
	return identity
}

func TestRegisterAndLoginScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.actions.Register(ctx, RegisterInput{FullName: "Jane Doe", Email: "jane@example.com", Password: "secret123"})
	require.True(t, first.OK())
	assert.Equal(t, "jane@example.com", first.Data().Email)
	assert.Contains(t, first.Data().ImageLink, "ui-avatars.com")

	again := f.actions.Register(ctx, RegisterInput{FullName: "Jane Again", Email: "jane@example.com", Password: "other-password"})
	require.False(t, again.OK())
	assert.Equal(t, KindConflict, again.Err().Kind)

	stored, err := f.users.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", stored.FullName)

	session := f.actions.Login(ctx, LoginInput{Email: "jane@example.com", Password: "secret123"})
	require.True(t, session.OK())
	assert.NotEmpty(t, session.Data().Token)
	assert.Equal(t, "Jane Doe", session.Data().Profile.FullName)

	identity := f.tokens.Resolve(session.Data().Token)
	assert.Equal(t, "jane@example.com", identity.Email())

	wrong := f.actions.Login(ctx, LoginInput{Email: "jane@example.com", Password: "wrongpw"})
	require.False(t, wrong.OK())
	assert.Equal(t, KindUnauthorized, wrong.Err().Kind)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input RegisterInput
		want  string
	}{
		{"missing name", RegisterInput{Email: "a@example.com", Password: "secret123"}, "full_name is required"},
		{"missing email", RegisterInput{FullName: "A", Password: "secret123"}, "email is required"},
		{"bad email", RegisterInput{FullName: "A", Email: "nope", Password: "secret123"}, "email must be a valid email address"},
		{"missing password", RegisterInput{FullName: "A", Email: "a@example.com"}, "password is required"},
		{"short password", RegisterInput{FullName: "A", Email: "a@example.com", Password: "abc"}, "password must be at least 6 characters"},
		{"confirmation mismatch", RegisterInput{FullName: "A", Email: "a@example.com", Password: "secret123", ConfirmPassword: "secret124"}, "passwords do not match"},
		{"blank name", RegisterInput{FullName: "   ", Email: "a@example.com", Password: "secret123"}, "full_name is required"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := f.actions.Register(ctx, tc.input)
			require.False(t, result.OK())
			assert.Equal(t, KindValidation, result.Err().Kind)
			assert.Equal(t, tc.want, result.Message())
		})
	}

	_, err := f.users.FindByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, accounts.ErrNotFound)
}

func TestConcurrentRegistrationAdmitsOne(t *testing.T) {
	f := newFixture(t)

	const attempts = 8
	results := make(chan Result[Profile], attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- f.actions.Register(context.Background(), RegisterInput{
				FullName: fmt.Sprintf("Racer %d", i),
				Email:    "race@example.com",
				Password: "secret123",
			})
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded, conflicted := 0, 0
	for result := range results {
		if result.OK() {
			succeeded++
		} else if result.Err().Kind == KindConflict {
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicted)
}

func TestLoginDoesNotRevealWhichPartFailed(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "Jane Doe", "jane@example.com", "secret123")

	unknown := f.actions.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "secret123"})
	wrong := f.actions.Login(context.Background(), LoginInput{Email: "jane@example.com", Password: "not-it"})

	require.False(t, unknown.OK())
	require.False(t, wrong.OK())
	assert.Equal(t, unknown.Err().Kind, wrong.Err().Kind)
	assert.Equal(t, unknown.Message(), wrong.Message())
	assert.Equal(t, "invalid email or password", wrong.Message())
}

func TestFederatedSignInReusesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profile := accounts.FederatedProfile{Provider: accounts.ProviderGoogle, Email: "fed@example.com", Name: "Fed User", Picture: "https://lh3.example.com/a.png"}

	first := f.actions.SignInFederated(ctx, profile)
	require.True(t, first.OK())
	second := f.actions.SignInFederated(ctx, profile)
	require.True(t, second.OK())

	assert.Equal(t, first.Data().Profile.ID, second.Data().Profile.ID)
	assert.Equal(t, "https://lh3.example.com/a.png", second.Data().Profile.ImageLink)

	login := f.actions.Login(ctx, LoginInput{Email: "fed@example.com", Password: "anything"})
	require.False(t, login.OK())
	assert.Equal(t, KindUnauthorized, login.Err().Kind)
}

func TestUpdatePasswordRotatesCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity := f.signUp(t, "Jane Doe", "jane@example.com", "secret123")

	result := f.actions.UpdatePassword(ctx, identity, PasswordInput{CurrentPassword: "secret123", NewPassword: "brand-new-pass", ConfirmPassword: "brand-new-pass"})
	require.True(t, result.OK(), result.Message())

	assert.True(t, f.actions.Login(ctx, LoginInput{Email: "jane@example.com", Password: "brand-new-pass"}).OK())
	assert.False(t, f.actions.Login(ctx, LoginInput{Email: "jane@example.com", Password: "secret123"}).OK())
}

func TestUpdatePasswordWrongCurrentLeavesHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity := f.signUp(t, "Jane Doe", "jane@example.com", "secret123")

	before, err := f.users.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result := f.actions.UpdatePassword(ctx, identity, PasswordInput{CurrentPassword: "wrong-current", NewPassword: "brand-new-pass"})
		require.False(t, result.OK())
		assert.Equal(t, KindValidation, result.Err().Kind)
	}

	after, err := f.users.FindByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestUpdatePasswordFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity := f.signUp(t, "Jane Doe", "jane@example.com", "secret123")

	guest := f.actions.UpdatePassword(ctx, auth.Guest(), PasswordInput{CurrentPassword: "secret123", NewPassword: "brand-new-pass"})
	require.False(t, guest.OK())
	assert.Equal(t, KindUnauthorized, guest.Err().Kind)
	assert.Equal(t, "Unauthorized", guest.Message())

	mismatch := f.actions.UpdatePassword(ctx, identity, PasswordInput{CurrentPassword: "secret123", NewPassword: "brand-new-pass", ConfirmPassword: "different"})
	require.False(t, mismatch.OK())
	assert.Equal(t, "passwords do not match", mismatch.Message())

	ghost := auth.Authenticated(auth.Principal{UserID: uuid.New(), Email: "ghost@example.com"})
	missing := f.actions.UpdatePassword(ctx, ghost, PasswordInput{CurrentPassword: "secret123", NewPassword: "brand-new-pass"})
	require.False(t, missing.OK())
	assert.Equal(t, KindNotFound, missing.Err().Kind)
}

func TestUpdateProfileUploadsAvatarAndKeepsBlankName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity := f.signUp(t, "Jane Doe", "jane@example.com", "secret123")

	result := f.actions.UpdateProfile(ctx, identity, ProfileInput{FullName: "  ", Avatar: strings.NewReader("avatar-bytes")})
	require.True(t, result.OK(), result.Message())
	assert.Equal(t, "Jane Doe", result.Data().FullName)
	assert.Equal(t, "https://cdn.example.com/avatars/1.png", result.Data().ImageLink)
	assert.Equal(t, []string{"avatars"}, f.store.folders)

	renamed := f.actions.UpdateProfile(ctx, identity, ProfileInput{FullName: "Jane Smith"})
	require.True(t, renamed.OK())
	assert.Equal(t, "Jane Smith", renamed.Data().FullName)
	assert.Equal(t, "https://cdn.example.com/avatars/1.png", renamed.Data().ImageLink)

	profile := f.actions.GetProfile(ctx, identity)
	require.True(t, profile.OK())
	assert.Equal(t, "Jane Smith", profile.Data().FullName)
}

func TestUpdateProfileRequiresSession(t *testing.T) {
	f := newFixture(t)

	result := f.actions.UpdateProfile(context.Background(), auth.Guest(), ProfileInput{FullName: "Nobody"})
	require.False(t, result.OK())
	assert.Equal(t, KindUnauthorized, result.Err().Kind)
	assert.Empty(t, f.store.uploads)
}

func TestUpdateProfileAvatarUploadFailure(t *testing.T) {
	f := newFixture(t)
	identity := f.signUp(t, "Jane Doe", "jane@example.com", "secret123")
	f.store.err = errors.New("cloudinary: 401 invalid api key")

	result := f.actions.UpdateProfile(context.Background(), identity, ProfileInput{Avatar: strings.NewReader("x")})
	require.False(t, result.OK())
	assert.Equal(t, KindProvider, result.Err().Kind)
	assert.NotContains(t, result.Message(), "api key")
}

func TestGenerateThenListRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity := f.signUp(t, "Jane Doe", "jane@example.com", "secret123")

	before := f.actions.ListArtifacts(ctx, identity)
	require.True(t, before.OK())
	assert.Empty(t, before.Data())

	generated := f.actions.GenerateArtifact(ctx, identity, GenerateInput{Prompt: "x", Kind: "generate"})
	require.True(t, generated.OK(), generated.Message())
	assert.NotEmpty(t, generated.Data().URL)
	assert.Equal(t, "Image generated successfully", generated.Message())

	after := f.actions.ListArtifacts(ctx, identity)
	require.True(t, after.OK())
	require.Len(t, after.Data(), 1)
	assert.Equal(t, "x", after.Data()[0].Prompt)
	assert.NotEmpty(t, after.Data()[0].URL)
	assert.Equal(t, []string{"zemini/generated"}, f.store.folders)
}

func TestGenerateListsMostRecentFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity := f.signUp(t, "Jane Doe", "jane@example.com", "secret123")

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.actions.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for _, prompt := range []string{"first", "second", "third"} {
		require.True(t, f.actions.GenerateArtifact(ctx, identity, GenerateInput{Prompt: prompt}).OK())
	}

	listed := f.actions.ListArtifacts(ctx, identity)
	require.True(t, listed.OK())
	require.Len(t, listed.Data(), 3)
	assert.Equal(t, "third", listed.Data()[0].Prompt)
	assert.Equal(t, "first", listed.Data()[2].Prompt)
}

func TestGenerateConversions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity := f.signUp(t, "Jane Doe", "jane@example.com", "secret123")

	missing := f.actions.GenerateArtifact(ctx, identity, GenerateInput{Prompt: "make it soft", Kind: "ghibli"})
	require.False(t, missing.OK())
	assert.Equal(t, KindValidation, missing.Err().Kind)

	badScheme := f.actions.GenerateArtifact(ctx, identity, GenerateInput{Prompt: "make it soft", Kind: "ghibli", SourceURL: "file:///etc/passwd"})
	require.False(t, badScheme.OK())
	assert.Equal(t, KindValidation, badScheme.Err().Kind)
	assert.Empty(t, f.provider.requests)

	converted := f.actions.GenerateArtifact(ctx, identity, GenerateInput{Prompt: "make it soft", Kind: "ghibli", SourceURL: "https://example.com/cat.png"})
	require.True(t, converted.OK(), converted.Message())
	assert.Equal(t, "Image converted to Ghibli style successfully", converted.Message())
	assert.Equal(t, "https://example.com/cat.png", converted.Data().Artifact.SourceURL)
	assert.Equal(t, artifacts.KindGhibli, converted.Data().Artifact.Kind)
	assert.Equal(t, []string{"zemini/ghibli"}, f.store.folders)

	direct := f.actions.GenerateArtifact(ctx, identity, GenerateInput{Prompt: "a lighthouse", SourceURL: "https://example.com/ignored.png"})
	require.True(t, direct.OK())
	assert.Empty(t, direct.Data().Artifact.SourceURL)
	assert.Empty(t, f.provider.requests[len(f.provider.requests)-1].SourceURL)
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := f.actions.GenerateArtifact(ctx, auth.Guest(), GenerateInput{Prompt: "   "})
	require.False(t, empty.OK())
	assert.Equal(t, "prompt is required", empty.Message())

	long := f.actions.GenerateArtifact(ctx, auth.Guest(), GenerateInput{Prompt: strings.Repeat("a", maxPromptLength+1)})
	require.False(t, long.OK())
	assert.Equal(t, KindValidation, long.Err().Kind)

	kind := f.actions.GenerateArtifact(ctx, auth.Guest(), GenerateInput{Prompt: "x", Kind: "sketch"})
	require.False(t, kind.OK())
	assert.Equal(t, KindValidation, kind.Err().Kind)

	assert.Empty(t, f.provider.requests)
}

func TestGuestGenerationIsNotVisibleToUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	guestResult := f.actions.GenerateArtifact(ctx, auth.Guest(), GenerateInput{Prompt: "anonymous"})
	require.True(t, guestResult.OK())
	assert.True(t, guestResult.Data().Artifact.Owner.IsGuest())

	identity := f.signUp(t, "Guest", "guest@example.com", "secret123")
	listed := f.actions.ListArtifacts(ctx, identity)
	require.True(t, listed.OK())
	assert.Empty(t, listed.Data())

	deleted := f.actions.DeleteArtifact(ctx, identity, guestResult.Data().Artifact.ID.String())
	require.False(t, deleted.OK())
	assert.Equal(t, KindNotFound, deleted.Err().Kind)
}

func TestGenerateProviderFailureIsSanitized(t *testing.T) {
	f := newFixture(t)
	f.provider.err = &generation.ProviderError{Provider: "worker", StatusCode: 500, Detail: "stack trace at /srv/worker.py line 12"}

	result := f.actions.GenerateArtifact(context.Background(), auth.Guest(), GenerateInput{Prompt: "x"})
	require.False(t, result.OK())
	assert.Equal(t, KindProvider, result.Err().Kind)
	assert.False(t, result.Err().Retryable)
	assert.Equal(t, "image generation failed", result.Message())

	body, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "worker.py")
	assert.Empty(t, f.store.uploads)
}

func TestGenerateTimeoutIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.provider.block = true
	f.actions.providerTimeout = 20 * time.Millisecond

	started := time.Now()
	result := f.actions.GenerateArtifact(context.Background(), auth.Guest(), GenerateInput{Prompt: "x"})
	require.False(t, result.OK())
	assert.Equal(t, KindProvider, result.Err().Kind)
	assert.True(t, result.Err().Retryable)
	assert.ErrorIs(t, result.Err(), context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestGenerateStorageFailure(t *testing.T) {
	f := newFixture(t)
	identity := f.signUp(t, "Jane Doe", "jane@example.com", "secret123")
	f.store.err = errors.New("upload rejected")

	result := f.actions.GenerateArtifact(context.Background(), identity, GenerateInput{Prompt: "x"})
	require.False(t, result.OK())
	assert.Equal(t, KindProvider, result.Err().Kind)

	listed := f.actions.ListArtifacts(context.Background(), identity)
	assert.Empty(t, listed.Data())
}

func TestGeneratePersistenceFailureKeepsUpload(t *testing.T) {
	f := newFixture(t)
	f.actions.artifacts = failingArtifactRepo{Repository: f.artifacts}

	result := f.actions.GenerateArtifact(context.Background(), auth.Guest(), GenerateInput{Prompt: "x"})
	require.False(t, result.OK())
	assert.Equal(t, KindPersistence, result.Err().Kind)
	assert.Len(t, f.store.uploads, 1)
}

func TestDeleteArtifactOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.signUp(t, "Owner", "owner@example.com", "secret123")
	other := f.signUp(t, "Other", "other@example.com", "secret123")

	generated := f.actions.GenerateArtifact(ctx, owner, GenerateInput{Prompt: "mine"})
	require.True(t, generated.OK())
	id := generated.Data().Artifact.ID.String()

	foreign := f.actions.DeleteArtifact(ctx, other, id)
	require.False(t, foreign.OK())
	absent := f.actions.DeleteArtifact(ctx, other, uuid.NewString())
	require.False(t, absent.OK())

	assert.Equal(t, KindNotFound, foreign.Err().Kind)
	assert.Equal(t, absent.Err().Kind, foreign.Err().Kind)
	assert.Equal(t, absent.Message(), foreign.Message())

	listed := f.actions.ListArtifacts(ctx, owner)
	require.Len(t, listed.Data(), 1)

	guest := f.actions.DeleteArtifact(ctx, auth.Guest(), id)
	require.False(t, guest.OK())
	assert.Equal(t, KindUnauthorized, guest.Err().Kind)

	malformed := f.actions.DeleteArtifact(ctx, owner, "not-a-uuid")
	require.False(t, malformed.OK())
	assert.Equal(t, KindValidation, malformed.Err().Kind)

	deleted := f.actions.DeleteArtifact(ctx, owner, id)
	require.True(t, deleted.OK())
	assert.Empty(t, f.actions.ListArtifacts(ctx, owner).Data())

	again := f.actions.DeleteArtifact(ctx, owner, id)
	require.False(t, again.OK())
	assert.Equal(t, KindNotFound, again.Err().Kind)
}

func TestListArtifactsEmptyIsNotNull(t *testing.T) {
	f := newFixture(t)
	identity := f.signUp(t, "Jane Doe", "jane@example.com", "secret123")

	listed := f.actions.ListArtifacts(context.Background(), identity)
	require.True(t, listed.OK())
	require.NotNil(t, listed.Data())

	body, err := json.Marshal(listed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","message":"Images loaded","data":[]}`, string(body))

	guest := f.actions.ListArtifacts(context.Background(), auth.Guest())
	require.False(t, guest.OK())
	assert.Equal(t, KindUnauthorized, guest.Err().Kind)
}

func TestExportArtifacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity := f.signUp(t, "Jane Doe", "jane@example.com", "secret123")
	require.True(t, f.actions.GenerateArtifact(ctx, identity, GenerateInput{Prompt: "a red fox"}).OK())

	var buf bytes.Buffer
	result := f.actions.ExportArtifacts(ctx, identity, &buf)
	require.True(t, result.OK())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Contains(t, records[1], "a red fox")

	buf.Reset()
	guest := f.actions.ExportArtifacts(ctx, auth.Guest(), &buf)
	require.False(t, guest.OK())
	assert.Zero(t, buf.Len())
}
