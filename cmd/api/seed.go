package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"zemini/internal/accounts"
	"zemini/internal/artifacts"
	"zemini/internal/auth"
)

const (
	demoEmail    = "demo@zemini.dev"
	demoPassword = "demo-password"
	demoName     = "Demo Artist"
)

// seedLocalData returns a demo account and its image history for the
// in-memory store.
func seedLocalData(hasher *accounts.Hasher) ([]accounts.User, []artifacts.Artifact, error) {
	now := time.Now().UTC()

	hash, err := hasher.Hash(demoPassword)
	if err != nil {
		return nil, nil, fmt.Errorf("hash demo password: %w", err)
	}

	user := accounts.User{
		ID:           uuid.New(),
		Email:        demoEmail,
		FullName:     demoName,
		PasswordHash: hash,
		ImageLink:    accounts.DefaultAvatarURL(demoName),
		AuthProvider: accounts.ProviderCredentials,
		CreatedAt:    now.Add(-72 * time.Hour),
		UpdatedAt:    now.Add(-72 * time.Hour),
	}

	owner := auth.Authenticated(auth.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.FullName,
		AvatarURL: user.ImageLink,
	})

	history := []artifacts.Artifact{
		{
			ID:        uuid.New(),
			Owner:     owner,
			Prompt:    "A lighthouse on a basalt cliff at dusk, oil painting",
			URL:       "https://picsum.photos/seed/zemini-lighthouse/768/768",
			Kind:      artifacts.KindGenerate,
			CreatedAt: now.Add(-48 * time.Hour),
		},
		{
			ID:        uuid.New(),
			Owner:     owner,
			Prompt:    "Turn this street corner into a Ghibli scene",
			URL:       "https://picsum.photos/seed/zemini-ghibli/768/768",
			SourceURL: "https://picsum.photos/seed/zemini-street/768/768",
			Kind:      artifacts.KindGhibli,
			CreatedAt: now.Add(-24 * time.Hour),
		},
		{
			ID:        uuid.New(),
			Owner:     owner,
			Prompt:    "Same composition as a watercolor",
			URL:       "https://picsum.photos/seed/zemini-watercolor/768/768",
			SourceURL: "https://picsum.photos/seed/zemini-lighthouse/768/768",
			Kind:      artifacts.KindImg2Img,
			CreatedAt: now.Add(-2 * time.Hour),
		},
	}

	return []accounts.User{user}, history, nil
}
