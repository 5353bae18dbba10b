package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"
	"tutorhub_backend/internal/repository"
	"tutorhub_backend/internal/testutil"
	"tutorhub_backend/internal/util"
	"tutorhub_backend/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillCreateNormalizesAndRejectsDuplicates(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewSkillService(repository.NewSkillRepository(db), nil)
	ctx := context.Background()

	skill, err := svc.Create(ctx, "  Long   Division ", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Long Division", skill.Name)

	_, err = svc.Create(ctx, "Long Division", "", nil)
	assert.True(t, util.IsValidation(err))

	_, err = svc.Create(ctx, "   ", "", nil)
	assert.True(t, util.IsValidation(err))
}

func TestSkillSuggestCreatesMissing(t *testing.T) {
	db := testutil.NewDB(t)
	existing := testutil.CreateSkill(t, db, "Fractions")

	raw, err := json.Marshal(map[string]any{"topics": []map[string]any{
		{"name": "Fractions"},
		{"name": "Decimals", "description": "Place value after the point"},
	}})
	require.NoError(t, err)
	gen := NewContentGenerator(llm.NewMockProvider(llm.MockResponse{Content: raw}), genConfig(), time.Second)
	repo := repository.NewSkillRepository(db)
	svc := NewSkillService(repo, gen)

	track := uint(3)
	got, err := svc.Suggest(context.Background(), "Arithmetic", 5, true, &track)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].Existing)
	assert.Equal(t, existing.ID, *got[0].SkillID)

	assert.False(t, got[1].Existing)
	require.NotNil(t, got[1].SkillID)
	created, err := repo.FindByName(context.Background(), "Decimals")
	require.NoError(t, err)
	assert.Equal(t, *got[1].SkillID, created.ID)
	require.NotNil(t, created.TrackID)
	assert.Equal(t, track, *created.TrackID)
}
