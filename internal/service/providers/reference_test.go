package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/kyt-auditor/internal/domain/kyt"
)

func TestReferenceSanctions_Search(t *testing.T) {
	p := NewReferenceSanctions(nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		query     string
		wantIDs   []string
		wantType  kyt.MatchType
		wantScore float64
	}{
		{
			name:      "exact name",
			query:     "ACME Shell Corporation",
			wantIDs:   []string{"SDN-001"},
			wantType:  kyt.MatchExact,
			wantScore: 1,
		},
		{
			name:      "exact alias is case insensitive",
			query:     "sfg ltd",
			wantIDs:   []string{"SDN-005"},
			wantType:  kyt.MatchExact,
			wantScore: 1,
		},
		{
			name:      "partial name is fuzzy",
			query:     "Offshore",
			wantIDs:   []string{"SDN-002"},
			wantType:  kyt.MatchFuzzy,
			wantScore: 0.47,
		},
		{
			name:  "no match",
			query: "Jane Doe",
		},
		{
			name:  "blank query",
			query: "   ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := p.Search(ctx, tt.query)
			require.NoError(t, err)
			require.Len(t, matches, len(tt.wantIDs))

			for i, id := range tt.wantIDs {
				assert.Equal(t, id, matches[i].EntryID)
				assert.Equal(t, tt.query, matches[i].EntityQueried)
				assert.Equal(t, tt.wantType, matches[i].MatchType)
				assert.InDelta(t, tt.wantScore, matches[i].MatchScore, 0.001)
			}
		})
	}

	t.Run("list name", func(t *testing.T) {
		matches, err := p.Search(ctx, "ACME Shell Corporation")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "OFAC SDN", matches[0].ListName)
	})
}

func TestReferencePolicySearch(t *testing.T) {
	p := NewReferencePolicySearch(nil)
	ctx := context.Background()

	docs, err := p.Search(ctx, "CTR", "BSA")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "POL-001", docs[0].ID)

	docs, err = p.Search(ctx, "enhanced due diligence", "")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "POL-003", docs[0].ID)

	docs, err = p.Search(ctx, "cryptocurrency mixers", "")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "POL-001", docs[0].ID)
	assert.Equal(t, "POL-002", docs[1].ID)
}

func TestReferenceTextSafety(t *testing.T) {
	res, err := NewReferenceTextSafety().Classify(context.Background(), `{"reasoning":"Round number amount"}`)
	require.NoError(t, err)
	assert.True(t, res.IsSafe)
	assert.Len(t, res.Categories, 4)

	assert.False(t, IsSafe(map[string]int{"Hate": 0, "Violence": 2}))
}

func TestReferenceProviders_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReferenceSanctions(nil).Search(ctx, "ACME")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewReferencePolicySearch(nil).Search(ctx, "CTR", "")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = NewReferenceTextSafety().Classify(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}
