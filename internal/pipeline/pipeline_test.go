package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/domain"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage/memory"
)

func TestRunDetectsClustersAndPersistsWithoutValidatorOrEnricher(t *testing.T) {
	store := memory.New()
	store.AddEntity(memory.Entity{ID: "c1", Kind: domain.KindCity, Name: "Sao Paulo", StateCode: "SP"})
	store.AddEntity(memory.Entity{ID: "c2", Kind: domain.KindCity, Name: "Sao Paulo ", StateCode: "SP"})

	p := New(store, nil, nil, nil)
	summaries, err := p.Run(context.Background(), Config{Threshold: 0.3, Limit: 200})
	require.NoError(t, err)
	require.Len(t, summaries, 4)
	assert.Equal(t, domain.KindCity, summaries[0].Kind)

	groups, total, err := store.ListGroups(context.Background(), storage.GroupFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, groups, 1)
	assert.Equal(t, domain.SourceTrigram, groups[0].Source)

	logs, err := store.RecentRunLogs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.RunCompleted, logs[0].Status)
}

func TestRunStopsBetweenKindsWhenCancelled(t *testing.T) {
	store := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(store, nil, nil, nil)
	_, err := p.Run(ctx, Config{Threshold: 0.3, Limit: 200})
	require.Error(t, err)

	logs, err2 := store.RecentRunLogs(context.Background(), 1)
	require.NoError(t, err2)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.RunErrored, logs[0].Status)
}
