package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yurica-pos/internal/database/dbtest"
	menudb "yurica-pos/internal/menu/db"
)

func TestSeedMenuOnlyFillsEmptyMenu(t *testing.T) {
	bunDB := dbtest.New(t)
	ctx := context.Background()

	n, err := seedMenu(ctx, bunDB)
	require.NoError(t, err)
	assert.Equal(t, len(starterMenu), n)

	n, err = seedMenu(ctx, bunDB)
	require.NoError(t, err)
	assert.Zero(t, n)

	items, err := menudb.New(bunDB).ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, len(starterMenu))
}
