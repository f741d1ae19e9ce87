package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NewRunSupersedesPrevious(t *testing.T) {
	reg := NewRegistry()

	first, firstID, doneFirst, err := reg.Start(context.Background(), "doc", "")
	require.NoError(t, err)
	defer doneFirst()
	assert.NotEmpty(t, firstID)

	second, secondID, doneSecond, err := reg.Start(context.Background(), "doc", "run-2")
	require.NoError(t, err)
	defer doneSecond()
	assert.Equal(t, "run-2", secondID)

	<-first.Done()
	assert.True(t, Discarded(first))
	assert.NoError(t, second.Err())
	assert.Equal(t, 1, reg.Active())

	// finishing the superseded run must not unregister the new one
	doneFirst()
	assert.Equal(t, 1, reg.Active())
}

func TestRegistry_Cancel(t *testing.T) {
	reg := NewRegistry()

	ctx, id, done, err := reg.Start(context.Background(), "doc", "")
	require.NoError(t, err)
	defer done()

	require.NoError(t, reg.Cancel(id))
	<-ctx.Done()
	assert.True(t, Discarded(ctx))
	assert.Equal(t, 0, reg.Active())
	assert.ErrorIs(t, reg.Cancel(id), ErrRunNotFound)
}

func TestRegistry_DoneIsNotADiscard(t *testing.T) {
	reg := NewRegistry()
	ctx, _, done, err := reg.Start(context.Background(), "doc", "")
	require.NoError(t, err)
	done()

	<-ctx.Done()
	assert.False(t, Discarded(ctx))
	assert.Equal(t, 0, reg.Active())
}

func TestRegistry_DuplicateRunID(t *testing.T) {
	reg := NewRegistry()
	_, _, done, err := reg.Start(context.Background(), "a", "same")
	require.NoError(t, err)
	defer done()

	_, _, _, err = reg.Start(context.Background(), "b", "same")
	assert.ErrorIs(t, err, ErrRunActive)
}
