package state_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wewlang/wewc/internal/state"
	"github.com/wewlang/wewc/internal/testutil"
)

func openStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	s := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, s.Open(":memory:"))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndGetBuild(t *testing.T) {
	s := openStore(t)

	b := &state.Build{
		SourceFile: "main.wew",
		SourceHash: "9f86d081884c7d65",
		OutputPath: "main.bin",
		Status:     state.BuildStatusOK,
		BinarySize: 412,
		Functions:  3,
		DataBytes:  16,
		RegCount:   10,
		Duration:   3 * time.Millisecond,
	}
	require.NoError(t, s.RecordBuild(b))
	require.NotEmpty(t, b.ID)

	got, err := s.GetBuild(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "main.wew", got.SourceFile)
	assert.Equal(t, "9f86d081884c7d65", got.SourceHash)
	assert.Equal(t, "main.bin", got.OutputPath)
	assert.Equal(t, state.BuildStatusOK, got.Status)
	assert.Equal(t, 412, got.BinarySize)
	assert.Equal(t, 3, got.Functions)
	assert.Equal(t, 3*time.Millisecond, got.Duration)
}

func TestGetBuildNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetBuild("nope")
	assert.ErrorContains(t, err, "build not found")
}

func TestRecordFailedBuild(t *testing.T) {
	s := openStore(t)

	b := &state.Build{
		SourceFile: "broken.wew",
		Status:     state.BuildStatusFailed,
		Error:      "broken.wew:3:5: unknown identifier 'x'",
	}
	require.NoError(t, s.RecordBuild(b))

	got, err := s.GetBuild(b.ID)
	require.NoError(t, err)
	assert.Equal(t, state.BuildStatusFailed, got.Status)
	assert.Contains(t, got.Error, "unknown identifier")
	assert.Zero(t, got.BinarySize)
}

func TestListBuilds(t *testing.T) {
	s := openStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, file := range []string{"a.wew", "b.wew", "a.wew"} {
		require.NoError(t, s.RecordBuild(&state.Build{
			SourceFile: file,
			Status:     state.BuildStatusOK,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := s.ListBuilds("", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// newest first
	assert.Equal(t, "a.wew", all[0].SourceFile)
	assert.Equal(t, "b.wew", all[1].SourceFile)

	onlyA, err := s.ListBuilds("a.wew", 10)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)

	limited, err := s.ListBuilds("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
