package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWidths(t *testing.T) {
	widths, err := parseWidths("128, 64,,32")
	require.NoError(t, err)
	assert.Equal(t, []int{128, 64, 32}, widths)

	widths, err = parseWidths("")
	require.NoError(t, err)
	assert.Empty(t, widths)

	_, err = parseWidths("12,x")
	assert.ErrorContains(t, err, `invalid hidden width "x"`)
}

func TestLoadSyntheticData(t *testing.T) {
	trainSet, evalSet, err := loadData("", 100, 3)
	require.NoError(t, err)
	assert.Equal(t, 80, trainSet.Len())
	assert.Equal(t, 20, evalSet.Len())
	assert.Equal(t, 64, trainSet.Dim())
	assert.Equal(t, 10, trainSet.NumClasses)
}

func TestLoadDataMissingDir(t *testing.T) {
	_, _, err := loadData(t.TempDir(), 0, 1)
	assert.Error(t, err)
}

func TestGradcheckCommand(t *testing.T) {
	assert.NoError(t, runGradcheck([]string{"-seed", "5"}))
}

func TestTrainSaveAndInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.cgrd")
	err := runTrain([]string{"-epochs", "1", "-limit", "50", "-hidden", "8", "-progress=false", "-save", path})
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.NoError(t, runInspect([]string{path}))

	assert.Error(t, runInspect(nil))
	assert.Error(t, runInspect([]string{filepath.Join(t.TempDir(), "missing.cgrd")}))
}

func TestTrainRejectsBadFlags(t *testing.T) {
	assert.Error(t, runTrain([]string{"-optimizer", "lbfgs", "-progress=false"}))
	assert.Error(t, runTrain([]string{"-hidden", "a", "-progress=false"}))
}
