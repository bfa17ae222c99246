package entity

import (
	"errors"
	"strings"
	"testing"

	"github.com/andreyxaxa/Photo-Pipeline/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupProcedure(t *testing.T) {
	t.Parallel()

	proc, ok := LookupProcedure(ProcAITextExtract)
	require.True(t, ok)
	assert.True(t, proc.Advanced)
	assert.True(t, proc.Terminal)
	assert.Equal(t, OutputText, proc.Output)

	proc, ok = LookupProcedure(ProcResize)
	require.True(t, ok)
	assert.False(t, proc.Advanced)
	assert.Equal(t, OutputImage, proc.Output)

	_, ok = LookupProcedure("sepia")
	assert.False(t, ok)
}

func TestValidateTool_UnknownProcedure(t *testing.T) {
	t.Parallel()

	err := ValidateTool("sepia", nil)
	assert.True(t, errors.Is(err, errs.ErrUnknownProcedure))
}

func TestValidateTool_RequiredParams(t *testing.T) {
	t.Parallel()

	err := ValidateTool(ProcResize, map[string]interface{}{"width": 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "height")

	err = ValidateTool(ProcResize, map[string]interface{}{"width": 100, "height": 200})
	assert.NoError(t, err)

	// без обязательных параметров
	err = ValidateTool(ProcGrayscale, nil)
	assert.NoError(t, err)
}

func TestMessageID_PreviewPrefix(t *testing.T) {
	t.Parallel()

	assert.True(t, strings.HasPrefix(NewMessageID(true), PreviewMessagePrefix))
	assert.False(t, strings.HasPrefix(NewMessageID(false), PreviewMessagePrefix))
}
