package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmellor/forge/pkg/command"
)

func TestBuildTreeShape(t *testing.T) {
	root := buildTree()
	require.Equal(t, command.KindGroup, root.Kind)
	require.Len(t, root.Children, 3)

	greet, err := root.ResolvePath([]string{"greet"})
	require.NoError(t, err)
	assert.Equal(t, "greet", greet.HandlerRef)
	require.Len(t, greet.Options, 2)
	assert.True(t, greet.Options[0].Required)
	assert.NotNil(t, greet.StructRules, "greet declares a StructRules prototype for its email format rule")

	pipeline, err := root.ResolvePath([]string{"pipeline"})
	require.NoError(t, err)
	require.Len(t, pipeline.ChainedHandlers, 2)
	assert.Equal(t, "pipeline.step1", pipeline.ChainedHandlers[0].HandlerRef)
	assert.Equal(t, "pipeline.step2", pipeline.ChainedHandlers[1].HandlerRef)
	require.Len(t, pipeline.ChainedHandlers[1].ArgMapping, 1)
	assert.Equal(t, "auth", pipeline.ChainedHandlers[1].ArgMapping[0].ToArg)

	ls, err := root.ResolvePath([]string{"aws", "s3", "ls"})
	require.NoError(t, err)
	assert.Equal(t, "aws.s3.ls", ls.HandlerRef)
	require.NotNil(t, ls.Profile)
	assert.Equal(t, []string{"aws"}, ls.Profile.Required)
}
