package response

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDefaultSuccessPrintsStatusTable(t *testing.T) {
	r := New()
	r.Stdout("hi\n")
	r.SetData(map[string]any{"greeted": "ada"})
	r.Succeeded()
	snap := r.Finalize()

	var out, errOut bytes.Buffer
	require.NoError(t, RenderDefault(&out, &errOut, snap))

	assert.Equal(t, "hi\n", out.String())
	assert.Contains(t, errOut.String(), "success")
	assert.Contains(t, errOut.String(), "true")
	assert.Contains(t, errOut.String(), "greeted")
}

func TestRenderDefaultFailurePrintsError(t *testing.T) {
	r := New()
	r.SetError(&ErrorRecord{Kind: KindHandlerImperative, Message: "bad input", AdditionalDetails: "see --help"})
	snap := r.Finalize()

	var out, errOut bytes.Buffer
	require.NoError(t, RenderDefault(&out, &errOut, snap))

	assert.Contains(t, errOut.String(), "bad input")
}

func TestRenderYAMLWritesSnapshotFields(t *testing.T) {
	r := New()
	r.Succeeded()
	snap := r.Finalize()

	var buf bytes.Buffer
	require.NoError(t, RenderYAML(&buf, snap))
	assert.Contains(t, buf.String(), "success: true")
}
