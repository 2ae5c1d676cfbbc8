package compiler

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/callgate/pkg/domain"
	"github.com/aretw0/callgate/pkg/story"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const stageYAML = `
id: bugcall.stage1
nodes:
  - id: ring
    kind: media
    clip: bugcall/ring.webm
    fallback: 3s
    glitch: true
  - id: who
    kind: beat
    image: static.png
    text: "Who is this?"
    shake: {intensity: 0.5, duration: 250ms}
  - id: bye
    kind: media
    fallback: 1s
    hold: 200ms
    end: true
  - id: unused
    kind: beat
`

func TestCompileBytes_YAML(t *testing.T) {
	g, err := CompileBytes("stage1.yaml", []byte(stageYAML))
	require.NoError(t, err)

	assert.Equal(t, "ring", g.Start, "start defaults to the first node")
	assert.Equal(t, []string{"ring", "who", "bye"}, g.Chain())
	assert.Equal(t, []string{"unused"}, g.Unreachable())

	ring, ok := g.Node("ring")
	require.True(t, ok)
	media := ring.(domain.MediaSegment)
	assert.Equal(t, 3*time.Second, media.FallbackDelay)
	assert.True(t, media.Effects.Glitch)

	who, _ := g.Node("who")
	beat := who.(domain.InteractiveBeat)
	assert.Equal(t, "Who is this?", beat.Text)
	require.NotNil(t, beat.Effects.Shake)
	assert.Equal(t, 250*time.Millisecond, beat.Effects.Shake.Duration)

	bye, _ := g.Node("bye")
	assert.Equal(t, 200*time.Millisecond, bye.(domain.MediaSegment).Hold)
	assert.Empty(t, bye.NextID())
}

func TestCompileBytes_JSON(t *testing.T) {
	data := []byte(`{"id":"g","start":"b","nodes":[{"id":"a","kind":"beat","end":true},{"id":"b","kind":"MEDIA","next":"a","fallback":"2s"}]}`)
	g, err := CompileBytes("g.json", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, g.Chain())
}

func TestParse_UnknownFields(t *testing.T) {
	_, err := Parse("g.json", []byte(`{"id":"g","nodes":[],"extra":1}`))
	assert.Error(t, err)

	_, err = Parse("g.yaml", []byte("id: g\nnodez: []\n"))
	assert.Error(t, err)
}

func TestCompile_FieldErrors(t *testing.T) {
	data := []byte(`
nodes:
  - id: a
    kind: video
  - id: b
    kind: media
    fallback: soon
  - id: c
    kind: beat
    next: a
    end: true
  - id: d
    kind: beat
    shake: {intensity: 3, duration: 1s}
`)
	_, err := CompileBytes("bad.yaml", data)
	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)

	var nodes []string
	for _, issue := range cfgErr.Issues {
		assert.Equal(t, domain.IssueInvalidField, issue.Kind)
		nodes = append(nodes, issue.NodeID)
	}
	assert.Equal(t, []string{"", "a", "b", "c", "d"}, nodes)
}

func TestCompile_StructuralErrors(t *testing.T) {
	data := []byte(`
id: loop
nodes:
  - {id: a, kind: beat, next: b}
  - {id: b, kind: beat, next: a}
`)
	_, err := CompileBytes("loop.yaml", data)
	var cfgErr *domain.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.True(t, cfgErr.Has(domain.IssueCycle))
}

func TestDecompile_BuiltInsRoundTrip(t *testing.T) {
	for _, g := range []*domain.Graph{story.Stage1Graph(), story.Stage2Graph()} {
		t.Run(g.ID, func(t *testing.T) {
			data, err := yaml.Marshal(Decompile(g))
			require.NoError(t, err)

			back, err := CompileBytes(g.ID+".yaml", data)
			require.NoError(t, err)

			if diff := cmp.Diff(g.Nodes(), back.Nodes()); diff != "" {
				t.Errorf("round trip changed the graph (-want +got):\n%s", diff)
			}
			assert.Equal(t, g.Start, back.Start)
		})
	}
}
