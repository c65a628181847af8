package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicVector(t *testing.T) {
	a := DeterministicVector("great phone", Dimensions)
	b := DeterministicVector("great phone", Dimensions)
	c := DeterministicVector("bad phone", Dimensions)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	require.Len(t, a, Dimensions)

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	vectors, err := m.EmbedTexts(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)

	_, err = m.EmbedText(ctx, "c")
	require.NoError(t, err)

	assert.Equal(t, 2, m.CallCount())
	assert.Equal(t, []string{"a", "b", "c"}, m.Texts())

	boom := errors.New("boom")
	m.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, boom
	}
	_, err = m.EmbedTexts(ctx, []string{"d"})
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Zero(t, m.CallCount())
	assert.Empty(t, m.Texts())
	assert.Nil(t, m.EmbedTextsFunc)
}

func TestMockProvider(t *testing.T) {
	ctx := context.Background()
	p := NewMockProvider()

	reply, err := p.Generator().Generate(ctx, "question")
	require.NoError(t, err)
	assert.Equal(t, DefaultReply, reply)
	assert.Equal(t, "question", p.GetMockGenerator().LastPrompt())
	assert.Equal(t, 1, p.GetMockGenerator().CallCount())

	assert.Equal(t, ModelName, p.EmbeddingModel())
	assert.Equal(t, Dimensions, p.Dimensions())

	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
}
