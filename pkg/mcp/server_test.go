package mcp

import (
	"context"
	"strings"
	"testing"

	"hmm-go/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *ModelServer {
	t.Helper()

	counter, err := service.NewCounter(1, zap.NewNop())
	require.NoError(t, err)
	stream := service.NewWordTagStream(strings.NewReader("the/DT dog/NN\na/DT cat/NN\n"))
	for {
		sample, err := stream.Read()
		if err != nil {
			break
		}
		require.NoError(t, counter.Update(sample))
	}
	estimator, err := service.NewEstimator(1, nil, zap.NewNop())
	require.NoError(t, err)
	model, err := estimator.Estimate(counter)
	require.NoError(t, err)

	return NewModelServer(service.NewModelHandle(model, nil, "test", nil), zap.NewNop())
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestToolHandlers(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, _, err := server.handlePi(ctx, nil, PiParams{State: "DT"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "pi(DT)")

	result, _, err = server.handleTransition(ctx, nil, TransitionParams{Context: []string{"DT"}, Target: "NN"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, _, err = server.handleEmission(ctx, nil, EmissionParams{State: "NN", Observation: "dog"})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, _, err = server.handleScore(ctx, nil, ScoreParams{States: []string{"DT", "NN"}, Observations: []string{"the", "dog"}})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "log10 score")
}

func TestToolHandlerErrors(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, _, err := server.handleTransition(ctx, nil, TransitionParams{Target: "XX"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "XX")

	result, _, err = server.handleScore(ctx, nil, ScoreParams{States: []string{"DT"}})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	empty := NewModelServer(service.NewModelHandle(nil, nil, "none", nil), zap.NewNop())
	result, _, err = empty.handlePi(ctx, nil, PiParams{State: "DT"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
