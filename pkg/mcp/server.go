package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"hmm-go/internal/model/hmm"
	"hmm-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type ModelServer struct {
	server  *mcp.Server
	handle  *service.ModelHandle
	logger  *zap.Logger
	handler *mcp.StreamableHTTPHandler
}

type PiParams struct {
	State string `json:"state" jsonschema:"the state to look up"`
}

type TransitionParams struct {
	Context []string `json:"context,omitempty" jsonschema:"preceding states, oldest first"`
	Target  string   `json:"target" jsonschema:"the state to transition to"`
}

type EmissionParams struct {
	State       string `json:"state" jsonschema:"the emitting state"`
	Observation string `json:"observation" jsonschema:"the emitted observation"`
}

type ScoreParams struct {
	States       []string `json:"states" jsonschema:"state labels of the sequence"`
	Observations []string `json:"observations" jsonschema:"observations aligned with the states"`
}

func NewModelServer(handle *service.ModelHandle, logger *zap.Logger) *ModelServer {
	server := &ModelServer{
		handle: handle,
		logger: logger,
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "HMMQuery",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "getPi",
		Description: "Return the base-10 log initial probability of a state",
	}, server.handlePi)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "getTransitionProb",
		Description: "Return the base-10 log probability of a state following a context of states, backing off to shorter contexts when needed",
	}, server.handleTransition)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "getEmissionProb",
		Description: "Return the base-10 log probability of a state emitting an observation",
	}, server.handleEmission)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "scoreSequence",
		Description: "Return the joint base-10 log probability of a labeled sequence of states and observations",
	}, server.handleScore)

	server.handler = mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	server.server = mcpServer
	return server
}

// Handler returns the streamable HTTP handler of the MCP server
func (s *ModelServer) Handler() http.Handler {
	return s.handler
}

// SetupHTTPRoutes mounts the MCP endpoint on router
func (s *ModelServer) SetupHTTPRoutes(router *gin.Engine) {
	router.Any("/mcp", gin.WrapH(s.handler))
}

// ListenAndServe runs the MCP endpoint on its own address until ctx ends
func (s *ModelServer) ListenAndServe(ctx context.Context, address string) error {
	srv := &http.Server{Addr: address, Handler: s.handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.logger.Info("MCP server listening", zap.String("address", address))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func (s *ModelServer) handlePi(ctx context.Context, req *mcp.CallToolRequest, args PiParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling getPi request", zap.String("state", args.State))

	model, err := s.handle.Model()
	if err != nil {
		return errorResult(err), nil, nil
	}
	logProb, err := model.Pi(hmm.State(args.State))
	if err != nil {
		return errorResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("log10 pi(%s) = %s", args.State, formatLogProb(logProb))), nil, nil
}

func (s *ModelServer) handleTransition(ctx context.Context, req *mcp.CallToolRequest, args TransitionParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling getTransitionProb request",
		zap.Strings("context", args.Context),
		zap.String("target", args.Target))

	model, err := s.handle.Model()
	if err != nil {
		return errorResult(err), nil, nil
	}
	logProb, err := model.TransitionProb(hmm.NewStateSequence(args.Context...), hmm.State(args.Target))
	if err != nil {
		return errorResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("log10 P(%s | %s) = %s", args.Target, strings.Join(args.Context, " "), formatLogProb(logProb))), nil, nil
}

func (s *ModelServer) handleEmission(ctx context.Context, req *mcp.CallToolRequest, args EmissionParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling getEmissionProb request",
		zap.String("state", args.State),
		zap.String("observation", args.Observation))

	model, err := s.handle.Model()
	if err != nil {
		return errorResult(err), nil, nil
	}
	logProb, err := model.EmissionProb(hmm.State(args.State), hmm.Observation(args.Observation))
	if err != nil {
		return errorResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("log10 P(%s | %s) = %s", args.Observation, args.State, formatLogProb(logProb))), nil, nil
}

func (s *ModelServer) handleScore(ctx context.Context, req *mcp.CallToolRequest, args ScoreParams) (*mcp.CallToolResult, any, error) {
	s.logger.Info("Handling scoreSequence request", zap.Int("length", len(args.States)))

	model, err := s.handle.Model()
	if err != nil {
		return errorResult(err), nil, nil
	}
	sample := hmm.Sample{
		States:       hmm.NewStateSequence(args.States...),
		Observations: hmm.NewObservationSequence(args.Observations...),
	}
	logProb, err := model.Score(sample)
	if err != nil {
		return errorResult(err), nil, nil
	}
	return textResult(fmt.Sprintf("log10 score = %s", formatLogProb(logProb))), nil, nil
}

func formatLogProb(logProb float64) string {
	return fmt.Sprintf("%g", logProb)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
