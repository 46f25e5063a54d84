package controller

import (
	"errors"
	"math"
	"net/http"

	"hmm-go/internal/model/hmm"
	"hmm-go/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ModelController serves probability queries against the loaded model
type ModelController struct {
	handle *service.ModelHandle
	logger *zap.Logger
}

// NewModelController creates a new model controller
func NewModelController(handle *service.ModelHandle, logger *zap.Logger) *ModelController {
	return &ModelController{
		handle: handle,
		logger: logger,
	}
}

type PiRequest struct {
	State string `json:"state" binding:"required"`
}

type TransitionRequest struct {
	Context []string `json:"context"`
	Target  string   `json:"target" binding:"required"`
}

type EmissionRequest struct {
	State       string `json:"state" binding:"required"`
	Observation string `json:"observation" binding:"required"`
}

type ScoreRequest struct {
	States       []string `json:"states" binding:"required"`
	Observations []string `json:"observations" binding:"required"`
}

// ProbabilityResponse carries a base-10 log probability. LogProb is null
// when the probability is zero.
type ProbabilityResponse struct {
	LogProb     *float64 `json:"log_prob"`
	Probability float64  `json:"probability"`
}

func newProbabilityResponse(logProb float64) ProbabilityResponse {
	resp := ProbabilityResponse{Probability: math.Pow(10, logProb)}
	if !math.IsInf(logProb, 0) && !math.IsNaN(logProb) {
		resp.LogProb = &logProb
	}
	return resp
}

// GetSummary handles GET /api/v1/model
func (mc *ModelController) GetSummary(c *gin.Context) {
	model, ok := mc.currentModel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, model.Summary())
}

// GetStates handles GET /api/v1/model/states
func (mc *ModelController) GetStates(c *gin.Context) {
	model, ok := mc.currentModel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"states": model.States()})
}

// GetObservations handles GET /api/v1/model/observations
func (mc *ModelController) GetObservations(c *gin.Context) {
	model, ok := mc.currentModel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"observations": model.Observations()})
}

// ReloadModel handles POST /api/v1/model/reload
func (mc *ModelController) ReloadModel(c *gin.Context) {
	model, err := mc.handle.Reload()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload model", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.Summary())
}

// GetPi handles POST /api/v1/pi
func (mc *ModelController) GetPi(c *gin.Context) {
	var req PiRequest
	if !mc.bind(c, &req) {
		return
	}
	model, ok := mc.currentModel(c)
	if !ok {
		return
	}

	logProb, err := model.Pi(hmm.State(req.State))
	if err != nil {
		mc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProbabilityResponse(logProb))
}

// GetTransition handles POST /api/v1/transition
func (mc *ModelController) GetTransition(c *gin.Context) {
	var req TransitionRequest
	if !mc.bind(c, &req) {
		return
	}
	model, ok := mc.currentModel(c)
	if !ok {
		return
	}

	logProb, err := model.TransitionProb(hmm.NewStateSequence(req.Context...), hmm.State(req.Target))
	if err != nil {
		mc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProbabilityResponse(logProb))
}

// GetEmission handles POST /api/v1/emission
func (mc *ModelController) GetEmission(c *gin.Context) {
	var req EmissionRequest
	if !mc.bind(c, &req) {
		return
	}
	model, ok := mc.currentModel(c)
	if !ok {
		return
	}

	logProb, err := model.EmissionProb(hmm.State(req.State), hmm.Observation(req.Observation))
	if err != nil {
		mc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProbabilityResponse(logProb))
}

// ScoreSequence handles POST /api/v1/score
func (mc *ModelController) ScoreSequence(c *gin.Context) {
	var req ScoreRequest
	if !mc.bind(c, &req) {
		return
	}
	model, ok := mc.currentModel(c)
	if !ok {
		return
	}

	sample := hmm.Sample{
		States:       hmm.NewStateSequence(req.States...),
		Observations: hmm.NewObservationSequence(req.Observations...),
	}
	logProb, err := model.Score(sample)
	if err != nil {
		mc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProbabilityResponse(logProb))
}

func (mc *ModelController) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func (mc *ModelController) currentModel(c *gin.Context) (*service.Model, bool) {
	model, err := mc.handle.Model()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return nil, false
	}
	return model, true
}

// writeError maps query errors to HTTP status codes
func (mc *ModelController) writeError(c *gin.Context, err error) {
	var unknownState *service.UnknownStateError
	var unknownObservation *service.UnknownObservationError
	var invalidIndex *service.InvalidIndexError
	var misaligned *service.MisalignedSampleError

	switch {
	case errors.As(err, &unknownState), errors.As(err, &unknownObservation):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &invalidIndex), errors.As(err, &misaligned):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		mc.logger.Error("Query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
