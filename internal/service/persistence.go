package service

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"hmm-go/internal/model/hmm"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// modelFileExt is the extension of files written by ModelStore
	modelFileExt = ".hmm"

	// maxRecordCount bounds a count record so a corrupt stream cannot force
	// a huge allocation
	maxRecordCount = 1 << 26
)

// WriteModel encodes model as a sequence of records. Count records are
// big-endian uint64 values; text records are a big-endian uint16 byte
// length followed by tab-separated UTF-8 fields. The layout is: order,
// observation indices, state indices, pi, transitions, emissions, each
// section led by its record count.
func WriteModel(w io.Writer, model *Model) error {
	observations := model.dict.Observations()
	states := model.dict.States()
	if err := checkLabels(states, observations); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}

	rw := &recordWriter{w: bufio.NewWriter(w)}

	rw.writeCount(uint64(model.order))

	rw.writeCount(uint64(len(observations)))
	for i, observation := range observations {
		rw.writeText(string(observation) + "\t" + strconv.Itoa(i))
	}

	rw.writeCount(uint64(len(states)))
	for i, state := range states {
		rw.writeText(string(state) + "\t" + strconv.Itoa(i))
	}

	piStates := make([]hmm.State, 0, len(model.pi))
	for _, state := range states {
		if _, ok := model.pi[state]; ok {
			piStates = append(piStates, state)
		}
	}
	rw.writeCount(uint64(len(piStates)))
	for _, state := range piStates {
		rw.writeText(string(state) + "\t" + formatFloat(model.pi[state]))
	}

	sequences := model.transitions.sortedKeys()
	rw.writeCount(uint64(len(sequences)))
	for _, seq := range sequences {
		entry := model.transitions.entries[seq.Key()]
		rw.writeText(seq.String() + "\t" + formatFloat(entry.LogProb) + " " + formatFloat(entry.LogBackoff))
	}

	emissionCount := 0
	for _, table := range model.emissions {
		emissionCount += len(table.probs) + 1
	}
	rw.writeCount(uint64(emissionCount))
	for _, state := range states {
		table, ok := model.emissions[state]
		if !ok {
			continue
		}
		for _, observation := range observations {
			if prob, ok := table.probs[observation]; ok {
				rw.writeText(string(state) + "\t" + string(observation) + "\t" + formatFloat(prob))
			}
		}
		rw.writeText(string(state) + "\t" + string(hmm.UnknownObservation) + "\t" + formatFloat(table.unknown))
	}

	if rw.err != nil {
		return fmt.Errorf("failed to write model: %w", rw.err)
	}
	if err := rw.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush model: %w", err)
	}
	return nil
}

// ReadModel decodes a model written by WriteModel
func ReadModel(r io.Reader) (*Model, error) {
	rr := &recordReader{r: bufio.NewReader(r)}

	order, err := rr.readCount("order")
	if err != nil {
		return nil, err
	}
	if order < 1 {
		return nil, &MalformedRecordError{Kind: "order", Record: strconv.FormatUint(order, 10), Err: &InvalidOrderError{Order: int(order)}}
	}

	dict := NewDictionary()

	observations, err := readIndexSection(rr, "observationIndex")
	if err != nil {
		return nil, err
	}
	for _, symbol := range observations {
		if hmm.Observation(symbol) == hmm.UnknownObservation {
			return nil, &MalformedRecordError{Kind: "observationIndex", Record: symbol, Err: ErrReservedObservation}
		}
		dict.AddObservation(hmm.Observation(symbol))
	}

	states, err := readIndexSection(rr, "stateIndex")
	if err != nil {
		return nil, err
	}
	for _, symbol := range states {
		dict.AddState(hmm.State(symbol))
	}

	pi, err := readPiSection(rr, dict)
	if err != nil {
		return nil, err
	}

	transitions, err := readTransitionSection(rr, dict)
	if err != nil {
		return nil, err
	}

	emissions, err := readEmissionSection(rr, dict)
	if err != nil {
		return nil, err
	}

	return newModel(int(order), dict, pi, transitions, emissions), nil
}

func readIndexSection(rr *recordReader, kind string) ([]string, error) {
	n, err := rr.readCount(kind)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, n)
	filled := make([]bool, n)
	for i := uint64(0); i < n; i++ {
		record, err := rr.readText(kind)
		if err != nil {
			return nil, err
		}
		fields := strings.Split(record, "\t")
		if len(fields) != 2 {
			return nil, &MalformedRecordError{Kind: kind, Record: record, Err: fieldCountError(2, len(fields))}
		}
		index, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, &MalformedRecordError{Kind: kind, Record: record, Err: err}
		}
		if index < 0 || uint64(index) >= n || filled[index] {
			return nil, &MalformedRecordError{Kind: kind, Record: record, Err: fmt.Errorf("index %d out of range or repeated", index)}
		}
		symbols[index] = fields[0]
		filled[index] = true
	}
	return symbols, nil
}

func readPiSection(rr *recordReader, dict *Dictionary) (map[hmm.State]float64, error) {
	n, err := rr.readCount("pi")
	if err != nil {
		return nil, err
	}

	pi := make(map[hmm.State]float64, n)
	for i := uint64(0); i < n; i++ {
		record, err := rr.readText("pi")
		if err != nil {
			return nil, err
		}
		fields := strings.Split(record, "\t")
		if len(fields) != 2 {
			return nil, &MalformedRecordError{Kind: "pi", Record: record, Err: fieldCountError(2, len(fields))}
		}
		state := hmm.State(fields[0])
		if !dict.ContainsState(state) {
			return nil, &MalformedRecordError{Kind: "pi", Record: record, Err: &UnknownStateError{State: state}}
		}
		prob, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, &MalformedRecordError{Kind: "pi", Record: record, Err: err}
		}
		pi[state] = prob
	}
	return pi, nil
}

func readTransitionSection(rr *recordReader, dict *Dictionary) (*transitionTable, error) {
	n, err := rr.readCount("transition")
	if err != nil {
		return nil, err
	}

	table := newTransitionTable()
	for i := uint64(0); i < n; i++ {
		record, err := rr.readText("transition")
		if err != nil {
			return nil, err
		}
		fields := strings.Split(record, "\t")
		if len(fields) != 2 {
			return nil, &MalformedRecordError{Kind: "transition", Record: record, Err: fieldCountError(2, len(fields))}
		}

		seq := hmm.NewStateSequence(strings.Split(fields[0], " ")...)
		for _, state := range seq {
			if !dict.ContainsState(state) {
				return nil, &MalformedRecordError{Kind: "transition", Record: record, Err: &UnknownStateError{State: state}}
			}
		}

		arpa := strings.Split(fields[1], " ")
		if len(arpa) != 2 {
			return nil, &MalformedRecordError{Kind: "transition", Record: record, Err: fieldCountError(2, len(arpa))}
		}
		prob, err := strconv.ParseFloat(arpa[0], 64)
		if err != nil {
			return nil, &MalformedRecordError{Kind: "transition", Record: record, Err: err}
		}
		backoff, err := strconv.ParseFloat(arpa[1], 64)
		if err != nil {
			return nil, &MalformedRecordError{Kind: "transition", Record: record, Err: err}
		}
		table.put(seq, LogProbEntry{LogProb: prob, LogBackoff: backoff})
	}
	return table, nil
}

func readEmissionSection(rr *recordReader, dict *Dictionary) (map[hmm.State]*emissionTable, error) {
	n, err := rr.readCount("emission")
	if err != nil {
		return nil, err
	}

	emissions := make(map[hmm.State]*emissionTable)
	for i := uint64(0); i < n; i++ {
		record, err := rr.readText("emission")
		if err != nil {
			return nil, err
		}
		fields := strings.Split(record, "\t")
		if len(fields) != 3 {
			return nil, &MalformedRecordError{Kind: "emission", Record: record, Err: fieldCountError(3, len(fields))}
		}
		state := hmm.State(fields[0])
		if !dict.ContainsState(state) {
			return nil, &MalformedRecordError{Kind: "emission", Record: record, Err: &UnknownStateError{State: state}}
		}
		prob, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, &MalformedRecordError{Kind: "emission", Record: record, Err: err}
		}

		table, ok := emissions[state]
		if !ok {
			table = newEmissionTable()
			table.unknown = math.Inf(-1)
			emissions[state] = table
		}
		observation := hmm.Observation(fields[1])
		if observation == hmm.UnknownObservation {
			table.unknown = prob
		} else {
			table.probs[observation] = prob
		}
	}
	return emissions, nil
}

// checkLabels rejects symbols that would not survive the record format:
// states are space-separated inside transition records, every field is
// tab-separated, and the UNKNOWN bucket owns its symbol
func checkLabels(states []hmm.State, observations []hmm.Observation) error {
	for _, state := range states {
		if state == "" || strings.ContainsAny(string(state), " \t") {
			return &MalformedRecordError{Kind: "stateIndex", Record: string(state), Err: errors.New("state labels must be non-empty without spaces or tabs")}
		}
	}
	for _, observation := range observations {
		if observation == hmm.UnknownObservation {
			return &MalformedRecordError{Kind: "observationIndex", Record: string(observation), Err: ErrReservedObservation}
		}
		if observation == "" || strings.Contains(string(observation), "\t") {
			return &MalformedRecordError{Kind: "observationIndex", Record: string(observation), Err: errors.New("observations must be non-empty without tabs")}
		}
	}
	return nil
}

func fieldCountError(want, got int) error {
	return fmt.Errorf("expected %d fields, got %d", want, got)
}

// formatFloat uses the shortest representation that parses back to v
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// recordWriter keeps the first write error so callers check once
type recordWriter struct {
	w   *bufio.Writer
	err error
}

func (rw *recordWriter) writeCount(n uint64) {
	if rw.err != nil {
		return
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	_, rw.err = rw.w.Write(buf[:])
}

func (rw *recordWriter) writeText(record string) {
	if rw.err != nil {
		return
	}
	if len(record) > math.MaxUint16 {
		rw.err = fmt.Errorf("record of %d bytes exceeds %d", len(record), math.MaxUint16)
		return
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(len(record)))
	if _, rw.err = rw.w.Write(buf[:]); rw.err != nil {
		return
	}
	_, rw.err = rw.w.WriteString(record)
}

type recordReader struct {
	r *bufio.Reader
}

func (rr *recordReader) readCount(kind string) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(rr.r, buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read %s count: %w", kind, err)
	}
	n := binary.BigEndian.Uint64(buf[:])
	if n > maxRecordCount {
		return 0, &MalformedRecordError{Kind: kind, Record: strconv.FormatUint(n, 10), Err: errors.New("count too large")}
	}
	return n, nil
}

func (rr *recordReader) readText(kind string) (string, error) {
	var buf [2]byte
	if _, err := io.ReadFull(rr.r, buf[:]); err != nil {
		return "", fmt.Errorf("failed to read %s record: %w", kind, err)
	}
	record := make([]byte, binary.BigEndian.Uint16(buf[:]))
	if _, err := io.ReadFull(rr.r, record); err != nil {
		return "", fmt.Errorf("failed to read %s record: %w", kind, err)
	}
	return string(record), nil
}

// ModelStore saves and loads models as files in one directory
type ModelStore struct {
	outputDir string
	logger    *zap.Logger
}

// NewModelStore creates a store rooted at outputDir, creating the directory
func NewModelStore(outputDir string, logger *zap.Logger) (*ModelStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &ModelStore{
		outputDir: outputDir,
		logger:    logger,
	}, nil
}

// Path returns the file path for a named model
func (s *ModelStore) Path(name string) string {
	return filepath.Join(s.outputDir, name+modelFileExt)
}

// Save writes model under name, replacing any previous file atomically
func (s *ModelStore) Save(model *Model, name string) (err error) {
	path := s.Path(name)

	file, err := os.CreateTemp(s.outputDir, name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := file.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	writeErr := WriteModel(file, model)
	err = multierr.Append(writeErr, file.Close())
	if err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}

	summary := model.Summary()
	s.logger.Info("Saved HMM model",
		zap.String("name", name),
		zap.String("path", path),
		zap.Int("order", summary.Order),
		zap.Int("states", summary.StateCount),
		zap.Int("transitions", summary.TransitionEntries))

	return nil
}

// Load reads the model saved under name
func (s *ModelStore) Load(name string) (*Model, error) {
	path := s.Path(name)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no saved model found: %s", name)
		}
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer file.Close()

	model, err := ReadModel(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", name, err)
	}

	summary := model.Summary()
	s.logger.Info("Loaded HMM model",
		zap.String("name", name),
		zap.String("path", path),
		zap.Int("order", summary.Order),
		zap.Int("states", summary.StateCount),
		zap.Int("transitions", summary.TransitionEntries))

	return model, nil
}

// Exists checks if a model is saved under name
func (s *ModelStore) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Delete removes the model saved under name
func (s *ModelStore) Delete(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	s.logger.Info("Deleted HMM model", zap.String("name", name))
	return nil
}
