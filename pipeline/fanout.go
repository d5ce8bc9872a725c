package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-homedepot/models"
)

// Sink is an OutputWriter labelled for error messages.
type Sink struct {
	Name   string
	Writer OutputWriter
}

// FanoutWriter hands every batch to each sink in order.
type FanoutWriter struct {
	mu    sync.Mutex
	sinks []Sink
}

// NewFanoutWriter wraps sinks. It takes ownership of them: Close closes all.
func NewFanoutWriter(sinks ...Sink) *FanoutWriter {
	return &FanoutWriter{sinks: sinks}
}

// NewDualWriter writes the CSV file and its JSONL companion together.
func NewDualWriter(csvFilename, jsonFilename string) (*FanoutWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("open csv sink: %w", err)
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("open jsonl sink: %w", err)
	}
	return NewFanoutWriter(
		Sink{Name: "csv", Writer: csvWriter},
		Sink{Name: "jsonl", Writer: jsonWriter},
	), nil
}

// Write stops at the first sink that fails. Earlier sinks keep the batch.
func (fw *FanoutWriter) Write(products []*models.Product) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	for _, sink := range fw.sinks {
		if err := sink.Writer.Write(products); err != nil {
			return fmt.Errorf("%s sink: %w", sink.Name, err)
		}
	}
	return nil
}

func (fw *FanoutWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.each(OutputWriter.Close)
}

// Validate reports every sink that came up empty, not just the first.
func (fw *FanoutWriter) Validate() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.each(OutputWriter.Validate)
}

func (fw *FanoutWriter) each(fn func(OutputWriter) error) error {
	var errs []error
	for _, sink := range fw.sinks {
		if err := fn(sink.Writer); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", sink.Name, err))
		}
	}
	return errors.Join(errs...)
}
