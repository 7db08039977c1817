package commands

import (
	"fmt"
	"io"

	"github.com/openvhal/vhal-go/pkg/log"
)

// RunFilter copies the events matching sel to a new log file and returns
// how many were written.
func RunFilter(path, output string, sel Selection) (int, error) {
	filter, err := sel.Filter()
	if err != nil {
		return 0, err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}
		logger.Log(event)
		count++
	}
	if _, failed := logger.Counts(); failed > 0 {
		return count, fmt.Errorf("%d events could not be written", failed)
	}
	return count, nil
}
