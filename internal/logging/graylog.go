package logging

import (
	"fmt"
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogWriter opens a GELF UDP writer to addr ("host:port").
func NewGraylogWriter(addr, facility string) (io.WriteCloser, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("graylog writer %s: %w", addr, err)
	}
	if facility != "" {
		w.Facility = facility
	}
	return w, nil
}
