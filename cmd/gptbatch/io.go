package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tbiehn/gptbatch"
)

const maxLineSize = 1 << 20

// readInputs returns one input per non-blank line of r.
func readInputs(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var inputs []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		inputs = append(inputs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	return inputs, nil
}

type resultRecord struct {
	Index  int    `json:"index"`
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Tokens int    `json:"tokens,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeResults(w io.Writer, format string, results []gptbatch.Result) error {
	bw := bufio.NewWriter(w)

	switch format {
	case formatJSON:
		enc := json.NewEncoder(bw)
		for _, r := range results {
			record := resultRecord{Index: r.Index, Input: r.Input, Output: r.Output, Tokens: r.Tokens}
			if r.Err != nil {
				record.Error = r.Err.Error()
			}
			if err := enc.Encode(record); err != nil {
				return err
			}
		}
	default:
		for _, r := range results {
			if _, err := fmt.Fprintln(bw, r.Text()); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}
