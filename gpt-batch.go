package gptbatch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// FailurePrefix starts the text of every failed Result.
const FailurePrefix = "request failed: "

// Result: The outcome of one input. Index is the input's position in the batch; Err is set instead of Output when the request failed.
type Result struct {
	Index  int    `json:"index"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Tokens int    `json:"tokens,omitempty"`
	Err    error  `json:"-"`
}

// Failed reports whether the request behind r failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Text: The answer, or FailurePrefix followed by the failure details.
func (r Result) Text() string {
	if r.Err != nil {
		return FailurePrefix + r.Err.Error()
	}
	return r.Output
}

// GPTBatch: Fans a batch of inputs out to a Completer and collects the answers back in input order.
type GPTBatch struct {
	ctx       context.Context
	Completer Completer
	Progress  ProgressObserver
	Tokens    *TokenCounter
	Logger    Logger
}

// NewGPTBatch: Creates a GPTBatch. progress and optLogger may be nil.
func NewGPTBatch(ctx context.Context, completer Completer, progress ProgressObserver, optLogger Logger) *GPTBatch {
	var logger Logger
	if optLogger != nil {
		logger = optLogger
	} else {
		logger = &noOpLogger{}
	}
	return &GPTBatch{ctx: ctx, Completer: completer, Progress: progress, Logger: logger}
}

// CallOne: Runs a single request. It never panics and never returns an error; failures are recorded on the Result.
func (g *GPTBatch) CallOne(instruction, input string) Result {
	return g.callOne(0, instruction, input)
}

// RunBatch: Sends every input concurrently, reports each arrival to Progress, and returns exactly len(inputs) results sorted by Index.
func (g *GPTBatch) RunBatch(instruction string, inputs []string) []Result {
	total := len(inputs)
	batchID := uuid.NewString()
	g.Logger.Debugf("batch %s: dispatching %d requests", batchID, total)

	progress := g.Progress
	if progress == nil {
		progress = noOpObserver{}
	}
	progress.Start(total)

	collected := make([]Result, 0, total)
	failed := 0
	for r := range g.Stream(instruction, inputs) {
		collected = append(collected, r)
		if r.Failed() {
			failed++
		}
		progress.Advance(len(collected), total, r)
	}
	progress.Finish()

	slices.SortStableFunc(collected, func(a, b Result) int {
		return cmp.Compare(a.Index, b.Index)
	})

	if failed > 0 {
		g.Logger.Warnf("batch %s: %d of %d requests failed", batchID, failed, total)
	} else {
		g.Logger.Infof("batch %s: %d requests completed", batchID, total)
	}
	return collected
}

// RunBatchText is RunBatch rendered through Result.Text.
func (g *GPTBatch) RunBatchText(instruction string, inputs []string) []string {
	results := g.RunBatch(instruction, inputs)
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text()
	}
	return texts
}

// Stream: Starts one request per input and delivers the results in the order they complete. The channel is closed after the last result.
func (g *GPTBatch) Stream(instruction string, inputs []string) <-chan Result {
	// Buffered so workers never wait on a slow or absent reader.
	results := make(chan Result, len(inputs))

	var wg conc.WaitGroup
	for i, input := range inputs {
		wg.Go(func() {
			results <- g.callOne(i, instruction, input)
		})
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (g *GPTBatch) callOne(index int, instruction, input string) Result {
	result := Result{Index: index, Input: input}

	var catcher panics.Catcher
	catcher.Try(func() {
		result.Output, result.Err = g.Completer.Complete(g.ctx, instruction, input)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		g.Logger.Errorf("request %d panicked: %s", index, recovered.String())
		result.Err = fmt.Errorf("panic: %v", recovered.Value)
	}

	if result.Err != nil {
		result.Output = ""
		g.logFailure(index, result.Err)
		return result
	}

	if g.Tokens != nil {
		result.Tokens = g.Tokens.Count(result.Output)
	}
	return result
}

func (g *GPTBatch) logFailure(index int, err error) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		g.Logger.Warnf("request %d: API error of type %q: %v", index, apiErr.Type, err)
		return
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		g.Logger.Warnf("request %d: transport error: %v", index, reqErr.Err)
		return
	}
	g.Logger.Warnf("request %d: %v", index, err)
}
