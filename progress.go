package gptbatch

import (
	"fmt"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ProgressLabel names the bar drawn by NewBarObserver.
const ProgressLabel = "AI requests processing"

// ProgressObserver: Receives batch progress. RunBatch calls Start once, Advance once per completed request with a completed count that grows by one each time, then Finish. All calls come from the goroutine running RunBatch.
type ProgressObserver interface {
	Start(total int)
	Advance(completed, total int, result Result)
	Finish()
}

// ProgressFunc: A ProgressObserver that only cares about counts.
type ProgressFunc func(completed, total int)

func (f ProgressFunc) Start(total int) {}

func (f ProgressFunc) Advance(completed, total int, result Result) {
	f(completed, total)
}

func (f ProgressFunc) Finish() {}

type noOpObserver struct{}

func (noOpObserver) Start(int)                {}
func (noOpObserver) Advance(int, int, Result) {}
func (noOpObserver) Finish()                  {}

type multiObserver []ProgressObserver

// MultiObserver forwards every event to each non-nil observer in order.
func MultiObserver(observers ...ProgressObserver) ProgressObserver {
	m := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multiObserver) Start(total int) {
	for _, o := range m {
		o.Start(total)
	}
}

func (m multiObserver) Advance(completed, total int, result Result) {
	for _, o := range m {
		o.Advance(completed, total, result)
	}
}

func (m multiObserver) Finish() {
	for _, o := range m {
		o.Finish()
	}
}

// BarObserver: Draws one mpb bar per batch.
type BarObserver struct {
	Progress *mpb.Progress

	bar    *mpb.Bar
	tokens atomic.Int64
}

// NewBarObserver: The caller owns p and should call p.Wait once it is done running batches.
func NewBarObserver(p *mpb.Progress) *BarObserver {
	return &BarObserver{Progress: p}
}

func (b *BarObserver) Start(total int) {
	b.tokens.Store(0)
	b.bar = nil
	if b.Progress == nil || total == 0 {
		return
	}
	b.bar = b.Progress.AddBar(int64(total),
		mpb.BarPriority(-1),
		mpb.PrependDecorators(
			decor.Name(ProgressLabel),
			decor.CountersNoUnit(" (%d/%d)"),
		),
		mpb.AppendDecorators(
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO, decor.WCSyncWidth), "completed",
			),
			decor.Any(func(decor.Statistics) string {
				if n := b.tokens.Load(); n > 0 {
					return fmt.Sprintf(" %d tokens", n)
				}
				return ""
			}),
		),
	)
}

func (b *BarObserver) Advance(completed, total int, result Result) {
	b.tokens.Add(int64(result.Tokens))
	if b.bar != nil {
		b.bar.Increment()
	}
}

func (b *BarObserver) Finish() {
	if b.bar == nil {
		return
	}
	if !b.bar.Completed() {
		b.bar.Abort(false)
	}
	b.bar.Wait()
}
