// Package batcher groups texts into ordered batches whose serialized size
// (item lengths plus one separator between neighbours) stays within a
// character budget. Items are never split: an item that alone exceeds the
// budget travels in a batch of its own.
package batcher

import (
	"iter"
	"unicode/utf8"
)

const (
	// DefaultSeparator joins batch items when a provider takes one string.
	DefaultSeparator = "\n<<<SEG>>>\n"

	// DefaultMaxChars is a per-request size that public providers accept.
	DefaultMaxChars = 3500
)

// Batch is one group of texts sent to the provider in a single call.
type Batch struct {
	Index int
	Items []string
}

// Size returns the serialized size of the batch when joined with sep.
func (b Batch) Size(sep string) int {
	return Size(b.Items, sep)
}

// Size returns the length of items joined with sep, in code points.
func Size(items []string, sep string) int {
	if len(items) == 0 {
		return 0
	}
	n := Len(sep) * (len(items) - 1)
	for _, it := range items {
		n += Len(it)
	}
	return n
}

// Len counts text in unicode code points.
func Len(text string) int {
	return utf8.RuneCountInString(text)
}

// accumulator is the batch under construction.
type accumulator struct {
	items []string
	size  int
}

func (a *accumulator) empty() bool { return len(a.items) == 0 }

// grownSize is the size after appending an item of length n.
func (a *accumulator) grownSize(n, sepLen int) int {
	if a.empty() {
		return n
	}
	return a.size + sepLen + n
}

func (a *accumulator) add(item string, n, sepLen int) {
	a.size = a.grownSize(n, sepLen)
	a.items = append(a.items, item)
}

func (a *accumulator) take() []string {
	items := a.items
	a.items = nil
	a.size = 0
	return items
}

// Plan lazily yields batches over values in input order. The greedy rule is:
//  1. If the current batch is non-empty and appending the value (plus one
//     separator) would exceed maxChars, the current batch is emitted.
//  2. A value longer than maxChars on its own is emitted as a singleton.
//  3. Otherwise the value joins the current batch.
//
// A non-positive maxChars means no budget: all values share one batch.
func Plan(values []string, maxChars int, sep string) iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		sepLen := Len(sep)
		var acc accumulator
		index := 0

		emit := func(items []string) bool {
			b := Batch{Index: index, Items: items}
			index++
			return yield(b)
		}

		for _, v := range values {
			n := Len(v)

			if maxChars <= 0 {
				acc.add(v, n, sepLen)
				continue
			}

			if !acc.empty() && acc.grownSize(n, sepLen) > maxChars {
				if !emit(acc.take()) {
					return
				}
			}

			if n > maxChars {
				if !emit([]string{v}) {
					return
				}
				continue
			}

			acc.add(v, n, sepLen)
		}

		if !acc.empty() {
			emit(acc.take())
		}
	}
}
