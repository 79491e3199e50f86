// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package motion

// window is a fixed-capacity circular window over float64 readings.
// Pushing past capacity overwrites the oldest value. Not safe for
// concurrent use; the tracker confines it to the engine goroutine.
type window struct {
	values []float64
	next   int
	count  int
}

func newWindow(capacity int) *window {
	return &window{values: make([]float64, capacity)}
}

func (w *window) push(v float64) {
	w.values[w.next] = v
	w.next = (w.next + 1) % len(w.values)
	if w.count < len(w.values) {
		w.count++
	}
}

// full reports whether the window has wrapped at least once.
func (w *window) full() bool { return w.count == len(w.values) }

// mean returns the average of the held values, or 0 when empty.
func (w *window) mean() float64 {
	if w.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < w.count; i++ {
		sum += w.values[i]
	}
	return sum / float64(w.count)
}

// oldest returns the earliest held value. Meaningless when empty.
func (w *window) oldest() float64 {
	if w.count < len(w.values) {
		return w.values[0]
	}
	return w.values[w.next]
}

// newest returns the most recently pushed value. Meaningless when
// empty.
func (w *window) newest() float64 {
	i := w.next - 1
	if i < 0 {
		i += len(w.values)
	}
	return w.values[i]
}

// slice returns the held values oldest first.
func (w *window) slice() []float64 {
	out := make([]float64, 0, w.count)
	if w.count < len(w.values) {
		out = append(out, w.values[:w.count]...)
		return out
	}
	out = append(out, w.values[w.next:]...)
	out = append(out, w.values[:w.next]...)
	return out
}
