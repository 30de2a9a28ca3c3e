package conversation

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates the token cost of a piece of text.
type TokenCounter interface {
	Count(text string) int
}

// Estimator approximates tokens as one per four characters.
type Estimator struct{}

func (Estimator) Count(text string) int {
	return (len(text) + 3) / 4
}

// TiktokenCounter counts BPE tokens with a tiktoken encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

var (
	encodingMu    sync.Mutex
	encodingCache = map[string]*tiktoken.Tiktoken{}
)

// NewTiktokenCounter loads the named encoding (cl100k_base when empty).
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}

	encodingMu.Lock()
	defer encodingMu.Unlock()

	if enc, ok := encodingCache[encoding]; ok {
		return &TiktokenCounter{enc: enc}, nil
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	encodingCache[encoding] = enc
	return &TiktokenCounter{enc: enc}, nil
}

func (t *TiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// CountEntries sums the token cost of entries.
func CountEntries(entries []Entry, counter TokenCounter) int {
	if counter == nil {
		counter = Estimator{}
	}
	total := 0
	for _, e := range entries {
		total += counter.Count(e.Content)
	}
	return total
}

// FitBudget drops the oldest non-system entries of view until its token cost
// is within budget. The system entry at index 0 is never dropped, so the
// result may still exceed budget when the system entry alone does. A budget
// of zero or less disables eviction.
func FitBudget(view []Entry, budget int, counter TokenCounter) []Entry {
	if budget <= 0 || len(view) == 0 {
		return view
	}
	if counter == nil {
		counter = Estimator{}
	}

	costs := make([]int, len(view))
	total := 0
	for i, e := range view {
		costs[i] = counter.Count(e.Content)
		total += costs[i]
	}

	drop := 0
	for total > budget && drop < len(view)-1 {
		total -= costs[1+drop]
		drop++
	}
	if drop == 0 {
		return view
	}

	out := make([]Entry, 0, len(view)-drop)
	out = append(out, view[0])
	return append(out, view[1+drop:]...)
}
