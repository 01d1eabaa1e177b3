package temperature

import (
	"errors"
	"sync"
)

// FakeReader is a test double that returns scripted samples.
type FakeReader struct {
	mu sync.Mutex
	// Samples contains scripted values; a nil entry returns ReadError.
	Samples []*float64
	index   int
	// ReadError is returned for nil samples, or always when Samples is empty.
	ReadError error
	Reads     int
}

func NewFakeReader(values ...float64) *FakeReader {
	f := &FakeReader{}
	for _, v := range values {
		v := v
		f.Samples = append(f.Samples, &v)
	}
	return f
}

// Read returns the next scripted sample. When samples are exhausted the last
// one repeats.
func (f *FakeReader) Read() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++

	if len(f.Samples) == 0 {
		if f.ReadError != nil {
			return 0, f.ReadError
		}
		return 0, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	if sample == nil {
		if f.ReadError != nil {
			return 0, f.ReadError
		}
		return 0, errors.New("scripted read failure")
	}
	return *sample, nil
}
