package command

import (
	"context"
	"sync"

	"github.com/muurk/tigerscale/internal/device"
)

// fakeDevice records calls and answers with canned results.
type fakeDevice struct {
	mu    sync.Mutex
	calls []Name

	err          error
	factor       float64
	apiKey       string
	apiResult    device.APIKeyResult
	deleteResult bool
	pushed       int
}

func (f *fakeDevice) record(n Name) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
}

func (f *fakeDevice) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeDevice) Tare(ctx context.Context) error {
	f.record(Tare)
	return f.err
}

func (f *fakeDevice) SetCalibrationFactor(ctx context.Context, factor float64) error {
	f.record(SetCalibrationFactor)
	f.factor = factor
	return f.err
}

func (f *fakeDevice) SetAPIKey(ctx context.Context, key string) (device.APIKeyResult, error) {
	f.record(SetAPIKey)
	f.apiKey = key
	if f.err != nil {
		return device.APIKeyResult{}, f.err
	}
	return f.apiResult, nil
}

func (f *fakeDevice) DeleteAPIKey(ctx context.Context) (bool, error) {
	f.record(DeleteAPIKey)
	if f.err != nil {
		return false, f.err
	}
	return f.deleteResult, nil
}

func (f *fakeDevice) ResetWiFi(ctx context.Context) error {
	f.record(ResetWiFi)
	return f.err
}

func (f *fakeDevice) FactoryReset(ctx context.Context) error {
	f.record(FactoryReset)
	return f.err
}

func (f *fakeDevice) PushWeight(ctx context.Context, grams int) error {
	f.record(PushWeight)
	f.pushed = grams
	return f.err
}
