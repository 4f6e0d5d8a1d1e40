// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"context"
	"errors"
	"testing"
)

type fakeBackend struct {
	name    string
	samples []Sample
	err     error
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) Sample(ctx context.Context) ([]Sample, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.samples, nil
}
func (f *fakeBackend) Close() error { return nil }

func TestSamplerSkipsFailedFactory(t *testing.T) {
	s := New(nil,
		func() (Backend, error) { return nil, errors.New("no driver") },
		func() (Backend, error) { return &fakeBackend{name: "ok", samples: []Sample{{Vendor: "ok"}}}, nil },
	)
	got := s.Sample(context.Background())
	if len(got) != 1 || got[0].Vendor != "ok" {
		t.Fatalf("expected one sample from the surviving backend, got %v", got)
	}
}

func TestSamplerExcludesFailingBackendSample(t *testing.T) {
	s := New(nil,
		func() (Backend, error) { return &fakeBackend{name: "bad", err: errors.New("timeout")}, nil },
		func() (Backend, error) { return &fakeBackend{name: "good", samples: []Sample{{Vendor: "good"}}}, nil },
	)
	got := s.Sample(context.Background())
	if len(got) != 1 || got[0].Vendor != "good" {
		t.Fatalf("expected only the good backend's sample, got %v", got)
	}
}
