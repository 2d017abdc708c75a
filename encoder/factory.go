package encoder

import (
	"fmt"

	"Vidra/codec"
	"Vidra/gpu"
)

// Factory creates encoder sessions for the codecs the manager detected.
// It implements codec.Factory.
type Factory struct {
	manager *Manager
	ctx     *gpu.Context
	filter  map[string]bool
}

// Option customizes a Factory.
type Option func(*Factory)

// WithContext binds the factory to a GPU context share group so the
// sessions it creates can import texture-backed frames produced in that
// group. Without it, sessions accept only planar input.
func WithContext(ctx *gpu.Context) Option {
	return func(f *Factory) { f.ctx = ctx }
}

// WithCodecs restricts the factory to the named codecs.
func WithCodecs(names ...string) Option {
	return func(f *Factory) {
		f.filter = make(map[string]bool, len(names))
		for _, name := range names {
			f.filter[name] = true
		}
	}
}

// NewFactory builds a factory over the machine-wide backend registry.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{manager: Instance()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SupportedCodecs lists the codec configurations this factory can
// instantiate. The empty list means no encoder support on this machine
// and is a valid, non-error result.
func (f *Factory) SupportedCodecs() []codec.Info {
	if f == nil {
		return nil
	}
	infos := f.manager.supported()
	if f.filter == nil {
		return infos
	}
	filtered := infos[:0]
	for _, info := range infos {
		if f.filter[info.Name] {
			filtered = append(filtered, info)
		}
	}
	return filtered
}

// CreateEncoder returns an uninitialized session bound to the chosen
// codec. The session shares the factory's GPU context, if any.
func (f *Factory) CreateEncoder(info codec.Info) (codec.VideoEncoder, error) {
	if f == nil {
		return nil, fmt.Errorf("encoder: nil factory")
	}
	if f.filter != nil && !f.filter[info.Name] {
		return nil, fmt.Errorf("encoder: codec %q excluded by factory filter", info.Name)
	}
	backend, err := f.manager.lookup(info.Name)
	if err != nil {
		return nil, err
	}
	return newSession(info.Name, backend, f.ctx), nil
}

var _ codec.Factory = (*Factory)(nil)
