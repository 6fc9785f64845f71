package ioasid

import (
	"github.com/jpbrucker/go-ioasid/internal/constants"
	"github.com/jpbrucker/go-ioasid/internal/logging"
)

// allocatorConfig collects the values NewAllocator's functional options
// mutate, generalizing the teacher's DeviceParams/Options/DefaultParams
// trio into a single options object.
type allocatorConfig struct {
	capacity uint32
	idWidth  uint
	logger   *logging.Logger
	observer Observer
}

func defaultConfig() *allocatorConfig {
	return &allocatorConfig{
		capacity: constants.DefaultCapacity,
		idWidth:  constants.DefaultIDWidth,
		logger:   logging.Default(),
		observer: NoOpObserver{},
	}
}

// Option configures an Allocator at construction time.
type Option func(*allocatorConfig)

// WithCapacity sets the total id-space capacity. Defaults to
// 1<<DefaultIDWidth (the PCIe PASID space).
func WithCapacity(total uint32) Option {
	return func(c *allocatorConfig) { c.capacity = total }
}

// WithIDWidth sets the id width in bits, used only by InstallCapacity to
// validate that its capacity stays within range. The capacity given to
// WithCapacity is not checked against it.
func WithIDWidth(bits uint) Option {
	return func(c *allocatorConfig) { c.idWidth = bits }
}

// WithLogger overrides the allocator's logger. Defaults to
// logging.Default().
func WithLogger(l *logging.Logger) Option {
	return func(c *allocatorConfig) { c.logger = l }
}

// WithObserver overrides the allocator's metrics observer. Defaults to a
// NoOpObserver; pass NewMetricsObserver(NewMetrics()) to collect built-in
// counters, or a custom Observer implementation.
func WithObserver(o Observer) Option {
	return func(c *allocatorConfig) { c.observer = o }
}
