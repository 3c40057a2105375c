package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Environment variables recognised by FromEnv.
const (
	EnvSpill            = "SPILLD_SPILL"
	EnvSpillOnDemand    = "SPILLD_SPILL_ON_DEMAND"
	EnvSpillDeviceLimit = "SPILLD_SPILL_DEVICE_LIMIT"
	EnvDeviceCapacity   = "SPILLD_DEVICE_CAPACITY"
	EnvMaxAllocation    = "SPILLD_MAX_ALLOCATION"
	EnvAddr             = "SPILLD_ADDR"
	EnvLogLevel         = "SPILLD_LOG_LEVEL"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// OSLookup reads the process environment.
var OSLookup LookupFunc = os.LookupEnv

// ParseBool accepts on/off, true/false, yes/no and 1/0.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// ParseBytes parses a non-negative integer byte count.
func ParseBytes(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte count %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("byte count must be non-negative, got %d", n)
	}
	return n, nil
}

// FromEnv overlays environment variables on base. Every variable is applied
// independently; invalid values are skipped and reported together.
func FromEnv(lookup LookupFunc, base Config) (Config, error) {
	if lookup == nil {
		lookup = OSLookup
	}
	cfg := base
	var errs *multierror.Error
	if v, ok := lookup(EnvSpill); ok {
		if b, err := ParseBool(v); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", EnvSpill, err))
		} else {
			cfg.Spill = &b
		}
	}
	if v, ok := lookup(EnvSpillOnDemand); ok {
		if b, err := ParseBool(v); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", EnvSpillOnDemand, err))
		} else {
			cfg.SpillOnDemand = &b
		}
	}
	if v, ok := lookup(EnvSpillDeviceLimit); ok {
		if n, err := ParseBytes(v); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", EnvSpillDeviceLimit, err))
		} else {
			cfg.SpillDeviceLimit = &n
		}
	}
	if v, ok := lookup(EnvDeviceCapacity); ok {
		if n, err := ParseBytes(v); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", EnvDeviceCapacity, err))
		} else {
			cfg.DeviceCapacity = n
		}
	}
	if v, ok := lookup(EnvMaxAllocation); ok {
		if n, err := ParseBytes(v); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", EnvMaxAllocation, err))
		} else {
			cfg.MaxAllocation = n
		}
	}
	if v, ok := lookup(EnvAddr); ok && v != "" {
		cfg.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
	return cfg, errs.ErrorOrNil()
}

// SpillOptions is the resolved spill configuration.
type SpillOptions struct {
	Enabled           bool
	SpillOnDemand     bool
	DeviceMemoryLimit *int64
}

// SpillOptions resolves defaults: spilling is off unless enabled, and spill
// on demand follows Enabled unless set explicitly.
func (c Config) SpillOptions() SpillOptions {
	o := SpillOptions{}
	if c.Spill != nil {
		o.Enabled = *c.Spill
	}
	o.SpillOnDemand = o.Enabled
	if c.SpillOnDemand != nil {
		o.SpillOnDemand = *c.SpillOnDemand
	}
	if c.SpillDeviceLimit != nil {
		n := *c.SpillDeviceLimit
		o.DeviceMemoryLimit = &n
	}
	return o
}
