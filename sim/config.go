package sim

import (
	"math"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// ByteSize is a size that reads and prints in human units ("64MiB").
type ByteSize uint64

func (b ByteSize) String() string { return humanize.IBytes(uint64(b)) }

func (b *ByteSize) Set(s string) error {
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return err
	}
	*b = ByteSize(v)
	return nil
}

func (b ByteSize) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *ByteSize) UnmarshalText(text []byte) error { return b.Set(string(text)) }

// Config holds the loader's allocation limits and image assembly policy.
type Config struct {
	MaxSegmentSize ByteSize      `yaml:"max_segment_size"`
	MaxImageSize   ByteSize      `yaml:"max_image_size"`
	Overlap        OverlapPolicy `yaml:"overlap"`
}

func DefaultConfig() Config {
	return Config{
		MaxSegmentSize: 256 << 20,
		MaxImageSize:   1 << 30,
		Overlap:        OverlapOverwrite,
	}
}

func (cfg *Config) Validate() error {
	if cfg.MaxSegmentSize == 0 || cfg.MaxSegmentSize > math.MaxUint32 {
		return errors.Errorf("max_segment_size must be between 1 and %s, got %d", ByteSize(math.MaxUint32), uint64(cfg.MaxSegmentSize))
	}
	if cfg.MaxImageSize == 0 {
		return errors.New("max_image_size must be positive")
	}
	switch cfg.Overlap {
	case OverlapOverwrite, OverlapStrict:
	default:
		return errors.Errorf("overlap must be %q or %q, got %q", OverlapOverwrite, OverlapStrict, cfg.Overlap)
	}
	return nil
}

func (cfg *Config) limits() Limits {
	return Limits{
		MaxSegmentSize: uint32(cfg.MaxSegmentSize),
		MaxImageSize:   uint64(cfg.MaxImageSize),
	}
}

func (cfg *Config) assembleOptions() AssembleOptions {
	return AssembleOptions{
		Overlap:      cfg.Overlap,
		MaxImageSize: uint64(cfg.MaxImageSize),
	}
}
