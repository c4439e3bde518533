package sim

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// mapFile maps size bytes of f read-only. It is nil on platforms without
// mmap, where files are read into memory instead.
var mapFile func(f *os.File, size int) (data []byte, unmap func() error, err error)

// Loader decodes executables and assembles their process images. A Loader
// keeps no state between loads and may be reused.
type Loader struct {
	cfg     Config
	logger  log.Logger
	metrics *Metrics
}

func NewLoader(cfg Config, logger log.Logger, metrics *Metrics) *Loader {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Loader{cfg: cfg, logger: logger, metrics: metrics}
}

// Load decodes a whole executable held in buf. The returned File copies
// everything it needs; buf may be reused or unmapped afterwards.
func (l *Loader) Load(buf []byte) (*File, error) {
	f, err := decode(buf, l.cfg.limits())
	if err != nil {
		l.metrics.failed(err)
		return nil, err
	}
	l.metrics.Loads.Inc()

	var payload int
	for i, p := range f.Progs {
		payload += len(p.Data)
		level.Debug(l.logger).Log("msg", "program header", "index", i, "type", p.Type, "vaddr", hex32(p.Vaddr), "filesz", p.Filesz, "memsz", p.Memsz, "flags", p.Flags)
	}
	for i, s := range f.Sections {
		payload += len(s.Data)
		level.Debug(l.logger).Log("msg", "section", "index", i, "name", s.Name, "type", s.Type, "addr", hex32(s.Addr), "size", s.Size)
	}
	l.metrics.PayloadBytes.Add(float64(payload))
	level.Debug(l.logger).Log("msg", "decoded executable", "entry", hex32(f.Entry), "progs", len(f.Progs), "sections", len(f.Sections), "payload", humanize.IBytes(uint64(payload)))
	return f, nil
}

func decode(buf []byte, lim Limits) (*File, error) {
	c := NewCursor(buf)
	h, err := DecodeHeader(c)
	if err != nil {
		return nil, err
	}
	progs, sections, err := LoadTables(c, h, lim)
	if err != nil {
		return nil, err
	}
	return &File{Header: h, Progs: progs, Sections: sections}, nil
}

// LoadFile maps the named file read-only and decodes it. Where mmap is not
// available the file is read into memory.
func (l *Loader) LoadFile(name string) (*File, error) {
	if mapFile == nil {
		return l.LoadFS(afero.NewOsFs(), name)
	}
	fp, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	st, err := fp.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() == 0 {
		return l.Load(nil)
	}
	data, unmap, err := mapFile(fp, int(st.Size()))
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s", name)
	}
	defer unmap()
	return l.Load(data)
}

// LoadFS reads the named file from fsys and decodes it.
func (l *Loader) LoadFS(fsys afero.Fs, name string) (*File, error) {
	data, err := afero.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	return l.Load(data)
}

// Assemble builds the process image of f using the configured overlap
// policy and size limit.
func (l *Loader) Assemble(f *File) (*Image, error) {
	m, err := Assemble(f.Progs, f.Sections, l.cfg.assembleOptions())
	if err != nil {
		l.metrics.failed(err)
		return nil, err
	}
	l.metrics.Images.Inc()
	l.metrics.ImageBytes.Add(float64(m.Len()))
	level.Debug(l.logger).Log("msg", "assembled image", "size", humanize.IBytes(uint64(m.Len())), "entry", hex32(f.Entry))
	return m, nil
}

type hex32 uint32

func (h hex32) String() string { return fmt.Sprintf("0x%08x", uint32(h)) }
