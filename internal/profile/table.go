package profile

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"codeberg.org/mutker/dockd/internal/errors"
)

// DefaultGPUScale converts the GPU column of the profile table into the
// unit expected by the GPU max-frequency attribute.
const DefaultGPUScale = 3

const (
	minTokens = 3
	maxTokens = 4
)

// Table maps profile IDs to their limits. It is built once by Parse and
// never modified afterwards, so it is safe for concurrent readers.
type Table struct {
	limits map[ID]Limits
	order  []ID
}

type options struct {
	gpuScale uint64
}

// Option configures Parse.
type Option func(*options)

// WithGPUScale overrides DefaultGPUScale. A zero scale is ignored.
func WithGPUScale(scale uint64) Option {
	return func(o *options) {
		if scale > 0 {
			o.gpuScale = scale
		}
	}
}

// Path returns the conventional table location for a device.
func Path(prefix, hardware, sku string) string {
	return filepath.Join(prefix, "dock."+hardware+"."+sku+".txt")
}

// Load reads and parses the table at path.
func Load(path string, opts ...Option) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New().Wrap(ErrTableNotFound, err).WithData(path)
	}
	defer f.Close()

	return Parse(f, opts...)
}

// Parse reads one profile per line:
//
//	<id> <cpu> <gpu> [<mem>]
//
// Tokens are separated by single spaces. Blank lines and lines starting
// with '#' are skipped. A later line for the same id replaces the earlier
// one. Any malformed line fails the whole parse.
func Parse(r io.Reader, opts ...Option) (*Table, error) {
	o := options{gpuScale: DefaultGPUScale}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Table{limits: make(map[ID]Limits)}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id, limits, err := parseLine(line, lineNo, o.gpuScale)
		if err != nil {
			return nil, err
		}
		t.limits[id] = limits
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New().Wrap(ErrTableReadError, err)
	}

	t.order = make([]ID, 0, len(t.limits))
	for id := range t.limits {
		t.order = append(t.order, id)
	}
	sort.Slice(t.order, func(i, j int) bool { return t.order[i] < t.order[j] })

	return t, nil
}

func parseLine(line string, lineNo int, gpuScale uint64) (ID, Limits, error) {
	errFactory := errors.New()

	tokens := strings.Split(line, " ")
	if len(tokens) < minTokens || len(tokens) > maxTokens {
		return 0, Limits{}, errFactory.WithData(ErrMalformedLine, LineError{Line: lineNo})
	}

	id, err := strconv.ParseInt(tokens[0], 10, 32)
	if err != nil {
		return 0, Limits{}, errFactory.Wrap(ErrInvalidNumber, err).
			WithData(LineError{Line: lineNo, Token: tokens[0]})
	}

	values := make([]uint64, len(tokens)-1)
	for i, tok := range tokens[1:] {
		v, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return 0, Limits{}, errFactory.Wrap(ErrInvalidNumber, err).
				WithData(LineError{Line: lineNo, Token: tok})
		}
		values[i] = v
	}

	if values[1] > math.MaxUint64/gpuScale {
		return 0, Limits{}, errFactory.WithData(ErrInvalidNumber, LineError{Line: lineNo, Token: tokens[2]})
	}

	limits := Limits{
		CPU: values[0],
		GPU: values[1] * gpuScale,
	}
	if len(values) == maxTokens-1 {
		mem := values[2]
		limits.Mem = &mem
	}

	return ID(id), limits, nil
}

// Lookup returns the limits for id.
func (t *Table) Lookup(id ID) (Limits, bool) {
	l, ok := t.limits[id]
	return l, ok
}

// Len returns the number of profiles.
func (t *Table) Len() int {
	return len(t.order)
}

// IDs returns the profile ids in ascending order.
func (t *Table) IDs() []ID {
	ids := make([]ID, len(t.order))
	copy(ids, t.order)

	return ids
}

// CPUFreqs projects the CPU limits in IDs order.
func (t *Table) CPUFreqs() []uint64 {
	freqs := make([]uint64, 0, len(t.order))
	for _, id := range t.order {
		freqs = append(freqs, t.limits[id].CPU)
	}

	return freqs
}

// GPUFreqs projects the GPU limits in IDs order.
func (t *Table) GPUFreqs() []uint64 {
	freqs := make([]uint64, 0, len(t.order))
	for _, id := range t.order {
		freqs = append(freqs, t.limits[id].GPU)
	}

	return freqs
}
