package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/born-ml/chirality/internal/tensor"
)

// Column names read from the CSV header.
const (
	ColumnChiralLength = "chiral_length"
	ColumnChirality    = "chiral0"
	ColumnTensor       = "tensor"
)

// Record is one raw CSV row.
type Record struct {
	ChiralLength float64 `csv:"chiral_length"`
	Chirality    string  `csv:"chiral0"`
	Tensor       string  `csv:"tensor"`
}

// Policy decides what happens to a retained row whose tensor is malformed.
type Policy int

const (
	// AbortOnMalformed fails the whole load on the first malformed tensor.
	AbortOnMalformed Policy = iota
	// SkipMalformed drops malformed rows with a warning.
	SkipMalformed
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case AbortOnMalformed:
		return "abort"
	case SkipMalformed:
		return "skip"
	default:
		return "Policy(" + strconv.Itoa(int(p)) + ")"
	}
}

// Loader reads datasets from CSV files.
type Loader struct {
	policy Policy
	logger *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithPolicy sets the malformed-tensor policy.
func WithPolicy(p Policy) Option {
	return func(l *Loader) {
		l.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader returns a Loader that aborts on malformed tensors unless
// configured otherwise.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		policy: AbortOnMalformed,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the configured malformed-tensor policy.
func (l *Loader) Policy() Policy {
	return l.policy
}

// Load reads and filters the dataset at path.
func (l *Loader) Load(path string) (*Dataset, error) {
	//nolint:gosec // G304: the dataset path is the program's input
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataSourceError{Path: path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()

	if info, err := f.Stat(); err == nil {
		l.logger.Debug("reading dataset",
			zap.String("path", path),
			zap.String("size", humanize.Bytes(uint64(info.Size()))))
	}

	return l.Decode(f, path)
}

// Decode reads a dataset from r. source names the input in errors and logs.
func (l *Loader) Decode(r io.Reader, source string) (*Dataset, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &DataSourceError{Path: source, Err: err}
	}
	if strings.TrimSpace(header) == "" {
		return nil, &DataSourceError{Path: source, Err: errors.New("missing CSV header")}
	}
	if err := checkHeader(header); err != nil {
		return nil, &DataSourceError{Path: source, Err: err}
	}

	var records []*Record
	if err := gocsv.Unmarshal(io.MultiReader(strings.NewReader(header), br), &records); err != nil {
		return nil, &DataSourceError{Path: source, Err: errors.Wrap(err, "decode CSV")}
	}

	ds := &Dataset{Source: source}
	skipped := 0
	for row, rec := range records {
		if rec.ChiralLength != 1 {
			continue
		}

		t, err := ParseTensor(rec.Tensor)
		if err != nil {
			var malformed *MalformedTensorError
			if errors.As(err, &malformed) {
				malformed.Row = row
			}
			if l.policy == SkipMalformed {
				skipped++
				l.logger.Warn("skipping malformed tensor", zap.String("source", source), zap.Error(err))
				continue
			}
			return nil, err
		}

		ds.Samples = append(ds.Samples, Sample{
			Index:  row,
			Tensor: t,
			Label:  LabelFromChirality(rec.Chirality),
		})
	}

	l.logger.Info("loaded dataset",
		zap.String("source", source),
		zap.Int("rows", len(records)),
		zap.Int("retained", ds.Len()),
		zap.Int("positives", Positives(ds.Samples)),
		zap.Int("skipped", skipped))

	return ds, nil
}

// checkHeader verifies that the required columns are present.
func checkHeader(line string) error {
	names, err := csv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return errors.Wrap(err, "parse CSV header")
	}

	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[strings.TrimSpace(name)] = true
	}

	var missing []string
	for _, col := range []string{ColumnChiralLength, ColumnChirality, ColumnTensor} {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ParseTensor parses a 729-number string into a [9, 9, 9, 1] tensor.
//
// Element (i, j, k, 0) is token i*81 + j*9 + k. The returned error is a
// *MalformedTensorError with Row set to -1.
func ParseTensor(s string) (*tensor.Tensor, error) {
	fields := strings.Fields(s)
	if len(fields) != TensorSize {
		return nil, &MalformedTensorError{Row: -1, Count: len(fields)}
	}

	values := make([]float64, TensorSize)
	for i, tok := range fields {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, &MalformedTensorError{Row: -1, Count: len(fields), Token: tok, Err: err}
		}
		values[i] = v
	}

	grid, err := tensor.FromSlice(values, tensor.Shape{GridSize, GridSize, GridSize})
	if err != nil {
		return nil, err
	}
	return grid.Reshape(SampleShape...), nil
}
