package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/chirality/internal/tensor"
)

const metadataKey = "__metadata__"

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensors writes tensors to a SafeTensors file.
//
// Tensors are written in alphabetical order by name.
func WriteSafeTensors(path string, tensors map[string]*tensor.Tensor, metadata map[string]string) error {
	//nolint:gosec // G304: the path is the configured checkpoint location
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	w := bufio.NewWriter(file)
	if err := Encode(w, tensors, metadata); err != nil {
		_ = file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return file.Close()
}

// Encode writes a state dictionary in SafeTensors layout to w.
func Encode(w io.Writer, tensors map[string]*tensor.Tensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]interface{}, len(names)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var offset int64
	for _, name := range names {
		t := tensors[name]
		size := int64(t.NumElements() * 8)

		shape := make([]int64, len(t.Shape()))
		for i, dim := range t.Shape() {
			shape[i] = int64(dim)
		}

		header[name] = SafeTensorHeader{
			DType:       "F64",
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	buf := make([]byte, 8)
	for _, name := range names {
		for _, v := range tensors[name].Data() {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
			if _, err := w.Write(buf); err != nil {
				return fmt.Errorf("failed to write tensor %s: %w", name, err)
			}
		}
	}

	return nil
}

// ReadSafeTensors loads every tensor and the metadata from a SafeTensors file.
func ReadSafeTensors(path string) (map[string]*tensor.Tensor, map[string]string, error) {
	//nolint:gosec // G304: the path is the configured checkpoint location
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	return Decode(bufio.NewReader(file))
}

// Decode reads a SafeTensors stream.
func Decode(r io.Reader) (map[string]*tensor.Tensor, map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &rawHeader); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header: %w", err)
	}

	var metadata map[string]string
	if raw, ok := rawHeader[metadataKey]; ok {
		if err := json.Unmarshal(raw, &metadata); err != nil {
			return nil, nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		delete(rawHeader, metadataKey)
	}

	infos := make(map[string]SafeTensorHeader, len(rawHeader))
	for name, raw := range rawHeader {
		var info SafeTensorHeader
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, nil, fmt.Errorf("failed to parse tensor %q: %w", name, err)
		}
		infos[name] = info
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	tensors := make(map[string]*tensor.Tensor, len(infos))
	for name, info := range infos {
		t, err := decodeTensor(name, info, data)
		if err != nil {
			return nil, nil, err
		}
		tensors[name] = t
	}

	return tensors, metadata, nil
}

func decodeTensor(name string, info SafeTensorHeader, data []byte) (*tensor.Tensor, error) {
	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end < start || end > int64(len(data)) {
		return nil, fmt.Errorf("%w: tensor %q [%d, %d) of %d bytes", ErrOutOfBounds, name, start, end, len(data))
	}

	shape := make(tensor.Shape, len(info.Shape))
	for i, dim := range info.Shape {
		shape[i] = int(dim)
	}

	var width int64
	switch info.DType {
	case "F64":
		width = 8
	case "F32":
		width = 4
	default:
		return nil, fmt.Errorf("%w: tensor %q has dtype %s", ErrUnsupportedDType, name, info.DType)
	}
	if (end-start)/width != int64(shape.NumElements()) || (end-start)%width != 0 {
		return nil, fmt.Errorf("%w: tensor %q", ErrShapeMismatch, name)
	}

	raw := data[start:end]
	values := make([]float64, shape.NumElements())
	for i := range values {
		if width == 8 {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		} else {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	}

	return tensor.FromSlice(values, shape)
}
