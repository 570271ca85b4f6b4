package serialization

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/chirality/internal/tensor"
)

func TestSafeTensors_FileRoundTrip(t *testing.T) {
	w, err := tensor.FromSlice([]float64{0.25, -1.5, 3, 1e-9, 7, 8}, tensor.Shape{2, 3})
	require.NoError(t, err)
	b, err := tensor.FromSlice([]float64{0.1, 0.2}, tensor.Shape{2})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.safetensors")
	meta := map[string]string{"pooling": "flatten", "epochs": "50"}
	require.NoError(t, WriteSafeTensors(path, map[string]*tensor.Tensor{"0.weight": w, "0.bias": b}, meta))

	loaded, gotMeta, err := ReadSafeTensors(path)
	require.NoError(t, err)
	assert.Equal(t, meta, gotMeta)
	require.Len(t, loaded, 2)
	assert.True(t, loaded["0.weight"].Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, w.Data(), loaded["0.weight"].Data())
	assert.Equal(t, b.Data(), loaded["0.bias"].Data())
}

func TestEncode_SortsTensorsByName(t *testing.T) {
	a := tensor.Full(tensor.Shape{1}, 1)
	z := tensor.Full(tensor.Shape{1}, 2)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, map[string]*tensor.Tensor{"z": z, "a": a}, nil))

	raw := buf.Bytes()
	size := binary.LittleEndian.Uint64(raw[:8])
	body := raw[8+size:]
	require.Len(t, body, 16)

	loaded, meta, err := Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Nil(t, meta)
	assert.Equal(t, []float64{1}, loaded["a"].Data())
	assert.Equal(t, []float64{2}, loaded["z"].Data())
}

func TestDecode_Errors(t *testing.T) {
	header := func(js string) []byte {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.LittleEndian, uint64(len(js)))
		buf.WriteString(js)
		return buf.Bytes()
	}

	_, _, err := Decode(bytes.NewReader(header(`{"w":{"dtype":"F64","shape":[2],"data_offsets":[0,16]}}`)))
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, _, err = Decode(bytes.NewReader(append(header(`{"w":{"dtype":"I8","shape":[1],"data_offsets":[0,1]}}`), 0)))
	assert.ErrorIs(t, err, ErrUnsupportedDType)

	_, _, err = Decode(bytes.NewReader(append(header(`{"w":{"dtype":"F64","shape":[2],"data_offsets":[0,8]}}`), make([]byte, 8)...)))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	var huge bytes.Buffer
	_ = binary.Write(&huge, binary.LittleEndian, uint64(MaxHeaderSize+1))
	_, _, err = Decode(&huge)
	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}
