package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	"github.com/tigerroll/bulkop/pkg/batch/engine/codec"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

type sample struct {
	model.BatchConfiguration
	Flag  bool              `json:"flag"`
	Attrs map[string]string `json:"attrs"`
}

func TestCodec_Deterministic(t *testing.T) {
	c := codec.New[sample]()
	cfg := sample{
		BatchConfiguration: model.BatchConfiguration{IDs: []string{"a", "b"}},
		Attrs:              map[string]string{"z": "1", "a": "2", "m": "3"},
	}

	first, err := c.Encode(cfg)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.Encode(cfg)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, `{"ids":["a","b"],"idMappings":null,"flag":false,"attrs":{"a":"2","m":"3","z":"1"}}`, string(first))
}

func TestCodec_ToleratesSchemaEvolution(t *testing.T) {
	c := codec.New[sample]()

	decoded, err := c.Decode([]byte(`{"ids":["x"],"removedField":42}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, decoded.IDs)
	assert.Nil(t, decoded.IDMappings)
	assert.False(t, decoded.Flag)
	assert.Nil(t, decoded.Attrs)
}

func TestCodec_DecodeErrors(t *testing.T) {
	c := codec.New[sample]()

	_, err := c.Decode(nil)
	assert.ErrorContains(t, err, "empty configuration")

	_, err = c.Decode([]byte(`{"ids":`))
	assert.ErrorContains(t, err, "failed to decode codec_test.sample")
	assert.True(t, exception.IsBatchError(err))
	assert.True(t, exception.IsNonRetryable(err))
}

type untyped struct {
	Values map[string]interface{} `json:"values"`
	List   []interface{}          `json:"list"`
	Single interface{}            `json:"single"`
}

func TestCodec_DecodesNumbersAsInt64OrFloat64(t *testing.T) {
	c := codec.New[untyped]()

	decoded, err := c.Decode([]byte(`{"values":{"n":5,"big":9007199254740993,"f":2.5,"whole":4.0,"nested":{"m":-7}},"list":[1,"x",0.25],"single":42}`))
	require.NoError(t, err)
	assert.Equal(t, untyped{
		Values: map[string]interface{}{
			"n":      int64(5),
			"big":    int64(9007199254740993),
			"f":      2.5,
			"whole":  int64(4),
			"nested": map[string]interface{}{"m": int64(-7)},
		},
		List:   []interface{}{int64(1), "x", 0.25},
		Single: int64(42),
	}, decoded)
}

func TestCodec_NormalizedValuesRoundTrip(t *testing.T) {
	c := codec.New[untyped]()
	cfg := untyped{
		Values: codec.NormalizeMap(map[string]interface{}{"n": 5, "u": uint32(7), "f": float32(1.5), "s": "v", "nil": nil}),
		List:   codec.Normalize([]interface{}{int16(2), 3.0}).([]interface{}),
		Single: codec.Normalize(int64(1) << 60),
	}

	data, err := c.Encode(cfg)
	require.NoError(t, err)
	decoded, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
}
