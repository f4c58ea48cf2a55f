package ainft

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionRoundTrip(t *testing.T) {
	cases := []Instruction{
		InitializeInstruction{Name: "AI Art #1", Symbol: "AIA", URI: "https://x/1.json"},
		InitializeInstruction{},
		MintInstruction{TokenID: "1", ImageURL: "https://x/1.png", Metadata: "{seed:42}"},
		MintInstruction{TokenID: "ünïcödé", Metadata: string(make([]byte, 300))},
		TransferInstruction{Amount: 1},
		TransferInstruction{Amount: 0},
		TransferInstruction{Amount: ^uint64(0)},
	}
	for _, ix := range cases {
		decoded, err := DecodeInstruction(EncodeInstruction(ix))
		require.NoError(t, err)
		assert.Equal(t, ix, decoded)
	}
}

func TestEncodeInstruction_Layout(t *testing.T) {
	assert.Equal(t, []byte{2, 1, 0, 0, 0, 0, 0, 0, 0}, EncodeInstruction(TransferInstruction{Amount: 1}))
	assert.Equal(t,
		[]byte{0, 1, 0, 0, 0, 'n', 1, 0, 0, 0, 's', 1, 0, 0, 0, 'u'},
		EncodeInstruction(InitializeInstruction{Name: "n", Symbol: "s", URI: "u"}))
}

func TestDecodeInstruction_Rejects(t *testing.T) {
	valid := EncodeInstruction(MintInstruction{TokenID: "1", ImageURL: "img", Metadata: "meta"})

	cases := map[string][]byte{
		"empty":          nil,
		"unknown tag":    {3},
		"string overrun": {1, 0xff, 0xff, 0xff, 0xff, 'a'},
		"truncated":      valid[:len(valid)-1],
		"trailing":       append(append([]byte{}, valid...), 0),
		"short amount":   {2, 1, 0, 0},
		"length only":    {0, 5, 0, 0, 0},
		"invalid utf8":   {TagMint, 2, 0, 0, 0, 0xff, 0xfe, 0, 0, 0, 0, 0, 0, 0, 0},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			ix, err := DecodeInstruction(data)
			assert.ErrorIs(t, err, ErrInvalidInstruction)
			assert.Nil(t, ix)
		})
	}
}

func TestDecodeInstruction_NeverPanics(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	valid := EncodeInstruction(InitializeInstruction{Name: "AI Art #1", Symbol: "AIA", URI: "https://x/1.json"})

	for i := 0; i <= len(valid); i++ {
		assert.NotPanics(t, func() { _, _ = DecodeInstruction(valid[:i]) })
	}
	for i := 0; i < 1000; i++ {
		data := make([]byte, rng.Intn(64))
		rng.Read(data)
		assert.NotPanics(t, func() { _, _ = DecodeInstruction(data) })
	}
}
