package fhe

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/big"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

var flagParamString = flag.String("params", "", "specify the test cryptographic parameters as a JSON string. Overrides the insecure default.")

// testInsecure is a small parameter set for fast testing. It is NOT secure.
var testInsecure = ParametersLiteral{
	LogN: 10,
	LogQ: []int{60, 60},
}

func testString(opname string, params Parameters) string {
	return fmt.Sprintf("%s/logN=%d/logQ=%d/Qi=%d/MaxTerms=%d",
		opname,
		params.LogN(),
		params.QBigInt().BitLen(),
		params.QCount(),
		params.MaxTerms())
}

type testContext struct {
	params Parameters
	kc     *KeyContext
	client *ClientKey
	eval   *Evaluator
}

func newTestContext(t *testing.T, lit ParametersLiteral) *testContext {
	kc, err := NewKeyContext(Custom(lit))
	require.NoError(t, err)

	eval, err := kc.Activate()
	require.NoError(t, err)

	return &testContext{
		params: kc.Params(),
		kc:     kc,
		client: kc.Client(),
		eval:   eval,
	}
}

func TestFHE(t *testing.T) {

	lit := testInsecure.CopyNew()

	if *flagParamString != "" {
		if err := json.Unmarshal([]byte(*flagParamString), &lit); err != nil {
			t.Fatal(err)
		}
	}

	tc := newTestContext(t, lit)

	for _, testSet := range []func(tc *testContext, t *testing.T){
		testParameters,
		testEncryptor,
		testEvaluator,
		testKeyMismatch,
		testServerKeyMarshal,
		testCiphertextMarshal,
		testNoise,
	} {
		testSet(tc, t)
	}
}

func testParameters(tc *testContext, t *testing.T) {

	params := tc.params

	t.Run(testString("Parameters/Encoding", params), func(t *testing.T) {
		require.Equal(t, new(big.Int).Lsh(big.NewInt(1), 32), params.PlaintextModulus())

		Q := params.QBigInt()
		recomposed := new(big.Int).Mul(params.Delta(), params.PlaintextModulus())
		recomposed.Add(recomposed, params.CarryNoise())
		require.Zero(t, Q.Cmp(recomposed))

		require.True(t, params.FreshNoise().Sign() > 0)
		require.True(t, params.NoiseBudget().Cmp(params.Delta()) < 0)
		require.GreaterOrEqual(t, params.MaxTerms(), 60)
	})

	t.Run(testString("Parameters/Capacity", params), func(t *testing.T) {
		unit := params.perTermNoise()
		k := params.MaxTerms()

		fib := bigFibonacci(k + 1)

		bound := new(big.Int).Mul(unit, fib[k])
		require.True(t, bound.Cmp(params.NoiseBudget()) <= 0)

		bound.Mul(unit, fib[k+1])
		require.True(t, bound.Cmp(params.NoiseBudget()) > 0)

		require.Greater(t, params.LogNoiseBudget(), params.LogNoisePerTerm())
	})

	t.Run(testString("Parameters/Equal", params), func(t *testing.T) {
		other, err := NewParameters(params.Parameters)
		require.NoError(t, err)
		require.True(t, params.Equal(&other))
		require.Equal(t, params.MaxTerms(), other.MaxTerms())
	})
}

// bigFibonacci returns F(0), ..., F(k).
func bigFibonacci(k int) (fib []*big.Int) {
	fib = make([]*big.Int, k+1)
	fib[0] = big.NewInt(0)
	if k > 0 {
		fib[1] = big.NewInt(1)
	}
	for i := 2; i <= k; i++ {
		fib[i] = new(big.Int).Add(fib[i-1], fib[i-2])
	}
	return
}

func testEncryptor(tc *testContext, t *testing.T) {

	t.Run(testString("Encryptor/Decrypt", tc.params), func(t *testing.T) {
		for _, m := range []uint32{0, 1, 2, 0xFFFF, 1 << 31, math.MaxUint32} {
			ct, err := tc.client.Encrypt(m)
			require.NoError(t, err)
			require.Equal(t, tc.kc.Fingerprint(), ct.Fingerprint())
			require.Equal(t, tc.params.MaxLevel(), ct.Level())

			have, err := tc.client.Decrypt(ct)
			require.NoError(t, err)
			require.Equal(t, m, have)
		}
	})

	t.Run(testString("Encryptor/Probabilistic", tc.params), func(t *testing.T) {
		ct0, err := tc.client.Encrypt(7)
		require.NoError(t, err)
		ct1, err := tc.client.Encrypt(7)
		require.NoError(t, err)

		d0, err := ct0.Digest()
		require.NoError(t, err)
		d1, err := ct1.Digest()
		require.NoError(t, err)
		require.NotEqual(t, d0, d1)
	})

	t.Run(testString("Encryptor/Nil", tc.params), func(t *testing.T) {
		_, err := tc.client.Decrypt(nil)
		require.ErrorIs(t, err, ErrDecryption)
	})
}

func testEvaluator(tc *testContext, t *testing.T) {

	t.Run(testString("Evaluator/Add", tc.params), func(t *testing.T) {
		for _, pair := range [][2]uint32{
			{3, 4},
			{0, 0},
			{math.MaxUint32, 2},
			{1 << 31, 1 << 31},
			{math.MaxUint32, math.MaxUint32},
		} {
			a, err := tc.client.Encrypt(pair[0])
			require.NoError(t, err)
			b, err := tc.client.Encrypt(pair[1])
			require.NoError(t, err)

			sum, err := tc.eval.Add(a, b)
			require.NoError(t, err)

			have, err := tc.client.Decrypt(sum)
			require.NoError(t, err)
			require.Equal(t, pair[0]+pair[1], have)

			// Operands are left untouched.
			have, err = tc.client.Decrypt(a)
			require.NoError(t, err)
			require.Equal(t, pair[0], have)
		}
	})

	t.Run(testString("Evaluator/NotActivated", tc.params), func(t *testing.T) {
		a, err := tc.client.Encrypt(1)
		require.NoError(t, err)

		var eval *Evaluator
		_, err = eval.Add(a, a)
		require.ErrorIs(t, err, ErrNotActivated)

		var server *ServerKey
		_, err = server.Activate()
		require.ErrorIs(t, err, ErrNotActivated)
	})

	t.Run(testString("Evaluator/Activate", tc.params), func(t *testing.T) {
		e0, err := tc.kc.Activate()
		require.NoError(t, err)
		e1, err := tc.kc.Server().Activate()
		require.NoError(t, err)
		require.NotSame(t, e0, e1)
		require.Equal(t, e0.Fingerprint(), e1.Fingerprint())
	})

	t.Run(testString("Evaluator/NilOperand", tc.params), func(t *testing.T) {
		a, err := tc.client.Encrypt(1)
		require.NoError(t, err)
		_, err = tc.eval.Add(a, nil)
		require.Error(t, err)
	})
}

func testKeyMismatch(tc *testContext, t *testing.T) {

	other := newTestContext(t, tc.kc.Config().ParametersLiteral())

	t.Run(testString("KeyMismatch", tc.params), func(t *testing.T) {
		require.NotEqual(t, tc.kc.Fingerprint(), other.kc.Fingerprint())
		require.NotEqual(t, tc.kc.ID(), other.kc.ID())

		ours, err := tc.client.Encrypt(5)
		require.NoError(t, err)
		theirs, err := other.client.Encrypt(5)
		require.NoError(t, err)

		_, err = tc.eval.Add(ours, theirs)
		require.ErrorIs(t, err, ErrKeyMismatch)

		_, err = other.client.Decrypt(ours)
		require.ErrorIs(t, err, ErrDecryption)
		require.ErrorIs(t, err, ErrKeyMismatch)
	})
}

func testServerKeyMarshal(tc *testContext, t *testing.T) {

	t.Run(testString("ServerKey/Marshal", tc.params), func(t *testing.T) {
		data, err := tc.kc.Server().MarshalBinary()
		require.NoError(t, err)

		server, err := UnmarshalServerKey(data)
		require.NoError(t, err)
		require.Equal(t, tc.kc.Fingerprint(), server.Fingerprint())

		params := server.Params()
		require.True(t, params.Equal(&tc.params))

		eval, err := server.Activate()
		require.NoError(t, err)

		a, err := tc.client.Encrypt(40)
		require.NoError(t, err)
		b, err := tc.client.Encrypt(2)
		require.NoError(t, err)

		sum, err := eval.Add(a, b)
		require.NoError(t, err)

		have, err := tc.client.Decrypt(sum)
		require.NoError(t, err)
		require.Equal(t, uint32(42), have)
	})

	t.Run(testString("ServerKey/Malformed", tc.params), func(t *testing.T) {
		data, err := tc.kc.Server().MarshalBinary()
		require.NoError(t, err)

		size := int(binary.LittleEndian.Uint32(data[:4]))

		for _, pos := range []int{0, 3, 4, 4 + size/2, 4 + size, 4 + size + 1, 4 + size + 8, len(data) - 1} {
			tampered := slices.Clone(data)
			tampered[pos] ^= 0xFF

			require.NotPanics(t, func() {
				if server, err := UnmarshalServerKey(tampered); err == nil {
					_, _ = server.Activate()
				}
			}, "byte %d", pos)
		}

		for _, n := range []int{0, 2, 4, 4 + size, len(data) - 1} {
			require.NotPanics(t, func() {
				_, err := UnmarshalServerKey(data[:n])
				require.Error(t, err, "length %d", n)
			}, "length %d", n)
		}

		_, err = UnmarshalServerKey(append(slices.Clone(data), 0))
		require.Error(t, err)
	})
}

func testCiphertextMarshal(tc *testContext, t *testing.T) {

	t.Run(testString("Ciphertext/Marshal", tc.params), func(t *testing.T) {
		ct, err := tc.client.Encrypt(123456789)
		require.NoError(t, err)

		data, err := ct.MarshalBinary()
		require.NoError(t, err)
		require.Equal(t, ct.BinarySize(), len(data))

		digest, err := ct.Digest()
		require.NoError(t, err)
		require.Equal(t, blake2b.Sum256(data), digest)

		have := new(Ciphertext)
		require.NoError(t, have.UnmarshalBinary(data))
		require.Equal(t, ct.Fingerprint(), have.Fingerprint())

		m, err := tc.client.Decrypt(have)
		require.NoError(t, err)
		require.Equal(t, uint32(123456789), m)

		require.Error(t, new(Ciphertext).UnmarshalBinary(data[:FingerprintSize-1]))
	})

	t.Run(testString("Ciphertext/Malformed", tc.params), func(t *testing.T) {
		ct, err := tc.client.Encrypt(9)
		require.NoError(t, err)

		data, err := ct.MarshalBinary()
		require.NoError(t, err)

		for _, pos := range []int{FingerprintSize, FingerprintSize + 1, FingerprintSize + 4, FingerprintSize + 8, len(data) - 1} {
			tampered := slices.Clone(data)
			tampered[pos] ^= 0xFF

			require.NotPanics(t, func() {
				have := new(Ciphertext)
				if err := have.UnmarshalBinary(tampered); err != nil {
					return
				}
				// Whatever decodes is either rejected or evaluated without crashing.
				_, _ = tc.client.Decrypt(have)
				_, _ = tc.eval.Add(have, ct)
			}, "byte %d", pos)
		}

		for _, n := range []int{FingerprintSize, FingerprintSize + 1, len(data) / 2, len(data) - 1} {
			require.NotPanics(t, func() {
				require.Error(t, new(Ciphertext).UnmarshalBinary(data[:n]), "length %d", n)
			}, "length %d", n)
		}
	})

	t.Run(testString("Ciphertext/ForeignRing", tc.params), func(t *testing.T) {
		lit := tc.kc.Config().ParametersLiteral()
		lit.LogN--
		small := newTestContext(t, lit)

		foreign, err := small.client.Encrypt(3)
		require.NoError(t, err)

		// Same fingerprint, smaller ring.
		forged := &Ciphertext{ct: foreign.ct, fingerprint: tc.kc.Fingerprint()}

		ct, err := tc.client.Encrypt(4)
		require.NoError(t, err)

		require.NotPanics(t, func() {
			_, err := tc.eval.Add(ct, forged)
			require.Error(t, err)
			require.NotErrorIs(t, err, ErrKeyMismatch)

			_, err = tc.client.Decrypt(forged)
			require.ErrorIs(t, err, ErrDecryption)
		})
	})
}

func testNoise(tc *testContext, t *testing.T) {

	t.Run(testString("Noise", tc.params), func(t *testing.T) {
		prev, err := tc.client.Encrypt(0)
		require.NoError(t, err)
		curr, err := tc.client.Encrypt(1)
		require.NoError(t, err)

		noise, err := tc.client.Noise(curr)
		require.NoError(t, err)
		require.LessOrEqual(t, noise, Log2(tc.params.FreshNoise()))

		k := tc.params.MaxTerms()

		for i := 2; i < k; i++ {
			next, err := tc.eval.Add(prev, curr)
			require.NoError(t, err)
			prev, curr = curr, next
		}

		want := new(big.Int).Mod(bigFibonacci(k - 1)[k-1], tc.params.PlaintextModulus())

		have, err := tc.client.Decrypt(curr)
		require.NoError(t, err)
		require.Equal(t, uint32(want.Uint64()), have)

		noise, err = tc.client.Noise(curr)
		require.NoError(t, err)
		require.LessOrEqual(t, noise, tc.params.LogNoiseBudget())
	})
}

func TestConfiguration(t *testing.T) {

	t.Run("Presets", func(t *testing.T) {
		require.Equal(t, KindDefault, Default().Kind())
		require.Equal(t, "Default security parameters", Default().Description())
		require.Equal(t, KindFast, Fast().Kind())
		require.Equal(t, "Fast", KindFast.String())
		require.Equal(t, "Kind(7)", Kind(7).String())

		def, err := NewParametersFromLiteral(Default().ParametersLiteral())
		require.NoError(t, err)
		fast, err := NewParametersFromLiteral(Fast().ParametersLiteral())
		require.NoError(t, err)

		require.Greater(t, def.LogN(), fast.LogN())
		require.GreaterOrEqual(t, def.MaxTerms(), 500)
		require.GreaterOrEqual(t, fast.MaxTerms(), 150)
		require.Less(t, fast.MaxTerms(), def.MaxTerms())
	})

	t.Run("Immutable", func(t *testing.T) {
		lit := testInsecure.CopyNew()
		config := Custom(lit)
		lit.LogQ[0] = 20
		require.Equal(t, 60, config.ParametersLiteral().LogQ[0])

		config.ParametersLiteral().LogQ[0] = 20
		require.Equal(t, 60, config.ParametersLiteral().LogQ[0])
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, lit := range []ParametersLiteral{
			{LogN: 0, LogQ: []int{60, 60}},
			{LogN: 10},
			{LogN: 10, LogQ: []int{30}},
			{LogN: 10, LogQ: []int{60, 60}, Q: []uint64{0x1fffffffffe00001}},
		} {
			kc, err := NewKeyContext(Custom(lit))
			require.ErrorIs(t, err, ErrConfiguration)
			require.Nil(t, kc)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		for _, config := range []SecurityConfiguration{Default(), Fast(), Custom(testInsecure)} {
			data, err := json.Marshal(config)
			require.NoError(t, err)

			var have SecurityConfiguration
			require.NoError(t, json.Unmarshal(data, &have))
			require.Equal(t, config.Kind(), have.Kind())
			require.Equal(t, config.Description(), have.Description())
			require.Equal(t, config.ParametersLiteral(), have.ParametersLiteral())
		}

		data, err := json.Marshal(Fast())
		require.NoError(t, err)
		require.JSONEq(t, `{"Kind":"Fast"}`, string(data))

		var config SecurityConfiguration
		require.ErrorIs(t, json.Unmarshal([]byte(`{"Kind":"Custom"}`), &config), ErrConfiguration)
		require.Error(t, json.Unmarshal([]byte(`{"Kind":"Paranoid"}`), &config))
	})
}

func TestMaxTerms(t *testing.T) {
	for _, tt := range []struct {
		budget, unit int64
		want         int
	}{
		{0, 1, 0},
		{1, 1, 2},
		{10, 1, 6},
		{10, 2, 5},
		{13, 1, 7},
		{1, 2, 0},
	} {
		require.Equal(t, tt.want, maxTerms(big.NewInt(tt.budget), big.NewInt(tt.unit)), "budget=%d unit=%d", tt.budget, tt.unit)
	}
}

func TestLog2(t *testing.T) {
	require.InDelta(t, 10, Log2(big.NewInt(1024)), 1e-12)
	require.InDelta(t, 3, Log2(big.NewInt(-8)), 1e-12)
	require.InDelta(t, 100, Log2(new(big.Int).Lsh(big.NewInt(1), 100)), 1e-12)
	require.True(t, math.IsInf(Log2(new(big.Int)), -1))
}
