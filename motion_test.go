package h263

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChromaVectors(t *testing.T) {
	for v, want := range map[int]int{0: 0, 1: 1, 2: 1, 3: 1, 4: 2, 5: 3, 8: 4, -1: -1, -5: -3, -8: -4} {
		require.Equal(t, want, chroma1V(v), "vector %d", v)
	}

	for sum, want := range map[int]int{0: 0, 2: 0, 3: 1, 13: 1, 14: 2, 16: 2, 19: 3, 30: 4, -3: -1, -16: -2} {
		require.Equal(t, want, chroma4V(sum), "sum %d", sum)
	}

	p := &Prediction{FullPel: true, MV: [4]MotionVector{{X: 3, Y: -5}}}
	require.Equal(t, MotionVector{X: 2, Y: -4}, chromaVector(p))
}

func TestPredictZero(t *testing.T) {
	ref := randomPicture(48, 48, 3)
	dst := newTestPicture(48, 48)

	DefaultMotion{}.Predict(dst, ref, &Prediction{Col: 1, Row: 2})

	want := newTestPicture(48, 48)
	want.copyMacroblockFrom(ref, 1, 2)
	requireSamePlanes(t, want, dst)
}

func TestPredictHalfSample(t *testing.T) {
	ref := randomPicture(48, 48, 4)
	dst := newTestPicture(48, 48)

	DefaultMotion{}.Predict(dst, ref, &Prediction{Col: 1, Row: 1, MV: [4]MotionVector{{X: 3, Y: -1}}})

	for y := 16; y < 32; y++ {
		for x := 16; x < 32; x++ {
			sx, sy := x+1, y-1
			a := int(ref.Y.Data[sy*48+sx]) + int(ref.Y.Data[sy*48+sx+1])
			b := int(ref.Y.Data[(sy+1)*48+sx]) + int(ref.Y.Data[(sy+1)*48+sx+1])
			require.EqualValues(t, (a+b+2)>>2, dst.Y.Data[y*48+x], "sample %d,%d", x, y)
		}
	}
}

func TestPredictOutside(t *testing.T) {
	ref := randomPicture(32, 32, 5)
	dst := newTestPicture(32, 32)

	// Far outside the top left corner every sample is the corner sample
	DefaultMotion{}.Predict(dst, ref, &Prediction{MV: [4]MotionVector{{X: -100, Y: -64}}})

	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			require.Equal(t, ref.Y.Data[0], dst.Y.Data[y*32+x])
		}
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			require.Equal(t, ref.Cb.Data[0], dst.Cb.Data[y*16+x])
		}
	}
}

func TestPredictClampedMatchesInside(t *testing.T) {
	ref := randomPicture(64, 64, 6)

	for _, mv := range []MotionVector{{0, 0}, {1, 0}, {0, 1}, {3, 5}, {-7, 2}} {
		var fast, slow [64]byte
		predictBlock(&ref.Y, 24, 24, 8, 8, mv, fast[:], 8)
		predictBlockClamped(&ref.Y, 24+mv.X>>1, 24+mv.Y>>1, 8, 8, mv.X&1 == 1, mv.Y&1 == 1, slow[:], 8)
		require.Equal(t, slow, fast, "vector %v", mv)
	}
}

func TestOverlapUniform(t *testing.T) {
	ref := randomPicture(64, 64, 7)

	mv := MotionVector{X: 2, Y: -3}
	remote := [4]MotionVector{mv, mv, mv, mv}

	var obmc, plain [64]byte
	overlapBlock(&ref.Y, 16, 16, mv, &remote, obmc[:])
	predictBlock(&ref.Y, 16, 16, 8, 8, mv, plain[:], 8)

	// The weights of every sample sum to 8
	require.Equal(t, plain, obmc)
	for n := 0; n < 64; n++ {
		require.EqualValues(t, 8, obmcCurrent[n]+obmcVertical[n]+obmcHorizontal[n])
	}
}

func TestLoopFilterFlat(t *testing.T) {
	var blk [64]byte
	for i := range blk {
		blk[i] = 77
	}
	loopFilter(&blk)
	for _, v := range blk {
		require.EqualValues(t, 77, v)
	}

	blk[27] = 177
	loopFilter(&blk)
	require.EqualValues(t, 102, blk[27])
	require.EqualValues(t, 90, blk[26])
	require.EqualValues(t, 83, blk[18])
	require.EqualValues(t, 77, blk[9])
}

func TestPredictB(t *testing.T) {
	ref := randomPicture(48, 48, 8)
	next := randomPicture(48, 48, 9)
	dst := newTestPicture(48, 48)

	p := &Prediction{Col: 1, Row: 1, Backward: [4]MotionVector{{X: 8, Y: 0}}}
	DefaultMotion{}.PredictB(dst, ref, next, p)

	for y := 16; y < 32; y++ {
		for x := 16; x < 32; x++ {
			f := int(ref.Y.Data[y*48+x])
			want := f
			if x+4 < 32 {
				want = (f + int(next.Y.Data[y*48+x+4])) >> 1
			}
			require.EqualValues(t, want, dst.Y.Data[y*48+x], "sample %d,%d", x, y)
		}
	}
}
