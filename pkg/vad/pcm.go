package vad

import "math"

// int16ToFloat32 is the slicer's normalization step: s / 32768.0.
func int16ToFloat32(s int16) float32 {
	return float32(s) / 32768.0
}

// floatToInt16 is the chunk/end emitter's reverse conversion:
// round(clamp(f*32767, -32768, 32767)). The asymmetric scale (32767 on
// this side, 32768 on the other) is deliberate and reproduced exactly
// rather than "fixed", so that -32768 round-trips to -32767 instead of
// itself.
func floatToInt16(f float32) int16 {
	v := math.Round(float64(f) * 32767)
	switch {
	case v > 32767:
		v = 32767
	case v < -32768:
		v = -32768
	}
	return int16(v)
}

// framesToPCM flattens a sequence of float32 frames into one little-
// endian-ready int16 PCM buffer, converting each sample with floatToInt16.
func framesToPCM(frames [][]float32) []int16 {
	if len(frames) == 0 {
		return nil
	}
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	out := make([]int16, 0, total)
	for _, f := range frames {
		for _, v := range f {
			out = append(out, floatToInt16(v))
		}
	}
	return out
}

func cloneFrame(f []float32) []float32 {
	c := make([]float32, len(f))
	copy(c, f)
	return c
}
