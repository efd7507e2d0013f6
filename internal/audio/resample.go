package audio

// TargetSampleRate is the rate transcription backends expect.
const TargetSampleRate = 16000

// Resample converts samples from src to dst Hz by linear interpolation.
// Empty input or a zero rate yields an empty slice; equal rates yield a copy.
func Resample(samples []float32, src, dst int) []float32 {
	if len(samples) == 0 || src <= 0 || dst <= 0 {
		return []float32{}
	}
	if src == dst {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	n := (int64(len(samples))*int64(dst) + int64(src)/2) / int64(src)
	out := make([]float32, n)
	last := len(samples) - 1
	ratio := float64(src) / float64(dst)
	for i := range out {
		pos := float64(i) * ratio
		i0 := int(pos)
		frac := float32(pos - float64(i0))
		if i0 > last {
			i0 = last
		}
		i1 := i0 + 1
		if i1 > last {
			i1 = last
		}
		out[i] = samples[i0] + (samples[i1]-samples[i0])*frac
	}
	return out
}
