package audio

// Conditioning primitives that bring raw device blocks into the shape the
// recognition engine requires: mono, target sample rate, bounded peak.

// Downmix folds interleaved multi-channel frames into mono by arithmetic
// mean. Trailing samples of an incomplete frame are dropped. channels <= 1
// returns the input unchanged.
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += samples[base+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// Resample converts mono samples from srcRate to dstRate by linear
// interpolation. Equal rates return the input unchanged. Output positions
// whose source neighbors fall past the end of the input are dropped.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return samples
	}
	ratio := float64(dstRate) / float64(srcRate)
	outLen := int(float64(len(samples)) * ratio)
	out := make([]float32, 0, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		if idx+1 < len(samples) {
			sample := float64(samples[idx])*(1-frac) + float64(samples[idx+1])*frac
			out = append(out, float32(sample))
		} else if idx < len(samples) {
			out = append(out, samples[idx])
		}
	}
	return out
}

// Normalize scales samples so the peak absolute amplitude maps to 0.8,
// clamping to [-1, 1]. Near-silent input (peak < 1e-6) passes through
// unchanged so the scaler cannot amplify noise floors.
func Normalize(samples []float32) []float32 {
	if len(samples) == 0 {
		return samples
	}
	peak := Peak(samples)
	if peak < 1e-6 {
		return samples
	}
	const targetPeak = 0.8
	scale := targetPeak / peak
	out := make([]float32, len(samples))
	for i, s := range samples {
		v := s * scale
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		out[i] = v
	}
	return out
}

// Peak returns the maximum absolute amplitude.
func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
