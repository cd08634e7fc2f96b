// Package track closes the loop between the position-reference knob
// and the tracked axis: it filters the ADC input, maps it onto a
// symmetric step range and nudges the motor toward the target a few
// steps per tick.
package track

// MapPosition maps a raw reading in [0, adcMax] onto [-rng/2, +rng/2]
// with truncating integer math, so a centered knob lands near step 0
// and full scale on +rng/2. Out-of-range readings are clamped first.
func MapPosition(raw uint16, adcMax uint16, rng int32) int32 {
	if raw > adcMax {
		raw = adcMax
	}
	half := rng / 2
	if adcMax == 0 {
		return -half
	}
	return int32(int64(raw)*int64(2*half)/int64(adcMax)) - half
}
