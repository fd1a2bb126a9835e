package sensor

// debouncer is the counter-based debounce state of one switch.
type debouncer struct {
	raw       bool
	debounced bool
	// lastReported is the state the consumer has already seen.
	lastReported bool
	counter      int
}

// step feeds one sample and reports whether the debounced state flipped.
// A sample that agrees with the debounced state clears any progress, so only
// a disagreement held for threshold consecutive samples is accepted.
func (d *debouncer) step(sample bool, threshold int) bool {
	d.raw = sample
	if sample == d.debounced {
		d.counter = 0
		return false
	}
	d.counter++
	if d.counter < threshold {
		return false
	}
	d.debounced = sample
	d.counter = 0
	return true
}
