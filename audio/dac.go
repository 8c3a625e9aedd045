package audio

// DACCode maps a signed sample onto the word written to an 8-bit built-in
// DAC over I2S: the top 8 bits in offset binary, left-aligned in 16 bits.
func DACCode(s int16) uint16 {
	return uint16(uint8((int32(s)>>8)+128)) << 8
}

// DACLevel is the signed sample the DAC actually reproduces for s.
func DACLevel(s int16) int16 {
	return int16((int32(DACCode(s)>>8) - 128) << 8)
}

// BuiltinDAC quantises buffers the way an 8-bit DAC would before passing
// them on, so renders match what the board plays.
type BuiltinDAC struct {
	next    Sink
	scratch []int16
}

func NewBuiltinDAC(next Sink) *BuiltinDAC {
	return &BuiltinDAC{next: next}
}

func (d *BuiltinDAC) Submit(buf []int16) error {
	if cap(d.scratch) < len(buf) {
		d.scratch = make([]int16, len(buf))
	}
	out := d.scratch[:len(buf)]
	for i, s := range buf {
		out[i] = DACLevel(s)
	}
	return d.next.Submit(out)
}

func (d *BuiltinDAC) Close() error {
	return d.next.Close()
}
