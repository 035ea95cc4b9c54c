package audio

import (
	"github.com/mknezic/go-dotboy/dotboy/addr"
	"github.com/mknezic/go-dotboy/dotboy/bit"
)

const (
	clockRate            = 4194304
	frameSequencerCycles = 8192 // 512 Hz

	// DefaultSampleRate is used when the caller does not pick one.
	DefaultSampleRate = 44100

	lfsrSeed   = 0x7FFF
	triggerBit = 7
	lengthBit  = 6

	channelAmplitude = 32 // per-channel DAC step in int16 units
)

// dutyPatterns holds the four pulse waveforms, one bit per eighth of the
// period, MSB first.
var dutyPatterns = [4]uint8{0x01, 0x81, 0x87, 0x7E}

// noiseDivisors maps the NR43 divisor code to the base timer period.
var noiseDivisors = [8]int{8, 16, 32, 48, 64, 80, 96, 112}

// waveVolumeShift maps the NR32 output level code to a right shift of the
// 4-bit sample. Code 0 mutes the channel.
var waveVolumeShift = [4]uint8{4, 0, 1, 2}

// readMask gives the OR mask applied when reading each register in
// FF10-FF2F. Unreadable bits always return 1.
var readMask = [0x20]uint8{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10-NR14
	0xFF, 0x3F, 0x00, 0xFF, 0xBF, // FF15, NR21-NR24
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30-NR34
	0xFF, 0xFF, 0x00, 0x00, 0xBF, // FF1F, NR41-NR44
	0x00, 0x00, 0x70, // NR50-NR52
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // FF27-FF2F
}

type envelope struct {
	volume uint8
	period uint8
	up     bool
	timer  uint8
}

func (e *envelope) clock() {
	if e.period == 0 {
		return
	}
	e.timer++
	if e.timer < e.period {
		return
	}
	e.timer = 0
	if e.up && e.volume < 15 {
		e.volume++
	} else if !e.up && e.volume > 0 {
		e.volume--
	}
}

type pulseChannel struct {
	enabled bool
	dacOn   bool

	freq     uint16
	timer    int
	duty     uint8
	dutyStep uint8

	length        uint16
	lengthEnabled bool

	env envelope

	// frequency sweep, wired on channel 1 only
	sweepPeriod  uint8
	sweepNeg     bool
	sweepShift   uint8
	sweepTimer   uint8
	sweepShadow  uint16
	sweepEnabled bool
}

func (c *pulseChannel) tick() {
	c.timer--
	if c.timer > 0 {
		return
	}
	c.timer = int(2048-c.freq) * 4
	c.dutyStep = (c.dutyStep + 1) & 7
}

func (c *pulseChannel) clockLength() {
	if c.lengthEnabled && c.length > 0 {
		c.length--
		if c.length == 0 {
			c.enabled = false
		}
	}
}

// nextSweepFreq computes the shifted frequency without committing it.
func (c *pulseChannel) nextSweepFreq() uint16 {
	delta := c.sweepShadow >> c.sweepShift
	if c.sweepNeg {
		return c.sweepShadow - delta
	}
	return c.sweepShadow + delta
}

func (c *pulseChannel) clockSweep() {
	if c.sweepTimer > 0 {
		c.sweepTimer--
	}
	if c.sweepTimer != 0 {
		return
	}
	if c.sweepPeriod > 0 {
		c.sweepTimer = c.sweepPeriod
	} else {
		c.sweepTimer = 8
	}
	if !c.sweepEnabled || c.sweepPeriod == 0 {
		return
	}
	next := c.nextSweepFreq()
	if next > 2047 {
		c.enabled = false
		return
	}
	if c.sweepShift > 0 {
		c.sweepShadow = next
		c.freq = next
		if c.nextSweepFreq() > 2047 {
			c.enabled = false
		}
	}
}

func (c *pulseChannel) output() int16 {
	if !c.enabled || !c.dacOn {
		return 0
	}
	if (dutyPatterns[c.duty]>>c.dutyStep)&1 == 1 {
		return int16(c.env.volume)
	}
	return -int16(c.env.volume)
}

type waveChannel struct {
	enabled bool
	dacOn   bool

	freq  uint16
	timer int
	pos   uint8
	latch uint8 // last sample read from wave RAM

	volumeCode uint8

	length        uint16
	lengthEnabled bool
}

func (c *waveChannel) tick(ram *[16]byte) {
	c.timer--
	if c.timer > 0 {
		return
	}
	c.timer = int(2048-c.freq) * 2
	c.pos = (c.pos + 1) & 31
	s := ram[c.pos/2]
	if c.pos&1 == 0 {
		c.latch = s >> 4
	} else {
		c.latch = s & 0x0F
	}
}

func (c *waveChannel) clockLength() {
	if c.lengthEnabled && c.length > 0 {
		c.length--
		if c.length == 0 {
			c.enabled = false
		}
	}
}

func (c *waveChannel) output() int16 {
	if !c.enabled || !c.dacOn {
		return 0
	}
	shift := waveVolumeShift[c.volumeCode]
	if shift >= 4 {
		return 0
	}
	return int16(c.latch>>shift) - 8
}

type noiseChannel struct {
	enabled bool
	dacOn   bool

	lfsr    uint16
	timer   int
	shift   uint8
	width7  bool
	divCode uint8

	length        uint16
	lengthEnabled bool

	env envelope
}

func (c *noiseChannel) period() int {
	return noiseDivisors[c.divCode] << c.shift
}

func (c *noiseChannel) tick() {
	c.timer--
	if c.timer > 0 {
		return
	}
	c.timer = c.period()
	feedback := (c.lfsr ^ (c.lfsr >> 1)) & 1
	c.lfsr = (c.lfsr >> 1) | (feedback << 14)
	if c.width7 {
		c.lfsr = (c.lfsr &^ (1 << 6)) | (feedback << 6)
	}
}

func (c *noiseChannel) clockLength() {
	if c.lengthEnabled && c.length > 0 {
		c.length--
		if c.length == 0 {
			c.enabled = false
		}
	}
}

func (c *noiseChannel) output() int16 {
	if !c.enabled || !c.dacOn {
		return 0
	}
	if c.lfsr&1 == 0 {
		return int16(c.env.volume)
	}
	return -int16(c.env.volume)
}

// APU is the four-channel sound unit. It runs off the CPU clock, keeps the
// register file at FF10-FF3F, and resamples the mix to a fixed output rate.
// Samples accumulate in an internal buffer until drained.
type APU struct {
	enabled bool
	regs    [0x20]byte // FF10-FF2F raw values as written
	wave    [16]byte   // FF30-FF3F, 32 4-bit samples

	ch1 pulseChannel
	ch2 pulseChannel
	ch3 waveChannel
	ch4 noiseChannel

	frameStep   int
	frameCycles int

	sampleRate  int
	samplePhase int // fractional resampler position, in sampleRate units
	samples     []int16
}

// New builds a powered-on APU emitting stereo int16 pairs at the given rate.
// A rate of zero or less selects DefaultSampleRate.
func New(sampleRate int) *APU {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	a := &APU{sampleRate: sampleRate}
	a.Reset()
	return a
}

// Reset restores the post-boot register state.
func (a *APU) Reset() {
	*a = APU{sampleRate: a.sampleRate, samples: a.samples[:0]}
	a.enabled = true
	a.ch4.lfsr = lfsrSeed

	// Post-boot register values, applied in address order so the NRx4
	// triggers see the envelope and DAC settings already in place.
	boot := []struct {
		address uint16
		value   uint8
	}{
		{addr.NR10, 0x80}, {addr.NR11, 0xBF}, {addr.NR12, 0xF3}, {addr.NR14, 0xBF},
		{addr.NR21, 0x3F}, {addr.NR24, 0xBF},
		{addr.NR30, 0x7F}, {addr.NR31, 0xFF}, {addr.NR32, 0x9F}, {addr.NR34, 0xBF},
		{addr.NR41, 0xFF}, {addr.NR44, 0xBF},
		{addr.NR50, 0x77}, {addr.NR51, 0xF3},
	}
	for _, r := range boot {
		a.regs[r.address-addr.AudioStart] = r.value
		a.applyWrite(r.address, r.value)
	}
}

// Tick advances the APU by the given number of CPU cycles.
func (a *APU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		if a.enabled {
			a.ch1.tick()
			a.ch2.tick()
			a.ch3.tick(&a.wave)
			a.ch4.tick()

			a.frameCycles++
			if a.frameCycles >= frameSequencerCycles {
				a.frameCycles = 0
				a.clockFrameSequencer()
			}
		}

		a.samplePhase += a.sampleRate
		if a.samplePhase >= clockRate {
			a.samplePhase -= clockRate
			left, right := a.mix()
			a.samples = append(a.samples, left, right)
		}
	}
}

// clockFrameSequencer runs the 512 Hz step counter:
//
//	step   0     1  2     3  4     5  6     7
//	       len   -  len   -  len   -  len   -
//	                sweep          sweep
//	                                        env
func (a *APU) clockFrameSequencer() {
	a.frameStep = (a.frameStep + 1) & 7
	switch a.frameStep {
	case 0, 4:
		a.clockLengths()
	case 2, 6:
		a.clockLengths()
		a.ch1.clockSweep()
	case 7:
		a.ch1.env.clock()
		a.ch2.env.clock()
		a.ch4.env.clock()
	}
}

func (a *APU) clockLengths() {
	a.ch1.clockLength()
	a.ch2.clockLength()
	a.ch3.clockLength()
	a.ch4.clockLength()
}

// mix produces one stereo sample pair from the current channel outputs,
// panned by NR51 and scaled by the NR50 master volumes.
func (a *APU) mix() (left, right int16) {
	if !a.enabled {
		return 0, 0
	}
	outputs := [4]int16{a.ch1.output(), a.ch2.output(), a.ch3.output(), a.ch4.output()}
	nr51 := a.regs[addr.NR51-addr.AudioStart]

	var l, r int32
	for ch := 0; ch < 4; ch++ {
		if nr51>>(4+ch)&1 == 1 {
			l += int32(outputs[ch])
		}
		if nr51>>ch&1 == 1 {
			r += int32(outputs[ch])
		}
	}

	nr50 := a.regs[addr.NR50-addr.AudioStart]
	leftVol := int32(nr50>>4&7) + 1
	rightVol := int32(nr50&7) + 1
	return int16(l * leftVol * channelAmplitude), int16(r * rightVol * channelAmplitude)
}

// DrainSamples returns the samples generated since the last call and empties
// the buffer. The slice is interleaved stereo, left first.
func (a *APU) DrainSamples() []int16 {
	out := make([]int16, len(a.samples))
	copy(out, a.samples)
	a.samples = a.samples[:0]
	return out
}

// SampleRate returns the output rate in Hz.
func (a *APU) SampleRate() int { return a.sampleRate }

func (a *APU) Read(address uint16) byte {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		return a.wave[address-addr.WaveRAMStart]
	}
	if address < addr.AudioStart || address > addr.AudioEnd {
		return 0xFF
	}
	index := address - addr.AudioStart
	value := a.regs[index]
	if address == addr.NR52 {
		value = 0
		if a.enabled {
			value |= 0x80
		}
		if a.ch1.enabled {
			value |= 0x01
		}
		if a.ch2.enabled {
			value |= 0x02
		}
		if a.ch3.enabled {
			value |= 0x04
		}
		if a.ch4.enabled {
			value |= 0x08
		}
	}
	return value | readMask[index]
}

func (a *APU) Write(address uint16, value byte) {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		a.wave[address-addr.WaveRAMStart] = value
		return
	}
	if address < addr.AudioStart || address > addr.AudioEnd {
		return
	}
	if address == addr.NR52 {
		wasEnabled := a.enabled
		a.enabled = bit.IsSet(7, value)
		if wasEnabled && !a.enabled {
			a.powerOff()
		} else if !wasEnabled && a.enabled {
			a.frameStep = 0
			a.frameCycles = 0
		}
		return
	}
	// registers are inert while powered off, wave RAM stays writable
	if !a.enabled {
		return
	}
	a.regs[address-addr.AudioStart] = value
	a.applyWrite(address, value)
}

// powerOff clears every register and silences all channels. Wave RAM keeps
// its contents across a power cycle.
func (a *APU) powerOff() {
	a.regs = [0x20]byte{}
	a.ch1 = pulseChannel{}
	a.ch2 = pulseChannel{}
	a.ch3 = waveChannel{}
	a.ch4 = noiseChannel{lfsr: lfsrSeed}
}

func (a *APU) applyWrite(address uint16, value byte) {
	switch address {
	case addr.NR10:
		a.ch1.sweepPeriod = value >> 4 & 7
		a.ch1.sweepNeg = bit.IsSet(3, value)
		a.ch1.sweepShift = value & 7
	case addr.NR11:
		a.ch1.duty = value >> 6
		a.ch1.length = 64 - uint16(value&0x3F)
	case addr.NR12:
		a.ch1.env.volume = value >> 4
		a.ch1.env.up = bit.IsSet(3, value)
		a.ch1.env.period = value & 7
		a.ch1.dacOn = value&0xF8 != 0
		if !a.ch1.dacOn {
			a.ch1.enabled = false
		}
	case addr.NR13:
		a.ch1.freq = a.ch1.freq&0x700 | uint16(value)
	case addr.NR14:
		a.ch1.freq = a.ch1.freq&0xFF | uint16(value&7)<<8
		a.ch1.lengthEnabled = bit.IsSet(lengthBit, value)
		if bit.IsSet(triggerBit, value) {
			a.triggerPulse(&a.ch1, true)
		}
	case addr.NR21:
		a.ch2.duty = value >> 6
		a.ch2.length = 64 - uint16(value&0x3F)
	case addr.NR22:
		a.ch2.env.volume = value >> 4
		a.ch2.env.up = bit.IsSet(3, value)
		a.ch2.env.period = value & 7
		a.ch2.dacOn = value&0xF8 != 0
		if !a.ch2.dacOn {
			a.ch2.enabled = false
		}
	case addr.NR23:
		a.ch2.freq = a.ch2.freq&0x700 | uint16(value)
	case addr.NR24:
		a.ch2.freq = a.ch2.freq&0xFF | uint16(value&7)<<8
		a.ch2.lengthEnabled = bit.IsSet(lengthBit, value)
		if bit.IsSet(triggerBit, value) {
			a.triggerPulse(&a.ch2, false)
		}
	case addr.NR30:
		a.ch3.dacOn = bit.IsSet(7, value)
		if !a.ch3.dacOn {
			a.ch3.enabled = false
		}
	case addr.NR31:
		a.ch3.length = 256 - uint16(value)
	case addr.NR32:
		a.ch3.volumeCode = value >> 5 & 3
	case addr.NR33:
		a.ch3.freq = a.ch3.freq&0x700 | uint16(value)
	case addr.NR34:
		a.ch3.freq = a.ch3.freq&0xFF | uint16(value&7)<<8
		a.ch3.lengthEnabled = bit.IsSet(lengthBit, value)
		if bit.IsSet(triggerBit, value) {
			a.triggerWave()
		}
	case addr.NR41:
		a.ch4.length = 64 - uint16(value&0x3F)
	case addr.NR42:
		a.ch4.env.volume = value >> 4
		a.ch4.env.up = bit.IsSet(3, value)
		a.ch4.env.period = value & 7
		a.ch4.dacOn = value&0xF8 != 0
		if !a.ch4.dacOn {
			a.ch4.enabled = false
		}
	case addr.NR43:
		a.ch4.shift = value >> 4
		a.ch4.width7 = bit.IsSet(3, value)
		a.ch4.divCode = value & 7
	case addr.NR44:
		a.ch4.lengthEnabled = bit.IsSet(lengthBit, value)
		if bit.IsSet(triggerBit, value) {
			a.triggerNoise()
		}
	}
}

func (a *APU) triggerPulse(c *pulseChannel, sweep bool) {
	c.enabled = c.dacOn
	if c.length == 0 {
		c.length = 64
	}
	c.timer = int(2048-c.freq) * 4
	c.env.timer = 0
	var nrx2 uint8
	if sweep {
		nrx2 = a.regs[addr.NR12-addr.AudioStart]
	} else {
		nrx2 = a.regs[addr.NR22-addr.AudioStart]
	}
	c.env.volume = nrx2 >> 4

	if sweep {
		c.sweepShadow = c.freq
		if c.sweepPeriod > 0 {
			c.sweepTimer = c.sweepPeriod
		} else {
			c.sweepTimer = 8
		}
		c.sweepEnabled = c.sweepPeriod > 0 || c.sweepShift > 0
		if c.sweepShift > 0 && c.nextSweepFreq() > 2047 {
			c.enabled = false
		}
	}
}

func (a *APU) triggerWave() {
	a.ch3.enabled = a.ch3.dacOn
	if a.ch3.length == 0 {
		a.ch3.length = 256
	}
	a.ch3.timer = int(2048-a.ch3.freq) * 2
	a.ch3.pos = 0
}

func (a *APU) triggerNoise() {
	a.ch4.enabled = a.ch4.dacOn
	if a.ch4.length == 0 {
		a.ch4.length = 64
	}
	a.ch4.timer = a.ch4.period()
	a.ch4.lfsr = lfsrSeed
	a.ch4.env.timer = 0
	a.ch4.env.volume = a.regs[addr.NR42-addr.AudioStart] >> 4
}
