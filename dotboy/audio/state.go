package audio

// PulseState is the snapshot form of a pulse channel.
type PulseState struct {
	Enabled  bool
	DACOn    bool
	Freq     uint16
	Timer    int
	Duty     uint8
	DutyStep uint8

	Length        uint16
	LengthEnabled bool

	EnvVolume uint8
	EnvPeriod uint8
	EnvUp     bool
	EnvTimer  uint8

	SweepPeriod  uint8
	SweepNeg     bool
	SweepShift   uint8
	SweepTimer   uint8
	SweepShadow  uint16
	SweepEnabled bool
}

// WaveState is the snapshot form of the wave channel.
type WaveState struct {
	Enabled    bool
	DACOn      bool
	Freq       uint16
	Timer      int
	Pos        uint8
	Latch      uint8
	VolumeCode uint8

	Length        uint16
	LengthEnabled bool
}

// NoiseState is the snapshot form of the noise channel.
type NoiseState struct {
	Enabled bool
	DACOn   bool
	LFSR    uint16
	Timer   int
	Shift   uint8
	Width7  bool
	DivCode uint8

	Length        uint16
	LengthEnabled bool

	EnvVolume uint8
	EnvPeriod uint8
	EnvUp     bool
	EnvTimer  uint8
}

// State captures the full APU: register file, wave RAM, channel internals
// and the frame sequencer position. The resampler phase is included so a
// restored machine produces the exact same sample stream.
type State struct {
	Enabled bool
	Regs    [0x20]byte
	Wave    [16]byte

	Ch1 PulseState
	Ch2 PulseState
	Ch3 WaveState
	Ch4 NoiseState

	FrameStep   int
	FrameCycles int
	SamplePhase int
}

func pulseState(c *pulseChannel) PulseState {
	return PulseState{
		Enabled: c.enabled, DACOn: c.dacOn,
		Freq: c.freq, Timer: c.timer, Duty: c.duty, DutyStep: c.dutyStep,
		Length: c.length, LengthEnabled: c.lengthEnabled,
		EnvVolume: c.env.volume, EnvPeriod: c.env.period, EnvUp: c.env.up, EnvTimer: c.env.timer,
		SweepPeriod: c.sweepPeriod, SweepNeg: c.sweepNeg, SweepShift: c.sweepShift,
		SweepTimer: c.sweepTimer, SweepShadow: c.sweepShadow, SweepEnabled: c.sweepEnabled,
	}
}

func setPulseState(c *pulseChannel, s PulseState) {
	c.enabled, c.dacOn = s.Enabled, s.DACOn
	c.freq, c.timer, c.duty, c.dutyStep = s.Freq, s.Timer, s.Duty, s.DutyStep
	c.length, c.lengthEnabled = s.Length, s.LengthEnabled
	c.env = envelope{volume: s.EnvVolume, period: s.EnvPeriod, up: s.EnvUp, timer: s.EnvTimer}
	c.sweepPeriod, c.sweepNeg, c.sweepShift = s.SweepPeriod, s.SweepNeg, s.SweepShift
	c.sweepTimer, c.sweepShadow, c.sweepEnabled = s.SweepTimer, s.SweepShadow, s.SweepEnabled
}

// Save returns a snapshot of the APU. Buffered samples are not part of the
// snapshot; they belong to the frame being produced, not the machine.
func (a *APU) Save() State {
	return State{
		Enabled: a.enabled,
		Regs:    a.regs,
		Wave:    a.wave,
		Ch1:     pulseState(&a.ch1),
		Ch2:     pulseState(&a.ch2),
		Ch3: WaveState{
			Enabled: a.ch3.enabled, DACOn: a.ch3.dacOn,
			Freq: a.ch3.freq, Timer: a.ch3.timer, Pos: a.ch3.pos, Latch: a.ch3.latch,
			VolumeCode: a.ch3.volumeCode,
			Length:     a.ch3.length, LengthEnabled: a.ch3.lengthEnabled,
		},
		Ch4: NoiseState{
			Enabled: a.ch4.enabled, DACOn: a.ch4.dacOn,
			LFSR: a.ch4.lfsr, Timer: a.ch4.timer,
			Shift: a.ch4.shift, Width7: a.ch4.width7, DivCode: a.ch4.divCode,
			Length: a.ch4.length, LengthEnabled: a.ch4.lengthEnabled,
			EnvVolume: a.ch4.env.volume, EnvPeriod: a.ch4.env.period,
			EnvUp: a.ch4.env.up, EnvTimer: a.ch4.env.timer,
		},
		FrameStep:   a.frameStep,
		FrameCycles: a.frameCycles,
		SamplePhase: a.samplePhase,
	}
}

// Load replaces the APU state with a snapshot. The sample buffer is cleared.
func (a *APU) Load(s State) {
	a.enabled = s.Enabled
	a.regs = s.Regs
	a.wave = s.Wave
	setPulseState(&a.ch1, s.Ch1)
	setPulseState(&a.ch2, s.Ch2)
	a.ch3 = waveChannel{
		enabled: s.Ch3.Enabled, dacOn: s.Ch3.DACOn,
		freq: s.Ch3.Freq, timer: s.Ch3.Timer, pos: s.Ch3.Pos, latch: s.Ch3.Latch,
		volumeCode: s.Ch3.VolumeCode,
		length:     s.Ch3.Length, lengthEnabled: s.Ch3.LengthEnabled,
	}
	a.ch4 = noiseChannel{
		enabled: s.Ch4.Enabled, dacOn: s.Ch4.DACOn,
		lfsr: s.Ch4.LFSR, timer: s.Ch4.Timer,
		shift: s.Ch4.Shift, width7: s.Ch4.Width7, divCode: s.Ch4.DivCode,
		length: s.Ch4.Length, lengthEnabled: s.Ch4.LengthEnabled,
		env: envelope{volume: s.Ch4.EnvVolume, period: s.Ch4.EnvPeriod, up: s.Ch4.EnvUp, timer: s.Ch4.EnvTimer},
	}
	a.frameStep = s.FrameStep
	a.frameCycles = s.FrameCycles
	a.samplePhase = s.SamplePhase
	a.samples = a.samples[:0]
}
