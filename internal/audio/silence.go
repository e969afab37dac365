package audio

import "time"

// SilenceConfig holds configuration for silence cut-point detection
type SilenceConfig struct {
	Enabled          bool
	EnergyThreshold  float64       // RMS energy below which a frame counts as silence
	MinSilenceFrames int           // Consecutive silent frames required for a cut point
	FrameDuration    time.Duration // Analysis frame length (typically 20ms)
	SearchWindow     time.Duration // How far back from the hard limit to look for silence
}

// DefaultSilenceConfig returns a default silence detection configuration
func DefaultSilenceConfig() *SilenceConfig {
	return &SilenceConfig{
		Enabled:          true,
		EnergyThreshold:  500.0,
		MinSilenceFrames: 10, // 200ms of silence (10 frames * 20ms)
		FrameDuration:    20 * time.Millisecond,
		SearchWindow:     5 * time.Second,
	}
}

// SilenceDetector finds low-energy cut points in interleaved PCM16 samples
type SilenceDetector struct {
	config *SilenceConfig
}

// NewSilenceDetector creates a new silence detector. A nil config uses the
// defaults.
func NewSilenceDetector(config *SilenceConfig) *SilenceDetector {
	if config == nil {
		config = DefaultSilenceConfig()
	}
	return &SilenceDetector{config: config}
}

// Enabled reports whether cut-point search should be attempted
func (d *SilenceDetector) Enabled() bool {
	return d != nil && d.config.Enabled
}

// FrameLen returns the analysis frame length in sample frames for sampleRate
func (d *SilenceDetector) FrameLen(sampleRate int) int {
	n := int(int64(d.config.FrameDuration) * int64(sampleRate) / int64(time.Second))
	if n < 1 {
		n = 1
	}
	return n
}

// WindowLen returns the search window length in sample frames for sampleRate
func (d *SilenceDetector) WindowLen(sampleRate int) int {
	return int(int64(d.config.SearchWindow) * int64(sampleRate) / int64(time.Second))
}

// FindCut searches sample frames [from, to) of interleaved little-endian PCM16
// for the quietest run of at least MinSilenceFrames silent analysis frames and
// returns the sample-frame offset of the middle of that run. Ties go to the
// later run.
func (d *SilenceDetector) FindCut(pcm []byte, channels, sampleRate, from, to int) (int, bool) {
	if !d.Enabled() || channels <= 0 || from >= to {
		return 0, false
	}

	frameLen := d.FrameLen(sampleRate)
	stride := channels * 2
	if limit := len(pcm) / stride; to > limit {
		to = limit
	}
	minFrames := d.config.MinSilenceFrames
	if minFrames < 1 {
		minFrames = 1
	}

	var (
		bestStart  = -1
		bestFrames int
		bestEnergy float64

		runStart  = -1
		runFrames int
		runEnergy float64
	)

	closeRun := func() {
		if runStart >= 0 && runFrames >= minFrames {
			mean := runEnergy / float64(runFrames)
			if bestStart < 0 || mean <= bestEnergy {
				bestStart, bestFrames, bestEnergy = runStart, runFrames, mean
			}
		}
		runStart, runFrames, runEnergy = -1, 0, 0
	}

	for pos := from; pos+frameLen <= to; pos += frameLen {
		rms := pcm16RMS(pcm[pos*stride : (pos+frameLen)*stride])
		if rms < d.config.EnergyThreshold {
			if runStart < 0 {
				runStart = pos
			}
			runFrames++
			runEnergy += rms
			continue
		}
		closeRun()
	}
	closeRun()

	if bestStart < 0 {
		return 0, false
	}
	cut := bestStart + bestFrames*frameLen/2
	if cut <= from {
		return 0, false
	}
	return cut, true
}
