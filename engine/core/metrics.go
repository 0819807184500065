package core

const AVG_COUNT uint8 = 30

// Metrics keeps a rolling frame time average and a frames per second counter.
// It is owned by the frame loop and is not safe for concurrent use.
type Metrics struct {
	frameAVGCounter    uint8
	msTimes            [AVG_COUNT]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	total              uint64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Update records one frame that took frameElapsed seconds.
func (m *Metrics) Update(frameElapsed float64) {
	// Calculate frame ms average
	frameMS := frameElapsed * 1000.0
	m.msTimes[m.frameAVGCounter] = frameMS
	if m.frameAVGCounter == AVG_COUNT-1 {
		m.msAvg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.msAvg += m.msTimes[i]
		}
		m.msAvg /= float64(AVG_COUNT)
	}
	m.frameAVGCounter++
	m.frameAVGCounter %= AVG_COUNT

	// Calculate frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	m.frames++
	m.total++
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

// Frames returns how many frames were recorded since creation.
func (m *Metrics) Frames() uint64 {
	return m.total
}
