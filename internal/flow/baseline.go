package flow

import "time"

// baselineHandler runs the calibration recording. It has no interaction of
// its own; the player only keeps vitals steady until it times out.
type baselineHandler struct{}

func (baselineHandler) Setup(m *Machine) {
	m.play("baseline")
	m.showPopup("BASELINE RECORDING", false,
		"SCENARIO: Calibration",
		"OBJECTIVE: Remain still and natural",
		"",
		"Continue using vital controls as needed",
		"This data will be used for comparison",
	)
}

func (baselineHandler) Update(*Machine, time.Duration) {}
