package scenario

// BuiltIn returns predefined atmospheric episode arcs.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"convective-outbreak": {
			Name:        "Convective Outbreak",
			Description: "A quiet airmass destabilizes into a multi-cell outbreak before collapsing.",
			Phases: []Phase{
				{
					Name:           "calm",
					Description:    "Weak background instability, isolated systems.",
					IntensityScale: 0.5,
					SystemCount:    1,
					Triggers:       []Trigger{{Event: EventTimeElapsed, Value: 30, Next: "destabilizing"}},
				},
				{
					Name:           "destabilizing",
					Description:    "CAPE builds as moisture pools along the boundary.",
					IntensityScale: 1.0,
					SystemCount:    3,
					Triggers:       []Trigger{{Event: EventCellsAboveFocus, Value: 5, Next: "outbreak"}},
				},
				{
					Name:           "outbreak",
					Description:    "Multiple strong systems active at once; scoring saturates.",
					IntensityScale: 1.6,
					SystemCount:    6,
					Triggers:       []Trigger{{Event: EventOutcomes, Value: 10, Next: "decay"}},
				},
				{
					Name:           "decay",
					Description:    "Systems weaken and the field returns to background noise.",
					IntensityScale: 0.4,
					SystemCount:    2,
				},
			},
		},
		"quiet-period": {
			Name:        "Quiet Period",
			Description: "Stable airmass with rare weak signatures; exercises idle rotation.",
			Phases: []Phase{
				{
					Name:           "stable",
					Description:    "Nothing above the focus threshold for long stretches.",
					IntensityScale: 0.3,
					SystemCount:    1,
					Triggers:       []Trigger{{Event: EventTimeElapsed, Value: 120, Next: "pulse"}},
				},
				{
					Name:           "pulse",
					Description:    "A brief convective pulse tests reacquisition.",
					IntensityScale: 1.2,
					SystemCount:    2,
					Triggers:       []Trigger{{Event: EventTimeElapsed, Value: 60, Next: "stable"}},
				},
			},
		},
		"squall-line": {
			Name:        "Squall Line",
			Description: "A fast-moving line of systems crosses the zones in sequence.",
			Phases: []Phase{
				{
					Name:           "approach",
					Description:    "Line forms upwind of the first zone.",
					IntensityScale: 0.8,
					SystemCount:    4,
					Triggers:       []Trigger{{Event: EventCellsAboveFocus, Value: 3, Next: "passage"}},
				},
				{
					Name:           "passage",
					Description:    "Peak instability sweeps through; assignments churn quickly.",
					IntensityScale: 1.8,
					SystemCount:    5,
					Triggers:       []Trigger{{Event: EventTimeElapsed, Value: 90, Next: "wake"}},
				},
				{
					Name:           "wake",
					Description:    "Trailing stratiform region with residual weak vorticity.",
					IntensityScale: 0.6,
					SystemCount:    2,
				},
			},
		},
	}
}
