package models

// LevelScore is one entry of the ranked classification alternatives.
type LevelScore struct {
	Level       PurdueLevel `json:"level"`
	Probability float64     `json:"probability"`
}

// ClassificationResult is the outcome of classifying one device against the
// Purdue model.
type ClassificationResult struct {
	DeviceID     string       `json:"device_id"`
	Level        PurdueLevel  `json:"level"`
	Zone         SecurityZone `json:"zone"`
	Confidence   float64      `json:"confidence"`
	Alternatives []LevelScore `json:"alternatives,omitempty"`
	Reasons      []string     `json:"reasons,omitempty"`
}
