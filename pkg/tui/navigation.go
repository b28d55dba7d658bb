package tui

// PanelOrder defines the circular navigation order of panels.
var PanelOrder = []PanelType{
	PanelCanvas,
	PanelEvents,
	PanelCommand,
}

// NextPanel returns the next panel in the circular navigation order.
func NextPanel(current PanelType) PanelType {
	return PanelType((int(current) + 1) % PanelCount)
}

// PrevPanel returns the previous panel in the circular navigation order.
func PrevPanel(current PanelType) PanelType {
	return PanelType((int(current) - 1 + PanelCount) % PanelCount)
}

// IsValidPanel returns true if the panel type is valid.
func IsValidPanel(panel PanelType) bool {
	return panel >= 0 && panel < PanelType(PanelCount)
}
