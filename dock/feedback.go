package dock

// FeedbackMapper turns a winning acceptor distance into an edge colour.
type FeedbackMapper struct {
	gradient Gradient
	far      float32
	near     float32
	neutral  Color
}

// NewFeedbackMapper maps distances in [settings.FeedbackFar, settings.MaxAcceptDistance]
// onto the configured gradient.
func NewFeedbackMapper(settings Settings) FeedbackMapper {
	g, err := NewGradient(settings.Gradient)
	if err != nil {
		g = Magma()
	}
	return FeedbackMapper{
		gradient: g,
		far:      settings.FeedbackFar,
		near:     settings.MaxAcceptDistance,
		neutral:  settings.NeutralColor,
	}
}

// Position returns where distance falls on the gradient before clamping.
// The far end maps to 0 and the accept distance maps to 1.
func (m FeedbackMapper) Position(distance float32) float64 {
	span := float64(m.near - m.far)
	if span == 0 {
		return 1
	}
	return float64(distance-m.far) / span
}

// Map returns the edge colour for a winning distance.
func (m FeedbackMapper) Map(distance float32) Color {
	return m.gradient.At(m.Position(distance))
}

// Neutral is shown when no acceptor reported a distance.
func (m FeedbackMapper) Neutral() Color {
	return m.neutral
}

// For picks the colour for a pass result.
func (m FeedbackMapper) For(result PassResult) Color {
	if !result.Found {
		return m.Neutral()
	}
	return m.Map(result.Winner.Distance)
}
