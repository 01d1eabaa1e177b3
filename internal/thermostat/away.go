package thermostat

// SetAway overwrites the active set points from the normal or away profile.
// It does not re-evaluate; Control does that for callers.
func (c *Controller) SetAway(away bool) {
	profile := c.normal
	if away {
		profile = c.away
	}

	switch c.kind {
	case TwoPoint:
		c.targetLow = clone(profile.DefaultLow)
		c.targetHigh = clone(profile.DefaultHigh)
	case SinglePointCool:
		c.target = clone(profile.DefaultHigh)
	case SinglePointHeat:
		c.target = clone(profile.DefaultLow)
	}
	c.awayActive = away
}
