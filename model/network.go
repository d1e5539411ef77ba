package model

// Network is a validated, immutable view of a model's reactions used for
// propensity evaluation. Construction validates the model eagerly;
// evaluation is pure and safe to call concurrently.
type Network struct {
	species   []string
	reactions []Reaction
}

// NewNetwork validates the model and compiles its reaction network.
func NewNetwork(m *Model) (*Network, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Network{
		species:   m.Species,
		reactions: m.Reactions,
	}, nil
}

// NumSpecies returns the species count.
func (n *Network) NumSpecies() int { return len(n.species) }

// NumReactions returns the reaction count.
func (n *Network) NumReactions() int { return len(n.reactions) }

// Species returns the species names.
func (n *Network) Species() []string { return n.species }

// Reaction returns the r-th reaction definition.
func (n *Network) Reaction(r int) Reaction { return n.reactions[r] }

// Delta returns the stoichiometric change vector of reaction r.
func (n *Network) Delta(r int) []int { return n.reactions[r].Delta }

// Coeff evaluates the time coefficient of reaction r at time t.
// Reactions without a coefficient use the constant factor 1.
func (n *Network) Coeff(r int, t float64) float64 {
	if c := n.reactions[r].Coeff; c != nil {
		return c(t)
	}
	return 1
}

// Propensity evaluates the state-dependent rate of reaction r at state s
// and time t, with the time coefficient applied multiplicatively.
func (n *Network) Propensity(r int, s State, t float64) float64 {
	return n.reactions[r].Rate.Rate(s) * n.Coeff(r, t)
}

// Propensities fills dst with the rate of every reaction at state s and
// time t. dst must have length NumReactions.
func (n *Network) Propensities(s State, t float64, dst []float64) {
	for r := range n.reactions {
		dst[r] = n.Propensity(r, s, t)
	}
}

// TimeDependent reports whether any reaction carries a time coefficient.
func (n *Network) TimeDependent() bool {
	for _, rxn := range n.reactions {
		if rxn.Coeff != nil {
			return true
		}
	}
	return false
}
