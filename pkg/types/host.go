package types

// Host identifies a single probed destination. Hosts are created once at
// startup from configuration and never mutated afterwards.
type Host struct {
	ID      string `json:"id" yaml:"id"`
	Address string `json:"address" yaml:"address"`
	Alias   string `json:"alias,omitempty" yaml:"alias,omitempty"`
}

// DisplayName returns the alias when configured, otherwise the address.
func (h Host) DisplayName() string {
	if h.Alias != "" {
		return h.Alias
	}
	return h.Address
}
