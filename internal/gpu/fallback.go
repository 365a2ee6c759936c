package gpu

import "strings"

// Config is one (device, compute type) pair a model can be bound to.
type Config struct {
	Device      Device      `json:"device"`
	ComputeType ComputeType `json:"compute_type"`
}

func normalize(device Device, computeType ComputeType) Config {
	d := Device(strings.ToLower(strings.TrimSpace(string(device))))
	if d == "" {
		d = DeviceCPU
	}
	c := ComputeType(strings.ToLower(strings.TrimSpace(string(computeType))))
	if c == "" {
		c = ComputeInt8
	}
	return Config{Device: d, ComputeType: c}
}

// FallbackChain returns the ordered, deduplicated configurations to attempt,
// starting with the given pair. Every chain ends at the CPU baseline, so a
// resource-exhaustion retry can never increase resource pressure.
func FallbackChain(device Device, computeType ComputeType) []Config {
	current := normalize(device, computeType)
	chain := []Config{current}

	if current.Device == DeviceCUDA {
		switch current.ComputeType {
		case ComputeFloat16:
			chain = append(chain,
				Config{DeviceCUDA, ComputeInt8Float16},
				Config{DeviceCPU, ComputeInt8})
		case ComputeInt8Float16:
			chain = append(chain, Config{DeviceCPU, ComputeInt8})
		case ComputeInt8:
			// int8 is already the CPU baseline precision; nowhere lower to go.
		default:
			chain = append(chain,
				Config{DeviceCUDA, ComputeInt8Float16},
				Config{DeviceCPU, ComputeInt8})
		}
	} else if current.ComputeType != ComputeInt8 {
		chain = append(chain, Config{DeviceCPU, ComputeInt8})
	}

	deduped := make([]Config, 0, len(chain))
	for _, candidate := range chain {
		if !containsConfig(deduped, candidate) {
			deduped = append(deduped, candidate)
		}
	}
	return deduped
}

// NextFallback returns the configuration after the current pair in its
// fallback chain. The second return is false when the chain is exhausted.
// An unknown pair resolves to the chain's first element.
func NextFallback(device Device, computeType ComputeType) (Config, bool) {
	current := normalize(device, computeType)
	chain := FallbackChain(device, computeType)

	index := -1
	for i, candidate := range chain {
		if candidate == current {
			index = i
			break
		}
	}
	if index == -1 {
		if len(chain) == 0 {
			return Config{}, false
		}
		return chain[0], true
	}

	if index+1 >= len(chain) {
		return Config{}, false
	}
	return chain[index+1], true
}

func containsConfig(configs []Config, target Config) bool {
	for _, c := range configs {
		if c == target {
			return true
		}
	}
	return false
}
