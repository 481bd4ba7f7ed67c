package costmodel

// Config holds the values injected at construction time, per spec.md
// §6. Mapstructure tags let it be populated by viper the same way the
// teacher's scheduler.Configuration is (see cmd/costmodel).
type Config struct {
	// Omega is the per-dimension cost scale.
	Omega int64 `mapstructure:"omega"`
	// MaxMultiArcsForCPU caps the number of fan-out slots (K) a single
	// machine may register, regardless of its max_pods.
	MaxMultiArcsForCPU uint64 `mapstructure:"maxMultiArcsForCpu"`
	// MaxTasksPerPU is the leaf-resource-node-to-sink capacity used
	// when a machine's max_pods is unavailable.
	MaxTasksPerPU uint64 `mapstructure:"maxTasksPerPu"`
}

// DefaultConfig returns the configuration defaults named in spec.md §6.
func DefaultConfig() Config {
	return Config{
		Omega:              1000,
		MaxMultiArcsForCPU: 50,
		MaxTasksPerPU:      1,
	}
}

// unscheduledCost is the fixed cost of the task -> unscheduled
// aggregator arc (spec.md §4.5 table, §8 scenario 6).
const unscheduledCost int64 = 2_560_000
