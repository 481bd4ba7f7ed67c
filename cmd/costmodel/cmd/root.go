package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowsched/costmodel/internal/common"
	"github.com/flowsched/costmodel/internal/costmodel"
)

const CustomConfigLocation string = "config"

// Configuration is the on-disk shape a costmodel binary loads: the
// cost model's own tunables plus whatever ambient settings a future
// wiring (e.g. a metrics listen address) adds around them.
type Configuration struct {
	CostModel costmodel.Config `mapstructure:"costModel"`
}

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "costmodel",
		SilenceUsage: true,
		Short:        "CPU/memory cost model for a min-cost-max-flow cluster scheduler",
	}

	root.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to a configuration file to layer over the default (repeat or comma-separate for multiple)")
	_ = viper.BindPFlag(CustomConfigLocation, root.PersistentFlags().Lookup(CustomConfigLocation))

	root.AddCommand(
		validateCmd(),
		explainCmd(),
	)

	return root
}

func loadConfig() (Configuration, error) {
	config := Configuration{CostModel: costmodel.DefaultConfig()}
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)
	common.LoadConfig(&config, "./config/costmodel", userSpecifiedConfigs)
	return config, nil
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and print the resolved cost model configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("omega=%d maxMultiArcsForCpu=%d maxTasksPerPu=%d\n",
				config.CostModel.Omega, config.CostModel.MaxMultiArcsForCPU, config.CostModel.MaxTasksPerPU)
			return nil
		},
	}
}

// explainScenario is the minimal (task, machine) pair a scenario file
// describes; it exercises the hard-constraint filter and the
// least-requested cost of one copy of the task on the machine, without
// requiring a running flow-graph manager. The cost is printed whether
// or not the machine passes the filter; the balanced-resource and soft
// affinity dimensions are not printed.
type explainScenario struct {
	Task struct {
		CPUMillis    uint64            `mapstructure:"cpuMillis"`
		RAMBytes     uint64            `mapstructure:"ramBytes"`
		NodeSelector map[string]string `mapstructure:"nodeSelector"`
	} `mapstructure:"task"`
	Machine struct {
		CPUMillis uint64            `mapstructure:"cpuMillis"`
		RAMBytes  uint64            `mapstructure:"ramBytes"`
		MaxPods   uint64            `mapstructure:"maxPods"`
		Labels    map[string]string `mapstructure:"labels"`
	} `mapstructure:"machine"`
}

func explainCmd() *cobra.Command {
	var scenarioPath string
	c := &cobra.Command{
		Use:   "explain",
		Short: "Evaluate one task against one machine and print the hard-constraint and cost breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			viper.SetConfigFile(scenarioPath)
			if err := viper.ReadInConfig(); err != nil {
				return err
			}
			var scenario explainScenario
			if err := viper.Unmarshal(&scenario); err != nil {
				return err
			}

			task := &costmodel.TaskDescriptor{
				ID:              "explain-task",
				ResourceRequest: costmodel.ResourceRequest{CPUMillis: scenario.Task.CPUMillis, RAMBytes: scenario.Task.RAMBytes},
				NodeSelector:    scenario.Task.NodeSelector,
			}
			machine := &costmodel.ResourceDescriptor{
				Type:     costmodel.ResourceMachine,
				ID:       uuid.New(),
				Labels:   scenario.Machine.Labels,
				Capacity: costmodel.ResourceRequest{CPUMillis: scenario.Machine.CPUMillis, RAMBytes: scenario.Machine.RAMBytes},
				MaxPods:  scenario.Machine.MaxPods,
				Available: costmodel.ResourceRequest{CPUMillis: scenario.Machine.CPUMillis, RAMBytes: scenario.Machine.RAMBytes},
			}

			for _, result := range costmodel.Explain(machine, task, nil) {
				fmt.Printf("%-24s %v\n", result.Predicate, result.Satisfied)
			}

			cost, cpuFraction, ramFraction := costmodel.LeastRequestedCost(task.ResourceRequest, machine.Capacity, config.CostModel.Omega)
			fmt.Printf("least_requested_cost=%d cpu_fraction=%.4f ram_fraction=%.4f\n", cost, cpuFraction, ramFraction)
			return nil
		},
	}
	c.Flags().StringVar(&scenarioPath, "scenario", "", "path to a scenario YAML file")
	_ = c.MarkFlagRequired("scenario")
	return c
}
