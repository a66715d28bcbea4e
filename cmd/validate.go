package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/pulse/internal/config"
	"firestige.xyz/pulse/internal/pipeline"
)

var validatePrint bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration file, apply defaults and check every component
declaration (types, options and inputs) without starting anything.

Examples:
  pulse validate -c /etc/pulse/config.yml
  pulse validate -c pulse.yml --print`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(configFile, cmd.OutOrStdout(), validatePrint)
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validatePrint, "print", false,
		"print the component graph after defaults are applied")
}

// componentView is the YAML rendering of one declared component.
type componentView struct {
	Type    string         `yaml:"type"`
	Inputs  []string       `yaml:"inputs,omitempty"`
	Options map[string]any `yaml:"options,omitempty"`
}

func runValidate(path string, out io.Writer, render bool) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}
	components := cfg.Components()
	if err := pipeline.Validate(components); err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}

	fmt.Fprintf(out, "VALID: %d source(s), %d transform(s), %d sink(s)\n",
		len(cfg.Sources), len(cfg.Transforms), len(cfg.Sinks))
	if !render {
		return nil
	}

	graph := map[string]map[string]componentView{}
	for _, d := range components {
		section := d.Role.String() + "s"
		if graph[section] == nil {
			graph[section] = map[string]componentView{}
		}
		graph[section][d.Name] = componentView{Type: d.Type, Inputs: d.Inputs, Options: d.Options}
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(graph); err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	return enc.Close()
}
