package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/traction/internal/config"
)

const (
	validateCmdUse   = "validate"
	validateCmdShort = "Check the config file against the configuration schema"

	// defaultConfigFile is validated when --config is not given, matching
	// the loader's search path.
	defaultConfigFile = "config.yaml"
)

// ErrConfigInvalid is returned when the config file violates the schema.
var ErrConfigInvalid = errors.New("config validation failed")

// NewValidateCommand creates the validate subcommand.
func NewValidateCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   validateCmdUse,
		Short: validateCmdShort,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, configFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, configFlag, configFlagShort, "", configFlagUsage)

	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	if path == "" {
		path = defaultConfigFile
	}

	violations, checkErr := config.CheckSchema(path)
	if checkErr != nil {
		return checkErr
	}

	out := cmd.OutOrStdout()

	if len(violations) == 0 {
		color.New(color.FgGreen).Fprintf(out, "%s is valid\n", path)

		return nil
	}

	color.New(color.FgRed).Fprintf(out, "%s failed validation\n", path)
	fmt.Fprintf(out, "\nViolations:\n")

	for _, violation := range violations {
		color.New(color.FgRed).Fprintf(out, "  - %s: %s\n", violation.Field, violation.Description)
	}

	return fmt.Errorf("%w: %d violations", ErrConfigInvalid, len(violations))
}
