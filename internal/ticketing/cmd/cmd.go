// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/innovationmech/ticketing/internal/ticketing/cmd/configcmd"
	"github.com/innovationmech/ticketing/internal/ticketing/cmd/migrate"
	"github.com/innovationmech/ticketing/internal/ticketing/cmd/simulate"
	"github.com/innovationmech/ticketing/internal/ticketing/cmd/version"
	"github.com/innovationmech/ticketing/pkg/config"
)

// NewRootCommand creates the ticketing command tree.
func NewRootCommand() *cobra.Command {
	options := config.DefaultOptions()

	cmd := &cobra.Command{
		Use:           "ticketing",
		Short:         "Ticket reservation ledger and purchase saga engine",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&options.WorkDir, "workdir", options.WorkDir, "Directory searched for configuration files")
	pf.StringVar(&options.ConfigFile, "config", "", "Explicit configuration file, merged last")
	pf.StringVar(&options.EnvironmentName, "env", "", "Environment overlay, e.g. dev loads ticketing.dev.yaml")

	cmd.AddCommand(simulate.NewSimulateCommand(&options))
	cmd.AddCommand(configcmd.NewConfigCommand(&options))
	cmd.AddCommand(migrate.NewMigrateCommand(&options))
	cmd.AddCommand(version.NewVersionCommand())
	return cmd
}
