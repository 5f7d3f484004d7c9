/*
Copyright 2025 The Modulewise Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/modulewise/composable-runtime/pkg/definition"
	"github.com/modulewise/composable-runtime/pkg/graph"
)

// options are read from the environment (optionally seeded from .env).
type options struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	CacheDir string `envconfig:"CACHE_DIR"`
}

func newRootCommand() *cobra.Command {
	var dryRun, export, interactive bool

	cmd := &cobra.Command{
		Use:           "composable-runtime [flags] <definitions...>",
		Short:         "A composable runtime for Wasm Components",
		Long:          "Loads component definition files (.toml), standalone .wasm files, and oci:// references, composes the declared components, and invokes their exposed functions.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			var opts options
			if err := envconfig.Process("", &opts); err != nil {
				return err
			}

			logger, err := newLogger(opts.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			log := logger.Sugar()

			log.Infof("loading definitions from %v", args)
			defs, err := definition.Load(args)
			if err != nil {
				return err
			}
			g, err := graph.Build(defs, log)
			if err != nil {
				return err
			}

			switch {
			case dryRun:
				fmt.Println("--- Component Dependency Graph (Dry Run) ---")
				fmt.Print(g.String())
				fmt.Println("--------------------------------------------")
				return nil
			case export:
				if err := os.WriteFile("graph.dot", []byte(g.DOT()), 0o644); err != nil {
					return err
				}
				log.Infof("wrote graph.dot")
				return nil
			default:
				return runInteractive(cmd.Context(), g, opts, log)
			}
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the dependency graph without building the registry")
	cmd.Flags().BoolVar(&export, "export", false, "write the dependency graph to graph.dot")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "build the registry and start an interactive session")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "export", "interactive")
	cmd.MarkFlagsOneRequired("dry-run", "export", "interactive")

	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(parsed)
	config.DisableStacktrace = true
	return config.Build()
}
