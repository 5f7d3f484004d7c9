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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	shellwords "github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"github.com/modulewise/composable-runtime/pkg/engine"
	"github.com/modulewise/composable-runtime/pkg/graph"
	"github.com/modulewise/composable-runtime/pkg/runtime"
)

// target is one invocable component function, addressed as
// "<component>.<function>".
type target struct {
	component string
	function  string
	schema    engine.Function
}

func runInteractive(ctx context.Context, g *graph.Graph, opts options, log *zap.SugaredLogger) error {
	log.Infof("building registries")
	rt, err := runtime.NewBuilder(g).
		WithCacheDir(opts.CacheDir).
		WithLogger(log).
		Build(ctx)
	if err != nil {
		return err
	}

	targets := make(map[string]target)
	for _, component := range rt.Components() {
		for key, fn := range component.Functions {
			targets[component.Name+"."+key] = target{
				component: component.Name,
				function:  key,
				schema:    fn,
			}
		}
	}
	log.Infof("successfully built registry with %d exposed components", len(rt.Components()))

	fmt.Println("Starting interactive session. Type 'help' for commands.")
	parser := shellwords.NewParser()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		words, err := parser.Parse(scanner.Text())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		if len(words) == 0 {
			continue
		}

		switch words[0] {
		case "list":
			listTargets(targets)
		case "describe":
			if len(words) < 2 {
				fmt.Println("Usage: describe <target>")
				continue
			}
			describeTarget(targets, words[1])
		case "invoke":
			if len(words) < 2 {
				fmt.Println("Usage: invoke <target> [args...]")
				continue
			}
			invokeTarget(ctx, rt, targets, words[1], words[2:])
		case "help":
			printHelp()
		case "exit", "quit":
			return nil
		default:
			fmt.Println("Unknown command. Type 'help' for a list of commands.")
		}
	}
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  list                      - List available component functions")
	fmt.Println("  describe <target>         - Show details for a specific function")
	fmt.Println("  invoke <target> [args...] - Call a function with arguments")
	fmt.Println("  help                      - Show this help message")
	fmt.Println("  exit, quit                - Exit the interactive session")
}

func listTargets(targets map[string]target) {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("- %s\n", name)
	}
}

func describeTarget(targets map[string]target, name string) {
	tgt, ok := targets[name]
	if !ok {
		fmt.Printf("Error: Target %q not found.\n", name)
		return
	}

	fmt.Printf("Target: %s\n", name)
	if tgt.schema.Docs != "" {
		fmt.Printf("Docs: %s\n", tgt.schema.Docs)
	}
	fmt.Println("Params:")
	if len(tgt.schema.Params) == 0 {
		fmt.Println("  (none)")
	}
	for _, param := range tgt.schema.Params {
		schema, _ := json.Marshal(param.Schema)
		fmt.Printf("- %s: %s (optional: %t)\n", param.Name, schema, param.Optional)
	}
	if tgt.schema.Result != nil {
		schema, _ := json.Marshal(tgt.schema.Result)
		fmt.Printf("Result: %s\n", schema)
	} else {
		fmt.Println("Result: null")
	}
}

func invokeTarget(ctx context.Context, rt *runtime.Runtime, targets map[string]target, name string, rawArgs []string) {
	tgt, ok := targets[name]
	if !ok {
		fmt.Printf("Error: Target %q not found.\n", name)
		return
	}

	args := make([]any, 0, len(rawArgs))
	for i, raw := range rawArgs {
		args = append(args, coerceArgument(raw, tgt.schema.Params, i))
	}
	// Omitted trailing optional parameters become null.
	for len(args) < len(tgt.schema.Params) && tgt.schema.Params[len(args)].Optional {
		args = append(args, nil)
	}

	fmt.Printf("Invoking %s...\n", name)
	result, err := rt.Invoke(ctx, tgt.component, tgt.function, args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	rendered, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(string(rendered))
}

// coerceArgument parses a raw argument as JSON, falling back to a bare
// string, and stringifies numbers when the parameter schema expects a string.
func coerceArgument(raw string, params []engine.FunctionParam, index int) any {
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return raw
	}

	if index < len(params) {
		if expected, ok := params[index].Schema["type"].(string); ok && expected == "string" {
			if number, isNumber := value.(json.Number); isNumber {
				return number.String()
			}
		}
	}
	return value
}
