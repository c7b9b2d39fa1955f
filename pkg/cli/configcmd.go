package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/localtaskrepo/lotar/pkg/config"
	"github.com/localtaskrepo/lotar/pkg/console"
	"github.com/localtaskrepo/lotar/pkg/output"
	"github.com/localtaskrepo/lotar/pkg/server"
)

// NewConfigCommand creates the config command tree.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the layered configuration",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigValidateCommand())
	cmd.AddCommand(newConfigTemplatesCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Long: `Show the resolved configuration.

With --explain every field carries its provenance: env, home, global,
project, or default.`,
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			projectFlag, _ := cmd.Flags().GetString("project")
			project := ""
			if projectFlag != "" {
				if project, err = ctx.projectOrDefault(projectFlag); err != nil {
					return err
				}
			}

			resolved, err := ctx.resolvedFor(project)
			if err != nil {
				return err
			}
			fields := server.ConfigFields(resolved)

			if ctx.renderer.JSON() {
				payload := map[string]any{"config": fields}
				if explain {
					payload["provenance"] = resolved.Provenance
				}
				return ctx.renderer.EmitJSON(payload)
			}

			keys := make([]string, 0, len(fields))
			for key := range fields {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				row := []string{key, fmt.Sprint(fields[key])}
				if explain {
					row = append(row, string(resolved.Provenance[key]))
				}
				rows = append(rows, row)
			}
			headers := []string{"Field", "Value"}
			if explain {
				headers = append(headers, "Source")
			}
			ctx.renderer.RawStdout(console.RenderTable(console.TableConfig{Headers: headers, Rows: rows}))
			return nil
		}),
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "Show per-field provenance")
	return cmd
}

func newConfigSetCommand() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <field> <value>",
		Short: "Validate and persist one config field",
		Args:  cobra.ExactArgs(2),
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			projectFlag, _ := cmd.Flags().GetString("project")
			project := ""
			if !global && projectFlag != "" {
				if project, err = ctx.projectOrDefault(projectFlag); err != nil {
					return err
				}
			}

			if err := config.UpdateField(ctx.ws, args[0], args[1], project); err != nil {
				return err
			}

			scope := "global"
			if project != "" {
				scope = project
			}
			ctx.renderer.EmitSuccess(fmt.Sprintf("Set %s = %s (%s)", args[0], args[1], scope))
			return ctx.renderer.EmitJSON(map[string]any{"field": args[0], "value": args[1], "project": project})
		}),
	}

	cmd.Flags().BoolVar(&global, "global", false, "Write the workspace global config even when --project is set")
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var template string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Seed the workspace config from a template",
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			path := ctx.ws.GlobalConfigPath()
			if err := config.InitWorkspace(path, template, force); err != nil {
				return err
			}

			ctx.renderer.EmitSuccess(fmt.Sprintf("Initialized %s from template %q", path, template))
			return ctx.renderer.EmitJSON(map[string]any{"path": path, "template": template})
		}),
	}

	cmd.Flags().StringVar(&template, "template", "default", "Template: "+strings.Join(config.TemplateNames, ", "))
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config files against the schema",
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			paths := []string{ctx.ws.GlobalConfigPath()}
			projects, err := ctx.ws.ListProjects()
			if err != nil {
				return err
			}
			for _, prefix := range projects {
				paths = append(paths, ctx.ws.ProjectConfigPath(prefix))
			}

			results := map[string][]string{}
			problemCount := 0
			for _, path := range paths {
				problems, err := config.ValidateFile(path)
				if err != nil {
					return err
				}
				if len(problems) > 0 {
					results[path] = problems
					problemCount += len(problems)
					for _, problem := range problems {
						ctx.renderer.EmitWarning(path + " " + problem)
					}
				}
			}

			if problemCount > 0 {
				return &output.CommandError{
					Kind:    output.KindValidation,
					Message: fmt.Sprintf("%d config problems found", problemCount),
				}
			}

			ctx.renderer.EmitSuccess("All config files are valid")
			return ctx.renderer.EmitJSON(map[string]any{"problems": results, "count": 0})
		}),
	}
	return cmd
}

func newConfigTemplatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the built-in config templates",
		RunE: handler(func(cmd *cobra.Command, args []string) error {
			ctx, err := newContext(cmd)
			if err != nil {
				return err
			}

			if ctx.renderer.JSON() {
				return ctx.renderer.EmitJSON(map[string]any{"templates": config.TemplateNames})
			}
			ctx.renderer.RawStdout(console.FormatListHeader("Templates") + "\n")
			for _, name := range config.TemplateNames {
				ctx.renderer.RawStdout(console.FormatListItem(name) + "\n")
			}
			return nil
		}),
	}
	return cmd
}
