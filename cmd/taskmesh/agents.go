package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/taskmesh/descriptor"
	"github.com/hupe1980/taskmesh/task"
)

func newAgentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage the agent descriptor file",
	}
	cmd.AddCommand(
		newAgentsListCmd(a),
		newAgentsAddCmd(a),
		newAgentsEditCmd(a),
		newAgentsRemoveCmd(a),
		newAgentsIntroduceCmd(a),
	)
	return cmd
}

// descriptors loads the configured descriptor file and returns it with its
// path. With allowMissing an absent file yields an empty set.
func (a *app) descriptors(allowMissing bool) (*descriptor.Set, string, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, "", err
	}
	set, err := descriptor.Load(cfg.Descriptors)
	if err != nil {
		if allowMissing && errors.Is(err, fs.ErrNotExist) {
			set, err = descriptor.NewSet()
			return set, cfg.Descriptors, err
		}
		return nil, "", err
	}
	return set, cfg.Descriptors, nil
}

func newAgentsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the agent descriptors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, _, err := a.descriptors(false)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKEYWORDS\tROLE\tTASK FUNCTION")
			for _, d := range set.Descriptors() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Keywords, d.Role, d.TaskFunction)
			}
			return tw.Flush()
		},
	}
}

func newAgentsAddCmd(a *app) *cobra.Command {
	var (
		d     descriptor.Descriptor
		kws   []string
		attrs []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an agent descriptor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, path, err := a.descriptors(true)
			if err != nil {
				return err
			}
			if _, ok := task.Builtins().Lookup(d.TaskFunction); !ok {
				return fmt.Errorf("unknown task function %q (known: %s)", d.TaskFunction, strings.Join(task.Builtins().Names(), ", "))
			}

			d.Keywords = descriptor.Keywords(kws)
			if d.Attributes, err = parseAssignments(attrs); err != nil {
				return err
			}
			if err := set.Add(d); err != nil {
				return err
			}
			if err := set.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Agent '%s' added successfully.\n", d.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&d.Name, "name", "", "agent name")
	cmd.Flags().StringSliceVarP(&kws, "keyword", "k", nil, "task keyword (repeatable)")
	cmd.Flags().StringVar(&d.Role, "role", "", "agent role")
	cmd.Flags().StringVar(&d.Personality, "personality", "", "agent personality")
	cmd.Flags().StringVar(&d.TaskFunction, "task-function", task.Generic, "name of the task function")
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "extra attribute as key=value (repeatable)")
	for _, name := range []string{"name", "keyword", "role"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newAgentsEditCmd(a *app) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "edit <keyword>",
		Short: "Update the first descriptor matching keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			if len(updates) == 0 {
				return fmt.Errorf("nothing to update: pass at least one --set key=value")
			}

			set, path, err := a.descriptors(false)
			if err != nil {
				return err
			}
			d, err := set.Edit(args[0], updates)
			if err != nil {
				return err
			}
			if err := set.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Agent '%s' updated successfully.\n", d.Name)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field or attribute to set as key=value (repeatable)")
	return cmd
}

func newAgentsRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <keyword>",
		Short: "Remove every descriptor matching keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, path, err := a.descriptors(false)
			if err != nil {
				return err
			}
			n, err := set.Remove(args[0])
			if err != nil {
				return err
			}
			if err := set.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d agent(s) matching '%s'.\n", n, args[0])
			return nil
		},
	}
}

func newAgentsIntroduceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "introduce",
		Short: "Create every described agent and print its introduction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			rt.Preload()
			for _, intro := range rt.Introductions() {
				fmt.Fprintln(cmd.OutOrStdout(), intro)
			}
			return nil
		},
	}
}

// parseAssignments turns key=value pairs into a map. Descriptor text fields
// stay strings; other values are decoded as YAML scalars or flow
// collections, so "priority=3" yields an int and "tools=[a, b]" a list.
func parseAssignments(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: want key=value", p)
		}
		switch key {
		case descriptor.KeyName, descriptor.KeyRole, descriptor.KeyPersonality, descriptor.KeyTaskFunction:
			out[key] = raw
			continue
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
