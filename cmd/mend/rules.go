package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mend/internal/patch"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the configured rewrite rules in the order they run",
		Args:  cobra.NoArgs,
		RunE:  runRules,
	}
	cmd.Flags().Bool("kinds", false, "list the available rule kinds instead")
	return cmd
}

func runRules(cmd *cobra.Command, args []string) error {
	kinds, err := cmd.Flags().GetBool("kinds")
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.finish()

	reg := patch.NewRegistry()
	if kinds {
		for _, k := range reg.Kinds() {
			fmt.Fprintln(a.out, k)
		}
		return nil
	}

	set, err := a.cfg.Actions(reg)
	if err != nil {
		return err
	}
	if set.Len() == 0 {
		where := a.cfg.Path
		if where == "" {
			where = "no mend.toml found"
		}
		a.printf("No rules configured (%s)\n", where)
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tON")
	for _, act := range set.Actions() {
		on := "always"
		if triggers := act.Triggers(); len(triggers) > 0 {
			slugs := make([]string, len(triggers))
			for i, c := range triggers {
				slugs[i] = c.Slug()
			}
			on = strings.Join(slugs, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", act.Name(), act.Kind(), on)
	}
	return tw.Flush()
}
