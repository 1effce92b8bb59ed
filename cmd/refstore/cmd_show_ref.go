package main

import (
	"encoding/json"
	"fmt"

	"github.com/odvcencio/refstore/pkg/refs"
	"github.com/odvcencio/refstore/pkg/repo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// refRecord is the json and yaml shape of one reference.
type refRecord struct {
	Name     string `json:"name" yaml:"name"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
	Symbolic string `json:"symbolic,omitempty" yaml:"symbolic,omitempty"`
	Peeled   string `json:"peeled,omitempty" yaml:"peeled,omitempty"`
	Category string `json:"category" yaml:"category"`
}

func toRecord(ref refs.Reference) refRecord {
	rec := refRecord{
		Name:     string(ref.Name),
		Peeled:   string(ref.Peeled),
		Category: ref.Name.Category().String(),
	}
	if ref.Target.Kind == refs.Symbolic {
		rec.Symbolic = string(ref.Target.Name)
	} else {
		rec.Target = string(ref.Target.ID)
	}
	return rec
}

func newShowRefCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show-ref [prefix]",
		Short: "List references, loose and packed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := "refs/"
			if len(args) == 1 {
				prefix = args[0]
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			list, err := r.ListRefs(prefix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch output {
			case "text":
				for _, ref := range list {
					fmt.Fprintf(out, "%s %s\n", ref.Target, ref.Name)
					if ref.Peeled != "" {
						fmt.Fprintf(out, "%s %s^{}\n", ref.Peeled, ref.Name)
					}
				}
				return nil
			case "json", "yaml":
				records := make([]refRecord, 0, len(list))
				for _, ref := range list {
					records = append(records, toRecord(ref))
				}
				if output == "json" {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(records)
				}
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(records); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}
