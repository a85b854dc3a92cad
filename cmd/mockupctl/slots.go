package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mockupstudio/internal/slots"
)

func newSlotsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "slots <template.json>",
		Short: "List the customizable slots of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(args[0])
			if err != nil {
				return err
			}
			set := slots.Classify(doc)
			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(set)
			case "text":
				return printSlots(cmd.OutOrStdout(), set)
			}
			return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json)")
	return cmd
}

func printSlots(w io.Writer, set slots.Set) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tKEY\tOBJECT\tDETAIL")
	for _, s := range set.Text {
		fmt.Fprintf(tw, "%s\t%s\t%s\tmax %d chars, default %q\n", s.Kind, s.Key, s.ObjectID, s.MaxChars, s.DefaultText)
	}
	for _, s := range set.Frame {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Kind, s.Key, s.ObjectID, s.Shape)
	}
	for _, s := range set.Color {
		fmt.Fprintf(tw, "%s\t%s\t%s\tdefault %s\n", s.Kind, s.Key, s.ObjectID, s.DefaultColor)
	}
	return tw.Flush()
}
