package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/packetcap/pcapkit"
)

type linkTypeDoc struct {
	Value       int32  `yaml:"value"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Known       bool   `yaml:"known"`
}

func newLinkTypeCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "linktype [name|number...]",
		Short: "Look up link-layer header types, or list all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			var docs []linkTypeDoc
			if len(args) == 0 {
				for _, lt := range pcap.LinkTypes() {
					docs = append(docs, describeLinkType(lt))
				}
			}
			for _, arg := range args {
				lt, err := parseLinkType(arg)
				if err != nil {
					return err
				}
				docs = append(docs, describeLinkType(lt))
			}
			return printLinkTypes(cmd.OutOrStdout(), format, docs)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or yaml")
	return cmd
}

func describeLinkType(lt pcap.LinkType) linkTypeDoc {
	doc := linkTypeDoc{Value: lt.Value()}
	doc.Name, doc.Known = lt.Name()
	doc.Description, _ = lt.Description()
	return doc
}

func printLinkTypes(w io.Writer, format string, docs []linkTypeDoc) error {
	switch format {
	case "text":
		known := color.New(color.FgGreen)
		unknown := color.New(color.FgRed)
		for _, d := range docs {
			if !d.Known {
				unknown.Fprintf(w, "%5d  %s\n", d.Value, "unknown")
				continue
			}
			fmt.Fprintf(w, "%5d  ", d.Value)
			known.Fprintf(w, "DLT_%-24s", d.Name)
			fmt.Fprintf(w, " %s\n", d.Description)
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q", format)
}
