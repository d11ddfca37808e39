package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/packetcap/pcapkit"
	"github.com/packetcap/pcapkit/internal/config"
)

type compileFlags struct {
	linkType   string
	snapLength uint32
	noOptimize bool
	netmask    string
	format     string
}

func newCompileCmd(a *app) *cobra.Command {
	f := &compileFlags{}
	cmd := &cobra.Command{
		Use:   "compile [expression...]",
		Short: "Compile a filter expression and print the program",
		Long: `Compile a pcap-filter(7) expression, given as the remaining arguments, and print the program.
Formats: text lists instructions as tcpdump -d, c as tcpdump -dd, decimal as tcpdump -ddd, yaml as a document.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := strings.Join(args, " ")
			p, lt, err := f.compile(cmd, a.cfg.Compile, expr)
			if err != nil {
				return err
			}
			defer p.Release()
			return printProgram(cmd.OutOrStdout(), f.format, expr, lt, f.snapLength, p)
		},
	}
	cmd.Flags().StringVarP(&f.linkType, "linktype", "l", "", "link type name or number, default from config (EN10MB)")
	cmd.Flags().Uint32VarP(&f.snapLength, "snaplen", "s", 0, "snap length, default from config (65535)")
	cmd.Flags().BoolVarP(&f.noOptimize, "no-optimize", "O", false, "do not run the optimizer")
	cmd.Flags().StringVar(&f.netmask, "netmask", "", "IPv4 netmask of the capture network, for ip broadcast")
	cmd.Flags().StringVarP(&f.format, "format", "f", "text", "output format: text, c, decimal or yaml")
	return cmd
}

// compile apply config defaults to unset flags, then compile expr
func (f *compileFlags) compile(cmd *cobra.Command, cfg config.CompileConfig, expr string) (*pcap.FilterProgram, pcap.LinkType, error) {
	if f.linkType == "" {
		f.linkType = cfg.LinkType
	}
	if f.snapLength == 0 {
		f.snapLength = cfg.SnapLength
	}
	if f.netmask == "" {
		f.netmask = cfg.Netmask
	}
	optimize := cfg.Optimize && !f.noOptimize

	lt, err := parseLinkType(f.linkType)
	if err != nil {
		return nil, lt, err
	}
	mask, err := parseNetmask(f.netmask)
	if err != nil {
		return nil, lt, err
	}
	p, err := pcap.Compile(expr,
		pcap.WithLinkType(lt),
		pcap.WithSnapLength(f.snapLength),
		pcap.WithOptimize(optimize),
		pcap.WithNetmask(mask),
	)
	return p, lt, err
}

// parseLinkType a link type from a name, or from a number when it parses as one
func parseLinkType(s string) (pcap.LinkType, error) {
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return pcap.NewLinkType(pcap.LinkTypeValue(int32(n)))
	}
	return pcap.NewLinkType(pcap.LinkTypeName(s))
}

func parseNetmask(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return 0, fmt.Errorf("invalid netmask %q", s)
	}
	return binary.BigEndian.Uint32(ip), nil
}

type instructionDoc struct {
	Code uint16 `yaml:"code"`
	Jt   uint8  `yaml:"jt"`
	Jf   uint8  `yaml:"jf"`
	K    uint32 `yaml:"k"`
	Asm  string `yaml:"asm"`
}

type programDoc struct {
	Expression   string           `yaml:"expression"`
	LinkType     string           `yaml:"linktype"`
	SnapLength   uint32           `yaml:"snaplen"`
	Instructions []instructionDoc `yaml:"instructions"`
}

func printProgram(w io.Writer, format, expr string, lt pcap.LinkType, snapLength uint32, p *pcap.FilterProgram) error {
	ins := p.Instructions()
	switch format {
	case "text":
		index := color.New(color.FgCyan)
		for i, in := range ins {
			index.Fprintf(w, "(%03d)", i)
			fmt.Fprintf(w, " %v\n", in.Disassemble())
		}
	case "c":
		for _, in := range ins {
			fmt.Fprintf(w, "%v,\n", in)
		}
	case "decimal":
		fmt.Fprintf(w, "%d\n", len(ins))
		for _, in := range ins {
			fmt.Fprintf(w, "%d %d %d %d\n", in.Opcode, in.JumpTrue, in.JumpFalse, in.Operand)
		}
	case "yaml":
		doc := programDoc{
			Expression:   expr,
			LinkType:     lt.String(),
			SnapLength:   snapLength,
			Instructions: make([]instructionDoc, len(ins)),
		}
		for i, in := range ins {
			doc.Instructions[i] = instructionDoc{
				Code: in.Opcode,
				Jt:   in.JumpTrue,
				Jf:   in.JumpFalse,
				K:    in.Operand,
				Asm:  fmt.Sprint(in.Disassemble()),
			}
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}
