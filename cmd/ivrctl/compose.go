package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ivr/internal/core"
)

func numberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "number [amount]",
		Short: "Show how an amount is read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namer := core.NewComposer(core.CardMovementTokens()).Namer()
			split := core.SplitAmount(core.ParseAmount(args[0]))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "integer: %s\n", split.Integer)
			fmt.Fprintf(out, "cents:   %s\n", split.Cents)
			fmt.Fprintf(out, "words:   %s\n", namer.NameLarge(split.IntegerValue()))
			fmt.Fprintf(out, "tokens:  %s\n", strings.Join(namer.Large(split.IntegerValue()), " "))
			return nil
		},
	}
}

func composeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose [file|-]",
		Short: "Compose the audio sequence of a movements listing",
		Long: `Reads a movements listing, either a bank API answer with
"data.movimientos" or a bare array of movements, and prints the audio
sequence the IVR would play.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			split, _ := cmd.Flags().GetBool("split")
			read, err := composeListing(in)
			if err != nil {
				return err
			}
			if split {
				read = strings.ReplaceAll(read, core.Separator, "\n")
			}
			fmt.Fprintln(cmd.OutOrStdout(), read)
			return nil
		},
	}
	cmd.Flags().BoolP("split", "s", false, "Print one token per line")
	return cmd
}

// composeListing decodes a listing and composes it.
func composeListing(in io.Reader) (string, error) {
	dec := json.NewDecoder(in)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("decode listing: %w", err)
	}

	var records []core.Record
	switch t := doc.(type) {
	case []any:
		records, _ = core.Record{"movimientos": t}.Records("movimientos")
	case map[string]any:
		var ok bool
		records, ok = core.MovementRecords(core.Record(t))
		if !ok {
			return "", fmt.Errorf("listing has no data.movimientos array")
		}
	default:
		return "", fmt.Errorf("listing must be an object or an array")
	}

	movs := make([]core.Movement, len(records))
	for i, r := range records {
		movs[i] = core.MovementFromRecord(r)
	}
	return core.NewComposer(core.CardMovementTokens()).Compose(movs), nil
}
