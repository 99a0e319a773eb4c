package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lvcagen/internal/core"
	"lvcagen/internal/serial"
	"lvcagen/internal/verify"
)

var errArrayInvalid = errors.New("array is not a valid covering array")

type verifyOptions struct {
	params    core.Params
	arrayPath string
}

func newVerifyCmd(g *globalOptions) *cobra.Command {
	o := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a CSV array file against (n, tau, k)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyArray(cmd, o)
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.params.N, "n", 0, "Number of parameters")
	f.IntVar(&o.params.Tau, "tau", 2, "Coverage strength")
	f.IntVar(&o.params.K, "k", 0, "Ones per row")
	f.StringVar(&o.arrayPath, "array", "", "CSV array file")
	_ = cmd.MarkFlagRequired("n")
	_ = cmd.MarkFlagRequired("array")
	return cmd
}

func verifyArray(cmd *cobra.Command, o *verifyOptions) error {
	f, err := os.Open(o.arrayPath)
	if err != nil {
		return err
	}
	defer f.Close()
	rows, err := serial.ReadRows(f, 0)
	if err != nil {
		return err
	}
	rep, err := verify.Verify(rows, o.params)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %d rows, %s\n", o.params, len(rows), rep.Summary())
	for _, v := range rep.Violations {
		fmt.Fprintf(w, "  %s\n", v)
	}
	if !rep.Valid {
		return errArrayInvalid
	}
	return nil
}
