package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"vcp_verifier/internal/logging"
	"vcp_verifier/internal/policy"
	"vcp_verifier/internal/verify"
)

func main() {
	packDir := flag.String("pack", ".", "evidence pack directory")
	tierName := flag.String("tier", "", "override the pack's declared conformance tier")
	rulesFile := flag.String("rules", "", "tier rule table YAML override")
	anchorsFile := flag.String("anchors", "", "external anchors file overriding the pack's anchors.json")
	asJSON := flag.Bool("json", false, "emit the machine-readable report")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logging.Init(false, logging.ParseLevel(*logLevel))

	if len(flag.Args()) == 0 {
		usage()
		os.Exit(1)
	}

	switch flag.Args()[0] {
	case "verify":
		os.Exit(runVerify(*packDir, *tierName, *rulesFile, *anchorsFile, *asJSON))
	default:
		usage()
		os.Exit(1)
	}
}

func runVerify(packDir, tierName, rulesFile, anchorsFile string, asJSON bool) int {
	cfg := verify.Config{}

	if tierName != "" {
		tier, err := policy.ParseTier(tierName)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg.Tier = tier
	}
	if rulesFile != "" {
		rules, err := policy.LoadRuleTable(rulesFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg.Rules = rules
	}
	if anchorsFile != "" {
		cfg.Anchors = verify.FileAnchorSource{Path: anchorsFile}
	}

	report, err := verify.New(cfg).VerifyDir(context.Background(), packDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load pack: %v\n", err)
		return 1
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			slog.Error("encode report", "err", err)
			return 1
		}
	} else {
		verify.Render(os.Stdout, report)
	}

	if report.Pass() {
		return 0
	}
	fmt.Fprintf(os.Stderr, "FAIL: %s\n", strings.Join(report.FailureCategories(), ", "))
	return 2
}

func usage() {
	fmt.Println("Usage: vcpctl [flags] verify")
	fmt.Println()
	flag.PrintDefaults()
}
