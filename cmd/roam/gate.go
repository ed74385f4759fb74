// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mulle-cc/roam-code-sub006/internal/bootstrap"
	"github.com/mulle-cc/roam-code-sub006/internal/errors"
	"github.com/mulle-cc/roam-code-sub006/internal/output"
	"github.com/mulle-cc/roam-code-sub006/internal/ui"
	"github.com/mulle-cc/roam-code-sub006/pkg/envelope"
	"github.com/mulle-cc/roam-code-sub006/pkg/rules"
)

func runGate(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("gate", flag.ExitOnError)
	rulesDir := fs.String("rules", ".roam/rules", "Directory of YAML rule files to evaluate")
	sarifPath := fs.String("sarif", "", "Also write a SARIF 2.1.0 report to this path")
	failOn := fs.String("fail-on", "error", "Minimum severity that fails the gate: error, warning, or info")
	_ = fs.Parse(args)

	ui.InitColors(globals.NoColor)

	root, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewIOError("could not determine working directory", err.Error(), "", err), globals.JSON)
	}
	st, err := bootstrap.OpenProject(bootstrap.ProjectConfig{Root: root}, nil)
	if err != nil {
		errors.FatalError(errors.NewIndexMissingError("no roam index found", err.Error(), "run `roam init` and `roam index`", err), globals.JSON)
	}
	defer st.Close()

	dir := *rulesDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	ruleSet, err := rules.Load(dir)
	if err != nil {
		errors.FatalError(errors.NewUsageError("failed to load rules", err.Error(), "check rule YAML syntax"), globals.JSON)
	}

	ctx := context.Background()
	engine := rules.NewEngine(st, root)
	violations, err := engine.Evaluate(ctx, ruleSet)
	if err != nil {
		errors.FatalError(errors.NewInternalError("rule evaluation failed", err.Error(), "", err), globals.JSON)
	}

	failing := filterBySeverity(violations, rules.Severity(*failOn))

	if *sarifPath != "" {
		if err := writeSARIF(*sarifPath, ruleSet, violations); err != nil {
			errors.FatalError(errors.NewIOError("failed to write SARIF report", err.Error(), "", err), globals.JSON)
		}
	}

	env := envelope.New("gate", version, "pass")
	if len(failing) > 0 {
		env.Summary.Verdict = "fail"
	}
	var items []any
	for _, v := range violations {
		items = append(items, map[string]any{
			"rule":     v.RuleID,
			"severity": string(v.Severity),
			"file":     v.FilePath,
			"symbol":   v.Symbol,
			"line":     v.Line,
			"reason":   v.Reason,
		})
	}
	env.Set("violations", items)
	env.SetSummary("violation_count", len(violations))
	env.SetSummary("failing_count", len(failing))

	if globals.JSON {
		var data []byte
		var encErr error
		if globals.Agent {
			data, encErr = env.AgentJSON()
		} else {
			data, encErr = env.MarshalJSON()
		}
		if encErr != nil {
			errors.FatalError(errors.NewInternalError("failed to encode envelope", encErr.Error(), "", encErr), true)
		}
		fmt.Println(string(data))
	} else {
		ui.Header("Gate")
		if len(violations) == 0 {
			ui.Success("no violations found")
		}
		for _, v := range violations {
			fmt.Println("  " + v.String())
		}
		fmt.Printf("\n%s %d violation(s), %d at or above %q\n", ui.Label("total:"), len(violations), len(failing), *failOn)
	}

	if len(failing) > 0 {
		os.Exit(errors.ExitGateFailure)
	}
}

func filterBySeverity(violations []rules.Violation, min rules.Severity) []rules.Violation {
	rank := map[rules.Severity]int{rules.SeverityInfo: 0, rules.SeverityWarning: 1, rules.SeverityError: 2}
	threshold, ok := rank[min]
	if !ok {
		threshold = rank[rules.SeverityError]
	}
	var out []rules.Violation
	for _, v := range violations {
		sev := v.Severity
		if sev == "" {
			sev = rules.SeverityWarning
		}
		if rank[sev] >= threshold {
			out = append(out, v)
		}
	}
	return out
}

func writeSARIF(path string, ruleSet []rules.Rule, violations []rules.Violation) error {
	ruleDefs := make([]envelope.SARIFRule, 0, len(ruleSet))
	for _, r := range ruleSet {
		rule := envelope.SARIFRule{ID: r.ID}
		rule.ShortDescription.Text = r.Message
		ruleDefs = append(ruleDefs, rule)
	}

	results := make([]envelope.SARIFResult, 0, len(violations))
	for _, v := range violations {
		res := envelope.SARIFResult{RuleID: v.RuleID, Level: envelope.SeverityToLevel(string(v.Severity))}
		res.Message.Text = v.Reason
		loc := envelope.SARIFLocation{}
		loc.PhysicalLocation.ArtifactLocation.URI = v.FilePath
		if v.Line > 0 {
			loc.PhysicalLocation.Region = &envelope.SARIFRegion{StartLine: v.Line}
		}
		res.Locations = []envelope.SARIFLocation{loc}
		results = append(results, res)
	}

	doc := envelope.NewSARIF("roam", version, "roam-gate", ruleDefs, results)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return output.JSONTo(f, doc)
}
