package diagfmt

import (
	"encoding/json"
	"io"
	"path/filepath"

	"mend/internal/diag"
)

const sarifSchema = "https://json.schemastore.org/sarif-2.1.0.json"

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Text sarifMessage `json:"shortDescription"`
}

type sarifInvocation struct {
	Arguments           []string `json:"arguments,omitempty"`
	ExecutionSuccessful bool     `json:"executionSuccessful"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	RuleIndex int             `json:"ruleIndex"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifLocation struct {
	Physical sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	Artifact sarifArtifact `json:"artifactLocation"`
	Region   *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   uint32 `json:"startLine"`
	StartColumn uint32 `json:"startColumn,omitempty"`
}

// Sarif форматирует диагностики в SARIF формат (v2.1.0).
// Each category becomes a rule; severities map to error, warning and note.
func Sarif(w io.Writer, bag *diag.Bag, meta SarifRunMeta) error {
	rules := make([]sarifRule, len(diag.Categories))
	ruleIndex := make(map[diag.Category]int, len(diag.Categories))
	for i, c := range diag.Categories {
		rules[i] = sarifRule{ID: c.Slug(), Name: c.String(), Text: sarifMessage{Text: c.String()}}
		ruleIndex[c] = i
	}

	results := make([]sarifResult, 0, bag.Len())
	for _, d := range bag.Items() {
		phys := sarifPhysical{Artifact: sarifArtifact{URI: fileURI(d.Path)}}
		if d.Line > 0 {
			phys.Region = &sarifRegion{StartLine: d.Line, StartColumn: d.Column}
		}
		results = append(results, sarifResult{
			RuleID:    d.Category.Slug(),
			RuleIndex: ruleIndex[d.Category],
			Level:     sarifLevel(d.Severity),
			Message:   sarifMessage{Text: d.Message},
			Locations: []sarifLocation{{Physical: phys}},
		})
	}

	name := meta.ToolName
	if name == "" {
		name = "mend"
	}
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: name, Version: meta.ToolVersion, Rules: rules}},
		Results: results,
	}
	if len(meta.InvocationArgs) > 0 {
		run.Invocations = []sarifInvocation{{Arguments: meta.InvocationArgs, ExecutionSuccessful: true}}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(sarifLog{Schema: sarifSchema, Version: "2.1.0", Runs: []sarifRun{run}})
}

func sarifLevel(s diag.Severity) string {
	switch s {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	default:
		return "note"
	}
}

func fileURI(path string) string {
	p := filepath.ToSlash(path)
	if filepath.IsAbs(path) || (len(p) > 1 && p[1] == ':') {
		if p[0] != '/' {
			p = "/" + p
		}
		return "file://" + p
	}
	return p
}
