package service

import (
	"encoding/json"
	"strings"

	"github.com/Harshitk-cp/beliefgraph/internal/domain"
)

type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportDOT  ExportFormat = "dot"
)

// ExportFormatInfo describes how an export format is served.
type ExportFormatInfo struct {
	Name        ExportFormat
	MIMEType    string
	Extension   string
	Description string
}

var ExportFormats = map[ExportFormat]ExportFormatInfo{
	ExportJSON: {
		Name:        ExportJSON,
		MIMEType:    "application/json",
		Extension:   ".json",
		Description: "JSON summary of beliefs and relationships",
	},
	ExportDOT: {
		Name:        ExportDOT,
		MIMEType:    "text/vnd.graphviz",
		Extension:   ".dot",
		Description: "Graphviz DOT digraph of active relationships",
	},
}

var exporters = map[ExportFormat]func(*domain.KnowledgeGraph) ([]byte, error){
	ExportJSON: exportJSON,
	ExportDOT:  exportDOT,
}

func ParseExportFormat(s string) (ExportFormat, bool) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(s)))
	_, ok := ExportFormats[f]
	return f, ok
}

type jsonExport struct {
	AgentID           string   `json:"agentId"`
	BeliefCount       int      `json:"beliefCount"`
	RelationshipCount int      `json:"relationshipCount"`
	BeliefIDs         []string `json:"beliefIds"`
	RelationshipIDs   []string `json:"relationshipIds"`
}

func exportJSON(g *domain.KnowledgeGraph) ([]byte, error) {
	return json.Marshal(jsonExport{
		AgentID:           g.AgentID,
		BeliefCount:       len(g.Beliefs),
		RelationshipCount: len(g.Relationships),
		BeliefIDs:         g.BeliefIDs(),
		RelationshipIDs:   g.RelationshipIDs(),
	})
}

const dotLabelRunes = 30

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "")

func dotLabel(statement string) string {
	runes := []rune(statement)
	if len(runes) > dotLabelRunes {
		runes = runes[:dotLabelRunes]
	}
	return dotEscaper.Replace(string(runes)) + "..."
}

// exportDOT writes one node per belief and one edge per active relationship.
func exportDOT(g *domain.KnowledgeGraph) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString("digraph KnowledgeGraph {\n")
	for _, b := range g.Beliefs {
		sb.WriteString(`  "`)
		sb.WriteString(dotEscaper.Replace(b.ID))
		sb.WriteString(`" [label="`)
		sb.WriteString(dotLabel(b.Statement))
		sb.WriteString("\"];\n")
	}
	for _, r := range g.Relationships {
		if !r.Active {
			continue
		}
		sb.WriteString(`  "`)
		sb.WriteString(dotEscaper.Replace(r.SourceBeliefID))
		sb.WriteString(`" -> "`)
		sb.WriteString(dotEscaper.Replace(r.TargetBeliefID))
		sb.WriteString(`" [label="`)
		sb.WriteString(string(r.Type))
		sb.WriteString("\"];\n")
	}
	sb.WriteString("}\n")
	return []byte(sb.String()), nil
}
