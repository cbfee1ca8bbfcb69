package sidx

import (
	"encoding/json"
	"fmt"
	"os"
)

// report.go is the EXPANDED build report SPEC_FULL.md §4.5 adds: a
// purely diagnostic `<output>.report.json`, never read back by the
// builder itself. Adapted from the teacher's manifest.Version JSON shape
// (pkg/srad/manifest/manifest.go), with the RCU/version-chain machinery
// dropped since a single build has no concurrent readers to RCU against.

// BuildReport summarizes one completed build.
type BuildReport struct {
	Path  string       `json:"path"`
	Attrs []AttrReport `json:"attrs"`
}

// AttrReport summarizes one attribute's contribution to the build.
type AttrReport struct {
	Name       string `json:"name"`
	SrcIndex   int    `json:"srcIndex"`
	AttrIndex  int    `json:"attrIndex"`
	Type       string `json:"type"`
	BlockCount uint64 `json:"blockCount"`
}

func writeReport(outputPath string, attrs []attrMeta) error {
	report := BuildReport{Path: outputPath}
	for _, a := range attrs {
		report.Attrs = append(report.Attrs, AttrReport{
			Name:       a.name,
			SrcIndex:   a.srcIndex,
			AttrIndex:  a.attrIndex,
			Type:       a.typeCode.String(),
			BlockCount: a.blockCount,
		})
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal build report: %w", err)
	}
	return os.WriteFile(outputPath+".report.json", data, 0644)
}
