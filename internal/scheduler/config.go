package scheduler

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aetherflow/aetherflow/internal/spec"
)

// Entry is one cron-triggered flow: "run FlowFile on CronExpr".
type Entry struct {
	ID           string             `yaml:"id"`
	CronExpr     string             `yaml:"cron_expr"`
	Timezone     string             `yaml:"timezone"`
	FlowFile     string             `yaml:"flow_file"`
	ProfilesFile string             `yaml:"profiles_file"`
	EnvFiles     []spec.EnvFileSpec `yaml:"env_files"`
}

// ConfigSpec is the top-level document loaded by the companion scheduler
// binary, listing the flows it is responsible for triggering.
type ConfigSpec struct {
	Entries []Entry `yaml:"entries"`
}

// ParseConfig decodes a scheduler configuration document, rejecting unknown
// fields the same way internal/spec parses flow documents.
func ParseConfig(data []byte) (*ConfigSpec, error) {
	var out ConfigSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("scheduler: parse config: %w", err)
	}
	for i, e := range out.Entries {
		if e.ID == "" {
			return nil, fmt.Errorf("scheduler: entries[%d]: id is required", i)
		}
		if e.CronExpr == "" {
			return nil, fmt.Errorf("scheduler: entry %q: cron_expr is required", e.ID)
		}
		if e.FlowFile == "" {
			return nil, fmt.Errorf("scheduler: entry %q: flow_file is required", e.ID)
		}
		if err := ValidateCronExpr(e.CronExpr); err != nil {
			return nil, fmt.Errorf("scheduler: entry %q: %w", e.ID, err)
		}
	}
	return &out, nil
}
