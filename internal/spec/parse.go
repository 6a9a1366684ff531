package spec

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseFlow decodes a flow document (YAML or JSON — JSON is valid YAML) into
// a FlowSpec. Unknown top-level/nested keys are rejected.
func ParseFlow(data []byte) (*FlowSpec, error) {
	var out FlowSpec
	if err := decodeStrict(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownField, err)
	}
	return &out, nil
}

// ParseProfiles decodes a profiles document.
func ParseProfiles(data []byte) (ProfilesFileSpec, error) {
	var out ProfilesFileSpec
	if err := decodeStrict(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownField, err)
	}
	return out, nil
}

// ParseBundleManifest decodes a bundle manifest document.
func ParseBundleManifest(data []byte) (*BundleManifestSpec, error) {
	var out BundleManifestSpec
	if err := decodeStrict(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownField, err)
	}
	return &out, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
