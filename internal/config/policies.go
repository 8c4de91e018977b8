package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-ead/internal/gate"
	"github.com/mind-engage/mindengage-ead/internal/validate"
)

// PolicyConfig is the attempt policy of one installation (faculty or campus).
type PolicyConfig struct {
	// MaxReprobations applies when an exam does not set max_attempts.
	// Zero means unlimited.
	MaxReprobations  int `yaml:"max_reprobations" json:"max_reprobations" validate:"gte=0"`
	BlockHoursOnFail int `yaml:"block_hours_on_fail" json:"block_hours_on_fail" validate:"gte=0"`
}

func (p PolicyConfig) Gate() gate.Policy {
	return gate.Policy{
		MaxAttempts:   p.MaxReprobations,
		BlockDuration: time.Duration(p.BlockHoursOnFail) * time.Hour,
	}
}

// Policies resolves installation policies, falling back to Default.
type Policies struct {
	Default       PolicyConfig
	Installations map[string]PolicyConfig
}

func (p Policies) For(installationID string) gate.Policy {
	if pc, ok := p.Installations[installationID]; ok {
		return pc.Gate()
	}
	return p.Default.Gate()
}

// override leaves unset fields to the default policy.
type override struct {
	MaxReprobations  *int `yaml:"max_reprobations"`
	BlockHoursOnFail *int `yaml:"block_hours_on_fail"`
}

type policyFile struct {
	Default       override            `yaml:"default"`
	Installations map[string]override `yaml:"installations"`
}

// LoadPolicies reads a YAML policy file:
//
//	default:
//	  max_reprobations: 3
//	  block_hours_on_fail: 24
//	installations:
//	  campus-norte:
//	    block_hours_on_fail: 48
func LoadPolicies(path string, def PolicyConfig) (Policies, error) {
	f, err := os.Open(path)
	if err != nil {
		return Policies{}, errors.Wrap(err, "policy file")
	}
	defer f.Close()

	var pf policyFile
	if err := yaml.NewDecoder(f).Decode(&pf); err != nil {
		return Policies{}, errors.Wrapf(err, "policy file %s", path)
	}
	return pf.resolve(def)
}

func (pf policyFile) resolve(def PolicyConfig) (Policies, error) {
	out := Policies{Default: pf.Default.apply(def), Installations: map[string]PolicyConfig{}}
	if err := validate.Struct(out.Default); err != nil {
		return Policies{}, errors.Wrap(err, "default policy")
	}
	for id, o := range pf.Installations {
		pc := o.apply(out.Default)
		if err := validate.Struct(pc); err != nil {
			return Policies{}, errors.Wrapf(err, "installation %s", id)
		}
		out.Installations[id] = pc
	}
	return out, nil
}

func (o override) apply(base PolicyConfig) PolicyConfig {
	if o.MaxReprobations != nil {
		base.MaxReprobations = *o.MaxReprobations
	}
	if o.BlockHoursOnFail != nil {
		base.BlockHoursOnFail = *o.BlockHoursOnFail
	}
	return base
}
