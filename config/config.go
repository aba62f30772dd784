package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Config holds all configuration
type Config struct {
	Variables []Variable
	Models    []Model
	Profiles  []Profile
	Plugins   []Plugin
	Remote    *RemoteConfig
	Storage   *StorageConfig

	// DefaultProfile is the profile tag used when a session carries no
	// binding and the caller passes no override.
	DefaultProfile string

	// ResolvedVars holds the resolved variable values for runtime use
	ResolvedVars map[string]cty.Value
}

func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadAndValidate loads the config and validates all components
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadFile(filename string) (*Config, error) {
	return loadFromFiles([]string{filename})
}

func LoadDir(dir string) (*Config, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, err
	}
	return loadFromFiles(files)
}

// Validate checks that all config components are valid
func (c *Config) Validate() error {
	for _, v := range c.Variables {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variable '%s': %w", v.Name, err)
		}
	}

	for _, m := range c.Models {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("model '%s': %w", m.Name, err)
		}
	}

	for _, p := range c.Plugins {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("plugin '%s': %w", p.Name, err)
		}
	}

	tags := make(map[string]bool, len(c.Profiles))
	hasGenie := false
	for _, p := range c.Profiles {
		if err := p.Validate(); err != nil {
			return err
		}
		if tags[p.Tag] {
			return fmt.Errorf("profile '%s': duplicate tag '%s'", p.Name, p.Tag)
		}
		tags[p.Tag] = true
		if p.Type == TypeGenie {
			hasGenie = true
		}
	}

	for _, p := range c.Profiles {
		if _, _, err := ResolveModelKey(c.Models, p.Model); err != nil {
			return fmt.Errorf("profile '%s': %w", p.Name, err)
		}
		for _, slave := range p.Slaves {
			if !tags[slave] {
				return fmt.Errorf("profile '%s': unknown slave profile '%s'", p.Name, slave)
			}
			if slave == p.Tag {
				return fmt.Errorf("profile '%s': cannot list itself as a slave", p.Name)
			}
		}
	}

	if c.DefaultProfile != "" && !tags[c.DefaultProfile] {
		return fmt.Errorf("default_profile '%s' does not match any profile tag", c.DefaultProfile)
	}

	if hasGenie {
		if c.Remote == nil {
			return fmt.Errorf("genie profiles require a remote block")
		}
		if err := c.Remote.Validate(); err != nil {
			return fmt.Errorf("remote: %w", err)
		}
	}

	if c.Storage != nil {
		if err := c.Storage.Validate(); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}

	return nil
}

// ProfileByTag looks up a profile by its tag.
func (c *Config) ProfileByTag(tag string) (*Profile, bool) {
	for i := range c.Profiles {
		if c.Profiles[i].Tag == tag {
			return &c.Profiles[i], true
		}
	}
	return nil, false
}

// SlaveProfiles resolves a genie profile's slave tags, preserving order.
func (c *Config) SlaveProfiles(genie *Profile) ([]*Profile, error) {
	out := make([]*Profile, 0, len(genie.Slaves))
	for _, tag := range genie.Slaves {
		p, ok := c.ProfileByTag(tag)
		if !ok {
			return nil, fmt.Errorf("profile '%s': unknown slave profile '%s'", genie.Name, tag)
		}
		out = append(out, p)
	}
	return out, nil
}

// parsedBlocks holds all blocks extracted from a file in one pass
type parsedBlocks struct {
	Variables []*hcl.Block
	Models    []*hcl.Block
	Profiles  []*hcl.Block
	Plugins   []*hcl.Block
	Remotes   []*hcl.Block
	Storages  []*hcl.Block

	DefaultProfile *hcl.Attribute
}

// loadFromFiles implements staged loading: variables → everything else
func loadFromFiles(files []string) (*Config, error) {
	parser := hclparse.NewParser()
	var allParsedBlocks []parsedBlocks

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parse %s: %w", file, diags)
		}

		content, _, diags := hclFile.Body.PartialContent(&hcl.BodySchema{
			Attributes: []hcl.AttributeSchema{
				{Name: "default_profile"},
			},
			Blocks: []hcl.BlockHeaderSchema{
				{Type: "variable", LabelNames: []string{"name"}},
				{Type: "model", LabelNames: []string{"name"}},
				{Type: "profile", LabelNames: []string{"name"}},
				{Type: "plugin", LabelNames: []string{"name"}},
				{Type: "remote"},
				{Type: "storage"},
			},
		})
		if diags.HasErrors() {
			return nil, fmt.Errorf("partial content %s: %w", file, diags)
		}

		var pb parsedBlocks
		if attr, ok := content.Attributes["default_profile"]; ok {
			pb.DefaultProfile = attr
		}
		for _, block := range content.Blocks {
			switch block.Type {
			case "variable":
				pb.Variables = append(pb.Variables, block)
			case "model":
				pb.Models = append(pb.Models, block)
			case "profile":
				pb.Profiles = append(pb.Profiles, block)
			case "plugin":
				pb.Plugins = append(pb.Plugins, block)
			case "remote":
				pb.Remotes = append(pb.Remotes, block)
			case "storage":
				pb.Storages = append(pb.Storages, block)
			}
		}
		allParsedBlocks = append(allParsedBlocks, pb)
	}

	// Stage 1: Load variables (no context needed)
	var allVars []Variable
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Variables {
			var v Variable
			v.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, nil, &v)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode variable %s: %w", v.Name, diags)
			}
			allVars = append(allVars, v)
		}
	}

	varsCtx, resolvedVars := buildVarsContext(allVars)

	cfg := &Config{
		Variables:    allVars,
		ResolvedVars: resolvedVars,
	}

	// Stage 2: decode everything else with the vars context
	for _, pb := range allParsedBlocks {
		for _, block := range pb.Models {
			var m Model
			m.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, varsCtx, &m)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode model %s: %w", m.Name, diags)
			}
			cfg.Models = append(cfg.Models, m)
		}

		for _, block := range pb.Profiles {
			var p Profile
			p.Name = block.Labels[0]
			diags := gohcl.DecodeBody(block.Body, varsCtx, &p)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode profile %s: %w", p.Name, diags)
			}
			cfg.Profiles = append(cfg.Profiles, p)
		}

		for _, block := range pb.Plugins {
			p, err := parsePluginBlock(block, varsCtx)
			if err != nil {
				return nil, err
			}
			cfg.Plugins = append(cfg.Plugins, *p)
		}

		for _, block := range pb.Remotes {
			if cfg.Remote != nil {
				return nil, fmt.Errorf("duplicate remote block")
			}
			var r RemoteConfig
			diags := gohcl.DecodeBody(block.Body, varsCtx, &r)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode remote block: %w", diags)
			}
			r.Defaults()
			cfg.Remote = &r
		}

		for _, block := range pb.Storages {
			if cfg.Storage != nil {
				return nil, fmt.Errorf("duplicate storage block")
			}
			var s StorageConfig
			diags := gohcl.DecodeBody(block.Body, varsCtx, &s)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode storage block: %w", diags)
			}
			s.Defaults()
			cfg.Storage = &s
		}

		if pb.DefaultProfile != nil {
			val, diags := pb.DefaultProfile.Expr.Value(varsCtx)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode default_profile: %w", diags)
			}
			cfg.DefaultProfile = val.AsString()
		}
	}

	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{}
		cfg.Storage.Defaults()
	}

	return cfg, nil
}

func buildVarsContext(vars []Variable) (*hcl.EvalContext, map[string]cty.Value) {
	varsMap := make(map[string]cty.Value)
	fileVars, _ := LoadVarsFromFile()
	for _, v := range vars {
		if val, ok := fileVars[v.Name]; ok {
			varsMap[v.Name] = cty.StringVal(val)
		} else if v.Default != "" {
			varsMap[v.Name] = cty.StringVal(v.Default)
		} else {
			varsMap[v.Name] = cty.StringVal("")
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"vars": cty.ObjectVal(varsMap),
		},
	}, varsMap
}

// parsePluginBlock parses a plugin block with an optional settings block
func parsePluginBlock(block *hcl.Block, ctx *hcl.EvalContext) (*Plugin, error) {
	pluginName := block.Labels[0]

	content, _, diags := block.Body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "source", Required: true},
			{Name: "version", Required: true},
		},
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "settings"},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("plugin '%s': %w", pluginName, diags)
	}

	p := &Plugin{Name: pluginName}

	sourceVal, diags := content.Attributes["source"].Expr.Value(ctx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("plugin '%s' source: %w", pluginName, diags)
	}
	p.Source = sourceVal.AsString()

	versionVal, diags := content.Attributes["version"].Expr.Value(ctx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("plugin '%s' version: %w", pluginName, diags)
	}
	p.Version = versionVal.AsString()

	for _, blk := range content.Blocks {
		if blk.Type != "settings" {
			continue
		}
		attrs, diags := blk.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("plugin '%s' settings: %w", pluginName, diags)
		}
		p.Settings = make(map[string]string, len(attrs))
		for name, attr := range attrs {
			val, diags := attr.Expr.Value(ctx)
			if diags.HasErrors() {
				return nil, fmt.Errorf("plugin '%s' setting '%s': %w", pluginName, name, diags)
			}
			p.Settings[name] = val.AsString()
		}
	}

	return p, nil
}
